package gatepass

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-gate-pass/clock"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

// ErrSecretUnavailable means there is no secret to sign with yet (or any more). Display layers
// should show "not ready" instead of a code.
var ErrSecretUnavailable = secrets.ErrSecretUnavailable

// Generate derives the payload for the time step containing now. It is deterministic within a
// step and changes at every step boundary.
func Generate(secret []byte, userID string, now time.Time, p Params) (string, error) {
	if len(secret) == 0 {
		return "", ErrSecretUnavailable
	}
	p = p.normalized()
	return EncodePayload(userID, Digest(secret, clock.Step(now, p.WindowSeconds)))
}

// Token is a payload plus the scheduling contract that comes with it: the payload is valid for
// display until ValidUntil, the start of the next step.
type Token struct {
	Payload    string
	UserID     string
	Step       int64
	ValidUntil time.Time
}

// RefreshIn returns how long the display may keep showing the token. Zero means refresh now.
func (t Token) RefreshIn(now time.Time) time.Duration {
	if d := t.ValidUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// SecretSource is the generator's read-only view of the secret store. *secrets.Session satisfies it.
type SecretSource interface {
	UserID() string
	Secret() ([]byte, error)
}

// Generator produces tokens for one pass holder.
type Generator struct {
	source SecretSource
	clock  clock.Clock
	params Params
}

type GeneratorOption func(*Generator)

func WithGeneratorParams(p Params) GeneratorOption {
	return func(g *Generator) {
		g.params = p
	}
}

func WithGeneratorClock(c clock.Clock) GeneratorOption {
	return func(g *Generator) {
		g.clock = c
	}
}

func NewGenerator(source SecretSource, options ...GeneratorOption) *Generator {
	g := &Generator{
		source: source,
		clock:  clock.System{},
		params: DefaultParams(),
	}
	for _, opt := range options {
		opt(g)
	}
	g.params = g.params.normalized()
	return g
}

// Current returns the token for the current step. It never touches the secret store beyond
// reading a copy of the secret, which it zeroes before returning.
func (g *Generator) Current() (Token, error) {
	secret, err := g.source.Secret()
	if err != nil {
		return Token{}, err
	}
	defer secrets.Zero(secret)

	now := g.clock.Now()
	payload, err := Generate(secret, g.source.UserID(), now, g.params)
	if err != nil {
		return Token{}, errors.Wrap(err, "Generator.Current")
	}

	step := clock.Step(now, g.params.WindowSeconds)
	return Token{
		Payload:    payload,
		UserID:     g.source.UserID(),
		Step:       step,
		ValidUntil: clock.StepEnd(step, g.params.WindowSeconds),
	}, nil
}

// Run calls show with a fresh token at every step boundary until ctx is done or the secret
// becomes unavailable. It is one way to honour the refresh contract; callers with their own
// event loop can use Current and Token.RefreshIn directly.
func (g *Generator) Run(ctx context.Context, show func(Token)) error {
	for {
		tok, err := g.Current()
		if err != nil {
			return err
		}
		show(tok)

		timer := time.NewTimer(tok.RefreshIn(g.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
