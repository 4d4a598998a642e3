package gatepass_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-gate-pass/clock"
	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/secrets"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DeterministicWithinWindow(t *testing.T) {
	p := gatepass.DefaultParams()
	first, err := gatepass.Generate([]byte("K"), "42", time.Unix(990, 0), p)
	require.NoError(t, err)
	require.Equal(t, vectorPayload, first)

	for s := int64(990); s < 1020; s++ {
		got, err := gatepass.Generate([]byte("K"), "42", time.Unix(s, 0), p)
		require.NoError(t, err)
		require.Equal(t, first, got, "t=%d", s)
	}
}

func TestGenerate_RotatesAtBoundary(t *testing.T) {
	p := gatepass.DefaultParams()
	for step := int64(-3); step < 40; step++ {
		a, err := gatepass.Generate([]byte("K"), "42", time.Unix(step*30, 0), p)
		require.NoError(t, err)
		b, err := gatepass.Generate([]byte("K"), "42", time.Unix((step+1)*30, 0), p)
		require.NoError(t, err)
		require.NotEqual(t, a, b, "step %d", step)
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, err := gatepass.Generate(nil, "42", time.Unix(1000, 0), gatepass.DefaultParams())
	require.ErrorIs(t, err, gatepass.ErrSecretUnavailable)

	_, err = gatepass.Generate([]byte{}, "42", time.Unix(1000, 0), gatepass.DefaultParams())
	require.ErrorIs(t, err, gatepass.ErrSecretUnavailable)

	_, err = gatepass.Generate([]byte("K"), "", time.Unix(1000, 0), gatepass.DefaultParams())
	require.ErrorIs(t, err, gatepass.ErrInvalidUserID)
}

func TestGenerator_Current(t *testing.T) {
	c := clock.NewFake(1000)
	session := secrets.NewSession(secrets.Key{UserID: "42", Secret: []byte("K")})
	g := gatepass.NewGenerator(session, gatepass.WithGeneratorClock(c))

	tok, err := g.Current()
	require.NoError(t, err)
	require.Equal(t, vectorPayload, tok.Payload)
	require.Equal(t, "42", tok.UserID)
	require.Equal(t, int64(33), tok.Step)
	require.Equal(t, time.Unix(1020, 0), tok.ValidUntil)
	require.Equal(t, 20*time.Second, tok.RefreshIn(c.Now()))
	require.Zero(t, tok.RefreshIn(time.Unix(1021, 0)))

	c.Set(1019)
	again, err := g.Current()
	require.NoError(t, err)
	require.Equal(t, tok, again)

	c.Set(1020)
	next, err := g.Current()
	require.NoError(t, err)
	require.NotEqual(t, tok.Payload, next.Payload)
	require.Equal(t, int64(34), next.Step)

	// generation must not consume or alter the session's secret
	secret, err := session.Secret()
	require.NoError(t, err)
	require.Equal(t, []byte("K"), secret)
}

func TestGenerator_NotReadyAfterLogout(t *testing.T) {
	session := secrets.NewSession(secrets.Key{UserID: "42", Secret: []byte("K")})
	g := gatepass.NewGenerator(session, gatepass.WithGeneratorClock(clock.NewFake(1000)))

	session.Destroy()
	_, err := g.Current()
	require.ErrorIs(t, err, gatepass.ErrSecretUnavailable)
}

func TestGenerator_Run(t *testing.T) {
	session := secrets.NewSession(secrets.Key{UserID: "42", Secret: []byte("K")})
	g := gatepass.NewGenerator(session, gatepass.WithGeneratorParams(gatepass.Params{WindowSeconds: 1, ToleranceSteps: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var tokens []gatepass.Token
	err := g.Run(ctx, func(tok gatepass.Token) {
		tokens = append(tokens, tok)
		if len(tokens) == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, tokens, 2)
	require.Greater(t, tokens[1].Step, tokens[0].Step)
	require.NotEqual(t, tokens[0].Payload, tokens[1].Payload)
}

func TestGenerator_RunStopsWhenSecretDestroyed(t *testing.T) {
	session := secrets.NewSession(secrets.Key{UserID: "42", Secret: []byte("K")})
	g := gatepass.NewGenerator(session, gatepass.WithGeneratorParams(gatepass.Params{WindowSeconds: 1, ToleranceSteps: 1}))

	err := g.Run(context.Background(), func(gatepass.Token) {
		session.Destroy()
	})
	require.True(t, errors.Is(err, gatepass.ErrSecretUnavailable))
}
