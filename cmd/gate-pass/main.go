// Command gate-pass is a pass holder's display: it obtains a secret for a user and prints a fresh
// admission payload at every time step. With -gate the secret is issued by the gate over its
// authenticated secrets endpoint and every payload is also submitted as a scan.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/internal/logging"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

type options struct {
	userID      string
	secretHex   string
	window      int64
	tolerance   int64
	gateURL     string
	deviceToken string
}

func main() {
	var o options
	flag.StringVar(&o.userID, "user", "", "user id to show a pass for (required)")
	flag.StringVar(&o.secretHex, "secret", "", "hex secret to sign with instead of asking the gate for one")
	flag.Int64Var(&o.window, "window", gatepass.DefaultWindowSeconds, "time step width in seconds")
	flag.Int64Var(&o.tolerance, "tolerance", gatepass.DefaultToleranceSteps, "accepted step drift")
	flag.StringVar(&o.gateURL, "gate", "", "gate base URL; issues the secret and receives every payload as a scan")
	flag.StringVar(&o.deviceToken, "device-token", os.Getenv("GATEPASS_DEVICE_TOKEN"), "bearer token for -gate")
	flag.Parse()

	logging.Setup("DEV", "info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("gate-pass stopped")
	}
}

func run(ctx context.Context, o options) error {
	if o.userID == "" {
		return errors.New("-user is required")
	}
	params := gatepass.Params{WindowSeconds: o.window, ToleranceSteps: o.tolerance}

	var gate *gateClient
	if o.gateURL != "" {
		gate = newGateClient(o.gateURL, o.deviceToken)
	}

	if o.secretHex != "" {
		secret, err := hex.DecodeString(o.secretHex)
		if err != nil {
			return errors.Wrap(err, "invalid -secret")
		}
		session := secrets.NewSession(secrets.Key{UserID: o.userID, Secret: secret})
		secrets.Zero(secret)
		defer session.Destroy()
		return display(ctx, gate, session, params)
	}

	if gate == nil {
		return errors.New("either -secret or -gate is required")
	}

	manager := secrets.NewManager(gate)
	return manager.Scoped(ctx, o.userID, func(session *secrets.Session) error {
		return display(ctx, gate, session, params)
	})
}

func display(ctx context.Context, gate *gateClient, session *secrets.Session, params gatepass.Params) error {
	g := gatepass.NewGenerator(session, gatepass.WithGeneratorParams(params))
	return g.Run(ctx, func(tok gatepass.Token) {
		fmt.Printf("step %d  valid until %s\n%s\n\n", tok.Step, tok.ValidUntil.Format("15:04:05"), tok.Payload)
		if gate == nil {
			return
		}
		result, err := gate.Scan(ctx, tok.Payload)
		if err != nil {
			log.Error().Err(err).Msg("scan failed")
			return
		}
		log.Info().Str("decision", result.Decision).Str("reason", result.Reason).Msg("gate answered")
	})
}
