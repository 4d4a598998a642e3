// Command device-token mints a bearer token for a gate scanner using the gate's configuration.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/deviceauth"
	"github.com/jrsteele09/go-gate-pass/internal/config"
	"github.com/jrsteele09/go-gate-pass/internal/logging"
)

func main() {
	deviceID := flag.String("device", "", "device id to put in the token subject (required)")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	c, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	signer, err := deviceauth.NewHMACSigner(c.GetDeviceTokenSecret(), c.GetDeviceTokenIssuer())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create signer")
	}
	token, err := signer.Mint(*deviceID, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint device token")
	}
	fmt.Println(token)
}
