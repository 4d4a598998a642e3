package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/clock"
	"github.com/jrsteele09/go-gate-pass/deviceauth"
	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/internal/config"
	"github.com/jrsteele09/go-gate-pass/internal/logging"
	"github.com/jrsteele09/go-gate-pass/server"
)

func main() {
	seeds := flag.String("seed", "", "in-memory store only: comma separated user=hexsecret pairs to preload")
	flag.Parse()

	if err := run(*seeds); err != nil {
		log.Fatal().Err(err).Msg("gate server stopped")
	}
	log.Info().Msg("Server stopped")
}

func run(seeds string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	displayAppname(c.GetAppName())
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, c, seeds)
	if err != nil {
		return err
	}
	defer st.Close()

	params := gatepass.Params{
		WindowSeconds:  c.GetWindowSeconds(),
		ToleranceSteps: c.GetToleranceSteps(),
	}
	validator, err := gatepass.NewValidator(st.registry, st.cache,
		gatepass.WithParams(params),
		gatepass.WithClock(clock.System{}),
		gatepass.WithLookupTimeout(c.GetLookupTimeout()),
		gatepass.WithRotationGrace(c.GetRotationGrace()),
	)
	if err != nil {
		return err
	}

	devices, err := deviceauth.NewHMACSigner(c.GetDeviceTokenSecret(), c.GetDeviceTokenIssuer())
	if err != nil {
		return err
	}

	options := []server.Option{server.WithEnv(c.GetEnv()), server.WithIssuer(st.registry)}
	for name, check := range st.healthChecks {
		options = append(options, server.WithHealthCheck(name, check))
	}
	handler, err := server.New(validator, devices, options...)
	if err != nil {
		return err
	}

	if st.memoryCache != nil {
		go st.memoryCache.Run(ctx, c.GetEvictInterval())
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
