// netgrok extracts connection metadata from session bytes and publishes one
// JSON event per session on a broadcast endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netgrok/netgrok/internal/config"
	"github.com/netgrok/netgrok/internal/filter"
	"github.com/netgrok/netgrok/internal/otel"
	"github.com/netgrok/netgrok/internal/pipeline"
	"github.com/netgrok/netgrok/internal/publisher"
	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = newRootCmd(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "netgrok",
		Short:         "Publish connection metadata extracted from session bytes",
		Version:       fmt.Sprintf("%s (%s) %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cfg.Validate()
		},
	}
	cfg.BindFlags(root)

	root.AddCommand(
		newIngestCmd(cfg),
		newReplayCmd(cfg),
		newSubscribeCmd(cfg),
		newWatchCmd(cfg),
	)
	return root
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().
		Timestamp().
		Logger()
}

// app holds the publishing side shared by ingest and replay.
type app struct {
	log       zerolog.Logger
	publisher *publisher.Publisher
	processor *pipeline.Processor
}

// setupApp builds the pipeline and returns a cleanup that tears down the
// publisher and flushes spans.
func setupApp(cfg *config.Config) (*app, func(), error) {
	log := newLogger(cfg)

	f, err := filter.Compile(cfg.Filter)
	if err != nil {
		return nil, nil, err
	}

	provider, err := otel.InitProvider(&cfg.OTEL, version, log)
	if err != nil {
		return nil, nil, fmt.Errorf("ABORT: failed to initialize OTEL provider: %w", err)
	}

	pub := publisher.New(cfg.PublisherEndpoint(), publisher.WithLogger(log))
	processor := pipeline.NewProcessor(pub,
		pipeline.WithScanner(scanner.New(scanner.WithLimits(cfg.ScannerLimits()))),
		pipeline.WithFilter(f),
		pipeline.WithTracer(provider.Tracer()),
		pipeline.WithLogger(log),
	)

	cleanup := func() {
		if err := pub.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutting down publisher")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutting down OTEL provider")
		}
	}

	return &app{log: log, publisher: pub, processor: processor}, cleanup, nil
}
