package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/netgrok/netgrok/internal/capture"
	"github.com/netgrok/netgrok/internal/config"
	"github.com/netgrok/netgrok/internal/dashboard"
	"github.com/netgrok/netgrok/internal/ingest"
	"github.com/netgrok/netgrok/internal/subscriber"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newIngestCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [FILE|-]",
		Short: "Publish events for the sessions in a content log",
		Long: "Reads a content log where each session starts with a line\n" +
			"'<ssl|tcp> SRC_IP SRC_PORT DST_IP DST_PORT' followed by the session bytes.\n" +
			"Reads standard input when FILE is '-' or omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeInput, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeInput()

			a, cleanup, err := setupApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			stream := ingest.New(a.processor,
				ingest.WithMaxSessionBytes(cfg.MaxSessionBytes),
				ingest.WithLogger(a.log),
			)
			stats, err := stream.Run(cmd.Context(), in)
			fmt.Fprintf(cmd.OutOrStdout(), "sessions=%d failed=%d published=%d\n",
				stats.Sessions, stats.Failed, a.publisher.Sent())
			return err
		},
	}
}

func newReplayCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE.pcap",
		Short: "Publish events for the TCP streams in a pcap capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeInput, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeInput()

			a, cleanup, err := setupApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			replayer := capture.New(a.processor,
				capture.WithMaxSessionBytes(cfg.MaxSessionBytes),
				capture.WithLogger(a.log),
			)
			stats, err := replayer.Replay(cmd.Context(), in)
			fmt.Fprintf(cmd.OutOrStdout(), "packets=%d sessions=%d failed=%d published=%d\n",
				stats.Packets, stats.Sessions, stats.Failed, a.publisher.Sent())
			return err
		},
	}
}

func newSubscribeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe",
		Short: "Print events published on the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			sub := subscriber.New(cfg.PublisherEndpoint(), subscriber.WithLogger(newLogger(cfg)))
			return sub.Run(cmd.Context(), func(event string) error {
				_, err := fmt.Fprintln(out, event)
				return err
			})
		},
	}
}

func newWatchCmd(cfg *config.Config) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show published events in a live table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			endpoint := cfg.PublisherEndpoint()
			events := make(chan string, 256)
			subErr := make(chan error, 1)
			go func() {
				defer close(events)
				// Logs would corrupt the terminal UI.
				sub := subscriber.New(endpoint, subscriber.WithLogger(zerolog.Nop()))
				subErr <- sub.Run(ctx, func(event string) error {
					select {
					case events <- event:
					default:
					}
					return nil
				})
			}()

			program := tea.NewProgram(dashboard.NewModel(endpoint, events, rows),
				tea.WithContext(ctx),
				tea.WithAltScreen(),
			)
			_, err := program.Run()
			cancel()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return <-subErr
		},
	}
	cmd.Flags().IntVar(&rows, "rows", dashboard.DefaultRows, "Number of recent events shown")
	return cmd
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
