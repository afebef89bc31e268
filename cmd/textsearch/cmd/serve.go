package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textsearch/internal/mcp"
	"github.com/Aman-CERP/textsearch/internal/output"
)

// telemetryFlushInterval is how often the server persists query telemetry.
const telemetryFlushInterval = time.Minute

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server on stdio.

Every index operation is exposed as a tool taking the index path:
create_index, drop_index, add, commit, rollback, search, find and
aggregate. Logs go to ~/.textsearch/logs/textsearch.log since stdout
carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app, _ *output.Writer) error {
				return runServe(ctx, a, transport)
			})
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")

	return cmd
}

func runServe(ctx context.Context, a *app, transport string) error {
	srv, err := mcp.NewServer(a.registry, slog.Default())
	if err != nil {
		return err
	}

	if a.metrics != nil {
		store, err := a.telemetryStore()
		if err != nil {
			slog.Warn("telemetry_unavailable", slog.String("error", err.Error()))
		} else {
			srv.SetTelemetry(store)
			flushCtx, stop := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				flushPeriodically(flushCtx, a)
			}()
			// The final flush happens in app.Close, after this one stops.
			defer func() {
				stop()
				<-done
			}()
		}
	}

	err = srv.Serve(ctx, transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func flushPeriodically(ctx context.Context, a *app) {
	ticker := time.NewTicker(telemetryFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.flush(ctx); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		}
	}
}
