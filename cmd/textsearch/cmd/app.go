package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"

	"github.com/Aman-CERP/textsearch/internal/config"
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/host"
	"github.com/Aman-CERP/textsearch/internal/output"
	"github.com/Aman-CERP/textsearch/internal/telemetry"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

// app holds the sessions and telemetry of one command invocation.
type app struct {
	cfg      *config.Config
	registry *host.Registry
	metrics  *telemetry.QueryMetrics
	store    *telemetry.Store
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if cfg.Telemetry.Enabled {
		a.metrics = telemetry.NewQueryMetrics()
	}

	registry, err := host.New(host.Config{
		MaxSessions: cfg.Host.MaxOpenSessions,
		SessionOptions: []textsearch.Option{
			textsearch.WithLogger(slog.Default()),
			textsearch.WithSearchLimit(cfg.Search.Limit),
			textsearch.WithQueryCacheSize(cfg.Search.QueryCacheSize),
		},
		Metrics: a.metrics,
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	a.registry = registry
	return a, nil
}

// telemetryStore opens the telemetry database on first use.
func (r *app) telemetryStore() (*telemetry.Store, error) {
	if r.store == nil {
		store, err := telemetry.OpenStore(r.cfg.Telemetry.Path)
		if err != nil {
			return nil, err
		}
		r.store = store
	}
	return r.store, nil
}

// flush writes buffered telemetry. It does nothing when telemetry is
// disabled or nothing was recorded.
func (r *app) flush(ctx context.Context) error {
	if r.metrics == nil {
		return nil
	}
	if days, _, _ := r.metrics.Pending(); days == 0 {
		return nil
	}
	store, err := r.telemetryStore()
	if err != nil {
		return err
	}
	return store.Flush(ctx, r.metrics)
}

// Close closes every session, discarding uncommitted documents, and
// flushes telemetry. Telemetry failures are logged, not returned.
func (r *app) Close(ctx context.Context) {
	r.registry.Close()
	if err := r.flush(ctx); err != nil {
		slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// mappingFlags are shared by the commands that may create an index.
type mappingFlags struct {
	inline string
	file   string
}

func (m *mappingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.inline, "mapping", "", "Index mapping as JSON")
	cmd.Flags().StringVar(&m.file, "mapping-file", "", "Index mapping file (JSON with comments allowed)")
	cmd.MarkFlagsMutuallyExclusive("mapping", "mapping-file")
}

func (m *mappingFlags) set() bool {
	return m.inline != "" || m.file != ""
}

// read returns the mapping as standard JSON. Comments and trailing
// commas are accepted in both forms.
func (m *mappingFlags) read() ([]byte, error) {
	data := []byte(m.inline)
	if m.file != "" {
		var err error
		data, err = os.ReadFile(m.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping file: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, errors.New("a mapping is required: use --mapping or --mapping-file")
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeMappingMalformed, "mapping is not valid JSON", err).
			WithSuggestion("Check the mapping for unbalanced braces or quotes")
	}
	return std, nil
}

// session opens the index at path, creating it when a mapping is given.
func (r *app) session(ctx context.Context, path string, m *mappingFlags) (*textsearch.Session, error) {
	if m != nil && m.set() {
		mapping, err := m.read()
		if err != nil {
			return nil, err
		}
		return r.registry.Create(ctx, path, mapping)
	}
	return r.registry.Get(ctx, path)
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, out *output.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(currentConfig())
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a, output.New(cmd.OutOrStdout()))
}
