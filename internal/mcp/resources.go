package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/textsearch/internal/telemetry"
)

const (
	sessionsURI     = "textsearch://sessions"
	queryMetricsURI = "textsearch://query_metrics"

	// metricsWindow is the period summarized by the query_metrics resource.
	metricsWindow = 7 * 24 * time.Hour

	metricsLimit = 20
)

// SessionOutput describes one open index for the sessions resource.
type SessionOutput struct {
	Path    string          `json:"path"`
	Pending int             `json:"pending"`
	Mapping json.RawMessage `json:"mapping"`
}

func (s *Server) registerSessionsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "sessions",
			URI:         sessionsURI,
			Description: "Indexes currently open in this server, with their mappings",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.sessionsJSON(ctx)
			if err != nil {
				return nil, MapError(err)
			}
			return jsonResult(sessionsURI, content), nil
		},
	)
}

// sessionsJSON renders the open sessions, least recently used first.
func (s *Server) sessionsJSON(ctx context.Context) ([]byte, error) {
	out := []SessionOutput{}
	for _, path := range s.registry.Paths() {
		sess, err := s.registry.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		out = append(out, SessionOutput{
			Path:    path,
			Pending: sess.Pending(),
			Mapping: sess.Schema().Mapping(),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsURI,
			Description: "Query telemetry of the last seven days",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.queryMetricsJSON(ctx)
			if err != nil {
				return nil, MapError(err)
			}
			return jsonResult(queryMetricsURI, content), nil
		},
	)
}

func (s *Server) queryMetricsJSON(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}

	now := time.Now()
	summary, err := store.Summary(ctx, now.Add(-metricsWindow), now, metricsLimit)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(struct {
		TimePeriod string `json:"time_period"`
		*telemetry.Summary
	}{"7d", summary}, "", "  ")
}

func jsonResult(uri string, content []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}
}
