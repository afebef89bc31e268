package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/host"
	"github.com/Aman-CERP/textsearch/internal/telemetry"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
	"github.com/Aman-CERP/textsearch/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "textsearch"

// Server is the MCP server for textsearch. Every tool names its index by
// path; sessions are shared through the host registry.
type Server struct {
	mcp      *mcp.Server
	registry *host.Registry
	logger   *slog.Logger

	// Persistent telemetry (optional, set via SetTelemetry)
	store *telemetry.Store

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "create_index",
		Description: "Create or open the index at path with a JSON mapping. Reopening with a different mapping fails with a schema mismatch.",
	},
	{
		Name:        "drop_index",
		Description: "Remove the index at path. Fails while another process holds the index.",
	},
	{
		Name:        "add",
		Description: "Add one JSON document. It becomes searchable after commit; set skip_commit to batch several adds.",
	},
	{
		Name:        "commit",
		Description: "Make all pending documents searchable.",
	},
	{
		Name:        "rollback",
		Description: "Discard all pending documents.",
	},
	{
		Name:        "search",
		Description: "Free-text search over the search fields. Returns the stored fields of each hit, best first.",
	},
	{
		Name:        "find",
		Description: "Look up documents by identifier value. Returns the return field of each hit.",
	},
	{
		Name:        "aggregate",
		Description: "Run a JSON aggregation request (value_count, sum, avg, min, max, stats, terms, range) over the documents matching query.",
	},
}

// NewServer creates a new MCP server over registry.
func NewServer(registry *host.Registry, logger *slog.Logger) (*Server, error) {
	if registry == nil {
		return nil, errors.New("session registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: registry,
		logger:   logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerSessionsResource()

	return s, nil
}

// SetTelemetry attaches the telemetry store and registers the
// query_metrics resource.
func (s *Server) SetTelemetry(store *telemetry.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store

	if store != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with the given arguments, decoding them
// the way the MCP SDK does for registered handlers.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "create_index":
		return call(ctx, args, s.mcpCreateIndexHandler)
	case "drop_index":
		return call(ctx, args, s.mcpDropIndexHandler)
	case "add":
		return call(ctx, args, s.mcpAddHandler)
	case "commit":
		return call(ctx, args, s.mcpCommitHandler)
	case "rollback":
		return call(ctx, args, s.mcpRollbackHandler)
	case "search":
		return call(ctx, args, s.mcpSearchHandler)
	case "find":
		return call(ctx, args, s.mcpFindHandler)
	case "aggregate":
		return call(ctx, args, s.mcpAggregateHandler)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func call[In, Out any](ctx context.Context, args map[string]any, h mcp.ToolHandlerFor[In, Out]) (any, error) {
	var in In
	data, err := json.Marshal(args)
	if err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	_, out, err := h(ctx, nil, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, toolDef("create_index"), s.mcpCreateIndexHandler)
	mcp.AddTool(s.mcp, toolDef("drop_index"), s.mcpDropIndexHandler)
	mcp.AddTool(s.mcp, toolDef("add"), s.mcpAddHandler)
	mcp.AddTool(s.mcp, toolDef("commit"), s.mcpCommitHandler)
	mcp.AddTool(s.mcp, toolDef("rollback"), s.mcpRollbackHandler)
	mcp.AddTool(s.mcp, toolDef("search"), s.mcpSearchHandler)
	mcp.AddTool(s.mcp, toolDef("find"), s.mcpFindHandler)
	mcp.AddTool(s.mcp, toolDef("aggregate"), s.mcpAggregateHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

func toolDef(name string) *mcp.Tool {
	for _, t := range tools {
		if t.Name == name {
			return &mcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	panic("mcp: unknown tool " + name)
}

func requirePath(path string) error {
	if path == "" {
		return NewInvalidParamsError("path parameter is required")
	}
	return nil
}

// handled logs the outcome of a tool call and maps its error.
func (s *Server) handled(tool, requestID string, start time.Time, err error) error {
	duration := time.Since(start)
	if err != nil {
		attrs := append([]any{
			slog.String("tool", tool),
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
		}, tserrors.LogAttrs(err)...)
		s.logger.Warn("tool_failed", attrs...)
		return MapError(err)
	}
	s.logger.Debug("tool_completed",
		slog.String("tool", tool),
		slog.String("request_id", requestID),
		slog.Duration("duration", duration))
	return nil
}

func (s *Server) mcpCreateIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input CreateIndexInput) (
	*mcp.CallToolResult,
	CreateIndexOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, CreateIndexOutput{}, err
	}
	if input.Mapping == "" {
		return nil, CreateIndexOutput{}, NewInvalidParamsError("mapping parameter is required")
	}

	start, requestID := time.Now(), generateRequestID()
	sess, err := s.registry.Create(ctx, input.Path, []byte(input.Mapping))
	if err != nil {
		return nil, CreateIndexOutput{}, s.handled("create_index", requestID, start, err)
	}
	out, err := Describe(sess)
	return nil, out, s.handled("create_index", requestID, start, err)
}

// Describe reports the schema, roles and document count of sess.
func Describe(sess *textsearch.Session) (CreateIndexOutput, error) {
	sch := sess.Schema()
	roles := sch.Roles()
	count, err := sess.DocCount()
	if err != nil {
		return CreateIndexOutput{}, err
	}
	out := CreateIndexOutput{
		Path:      sess.Path(),
		Search:    roles.SearchFields,
		ID:        roles.IDField,
		Return:    roles.ReturnField,
		Documents: count,
	}
	for _, f := range sch.Fields() {
		out.Fields = append(out.Fields, FieldOutput{
			Name:    f.Name,
			Type:    f.Kind.String(),
			Options: f.Options.String(),
		})
	}
	return out, nil
}

func (s *Server) mcpDropIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input PathInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, StatusOutput{}, err
	}
	start, requestID := time.Now(), generateRequestID()
	if err := s.registry.Drop(input.Path); err != nil {
		return nil, StatusOutput{}, s.handled("drop_index", requestID, start, err)
	}
	return nil, StatusOutput{OK: true, Message: fmt.Sprintf("dropped %s", input.Path)},
		s.handled("drop_index", requestID, start, nil)
}

func (s *Server) mcpAddHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, StatusOutput{}, err
	}
	if input.Document == "" {
		return nil, StatusOutput{}, NewInvalidParamsError("document parameter is required")
	}

	start, requestID := time.Now(), generateRequestID()
	sess, err := s.registry.Get(ctx, input.Path)
	if err == nil {
		err = sess.Add(ctx, []byte(input.Document), input.SkipCommit)
	}
	if err != nil {
		return nil, StatusOutput{}, s.handled("add", requestID, start, err)
	}
	return nil, StatusOutput{OK: true, Pending: sess.Pending()}, s.handled("add", requestID, start, nil)
}

func (s *Server) mcpCommitHandler(ctx context.Context, _ *mcp.CallToolRequest, input PathInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	return s.transact(ctx, "commit", input, (*textsearch.Session).Commit)
}

func (s *Server) mcpRollbackHandler(ctx context.Context, _ *mcp.CallToolRequest, input PathInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	return s.transact(ctx, "rollback", input, (*textsearch.Session).Rollback)
}

func (s *Server) transact(ctx context.Context, tool string, input PathInput,
	fn func(*textsearch.Session, context.Context) error,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := requirePath(input.Path); err != nil {
		return nil, StatusOutput{}, err
	}

	start, requestID := time.Now(), generateRequestID()
	sess, err := s.registry.Get(ctx, input.Path)
	if err != nil {
		return nil, StatusOutput{}, s.handled(tool, requestID, start, err)
	}
	pending := sess.Pending()
	if err := fn(sess, ctx); err != nil {
		return nil, StatusOutput{}, s.handled(tool, requestID, start, err)
	}
	return nil, StatusOutput{OK: true, Message: fmt.Sprintf("%d documents", pending)},
		s.handled(tool, requestID, start, nil)
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	textsearch.SearchOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, textsearch.SearchOutput{}, err
	}
	start, requestID := time.Now(), generateRequestID()
	out, err := s.registry.Search(ctx, input.Path, textsearch.SearchInput{
		SearchFields: input.SearchFields,
		Query:        input.Query,
		ReturnFields: input.ReturnFields,
		Limit:        input.Limit,
	})
	if err != nil {
		return nil, textsearch.SearchOutput{}, s.handled("search", requestID, start, err)
	}
	return nil, *out, s.handled("search", requestID, start, nil)
}

func (s *Server) mcpFindHandler(ctx context.Context, _ *mcp.CallToolRequest, input FindInput) (
	*mcp.CallToolResult,
	textsearch.SearchOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, textsearch.SearchOutput{}, err
	}
	start, requestID := time.Now(), generateRequestID()
	out, err := s.registry.Find(ctx, input.Path, input.Query)
	if err != nil {
		return nil, textsearch.SearchOutput{}, s.handled("find", requestID, start, err)
	}
	return nil, *out, s.handled("find", requestID, start, nil)
}

func (s *Server) mcpAggregateHandler(ctx context.Context, _ *mcp.CallToolRequest, input AggregateInput) (
	*mcp.CallToolResult,
	textsearch.AggregateOutput,
	error,
) {
	if err := requirePath(input.Path); err != nil {
		return nil, textsearch.AggregateOutput{}, err
	}
	if input.Aggregation == "" {
		return nil, textsearch.AggregateOutput{}, NewInvalidParamsError("aggregation parameter is required")
	}
	start, requestID := time.Now(), generateRequestID()
	out, err := s.registry.Aggregate(ctx, input.Path, input.Query, input.Aggregation)
	if err != nil {
		return nil, textsearch.AggregateOutput{}, s.handled("aggregate", requestID, start, err)
	}
	return nil, *out, s.handled("aggregate", requestID, start, nil)
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short random ID for request correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
