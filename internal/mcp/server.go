// Package mcp serves the tool registry over the Model Context Protocol
// streamable HTTP transport.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"excel-mcp/internal/logging"
	"excel-mcp/internal/tools"
)

// ServerName is reported in initialize.
const ServerName = "mcp-excel-server"

// SessionHeader carries the session id issued on initialize.
const SessionHeader = mcpserver.HeaderKeySessionID

const (
	// sessionTTL is how long an idle session id stays valid.
	sessionTTL = 24 * time.Hour

	// maxBodyBytes bounds one POSTed message.
	maxBodyBytes = 4 << 20
)

const instructions = "Tools for updating Excel workbooks in SharePoint or OneDrive. " +
	"Structured arguments (arrays of values, trades) are passed as JSON-encoded strings."

// Server exposes a tool registry as an MCP endpoint.
type Server struct {
	registry  *tools.Registry
	sessions  *Sessions
	mcp       *mcpserver.MCPServer
	transport *mcpserver.StreamableHTTPServer
	logger    zerolog.Logger
}

// NewServer registers every tool of registry with an MCP server.
func NewServer(registry *tools.Registry, version string, logger zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		sessions: NewSessions(sessionTTL),
		logger:   logger.With().Str("component", "mcp").Logger(),
	}

	hooks := &mcpserver.Hooks{}
	hooks.AddAfterInitialize(s.afterInitialize)
	hooks.AddOnError(func(ctx context.Context, id any, method mcpgo.MCPMethod, message any, err error) {
		logging.WithOperation(s.logger, string(method)).Debug().Err(err).Msg("MCP request failed")
	})

	s.mcp = mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(instructions),
		mcpserver.WithHooks(hooks),
		mcpserver.WithRecovery(),
	)
	for _, t := range registry.List() {
		s.mcp.AddTool(toolInfo(t), s.callTool(t.Name))
	}

	s.transport = mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithSessionIdManager(s.sessions),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return logging.WithLogger(ctx, *hlog.FromRequest(r))
		}),
		mcpserver.WithLogger(sdkLogger{s.logger}),
	)
	return s
}

// ServeHTTP implements the streamable HTTP transport.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	s.transport.ServeHTTP(w, r)
}

// Sessions returns the session ids issued by the server.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) afterInitialize(ctx context.Context, id any, req *mcpgo.InitializeRequest, res *mcpgo.InitializeResult) {
	event := s.logger.Info().
		Str("client", req.Params.ClientInfo.Name).
		Str("client_version", req.Params.ClientInfo.Version).
		Str("protocol_version", res.ProtocolVersion)
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		event = event.Str("session_id", session.SessionID())
	}
	event.Msg("Client initialized")
}

// callTool adapts a registry entry to an MCP tool handler. Tool failures are
// results with isError set, never protocol errors.
func (s *Server) callTool(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		raw, err := rawArguments(req.GetRawArguments())
		if err != nil {
			return nil, err
		}
		res, err := s.registry.Call(ctx, name, raw)
		if err != nil {
			return nil, err
		}
		return &mcpgo.CallToolResult{
			Content:           []mcpgo.Content{mcpgo.NewTextContent(res.Text())},
			StructuredContent: res.Payload,
			IsError:           res.IsError,
		}, nil
	}
}

func toolInfo(t *tools.Tool) mcpgo.Tool {
	schema, err := json.Marshal(t.Parameters)
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return mcpgo.NewToolWithRawSchema(t.Name, t.Description, schema)
}

func rawArguments(args any) (json.RawMessage, error) {
	switch a := args.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return a, nil
	}
	return json.Marshal(args)
}

// Sessions tracks issued session ids. Lookups extend a session; ids that were
// never issued, have expired or were closed are reported as terminated.
type Sessions struct {
	cache *cache.Cache
}

// NewSessions creates a session store with the given idle TTL.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{cache: cache.New(ttl, time.Hour)}
}

// Generate issues a new session id.
func (s *Sessions) Generate() string {
	id := uuid.NewString()
	s.cache.SetDefault(id, time.Now())
	return id
}

// Validate accepts an empty id (stateless clients) and any live session.
func (s *Sessions) Validate(id string) (isTerminated bool, err error) {
	if id == "" {
		return false, nil
	}
	issued, ok := s.cache.Get(id)
	if !ok {
		return true, nil
	}
	s.cache.SetDefault(id, issued)
	return false, nil
}

// Terminate closes a session.
func (s *Sessions) Terminate(id string) (isNotAllowed bool, err error) {
	s.cache.Delete(id)
	return false, nil
}

// Active reports whether id is a live session.
func (s *Sessions) Active(id string) bool {
	_, ok := s.cache.Get(id)
	return ok
}

// sdkLogger routes transport logs through zerolog.
type sdkLogger struct {
	logger zerolog.Logger
}

func (l sdkLogger) Infof(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

func (l sdkLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}
