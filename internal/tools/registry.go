// Package tools exposes the workbook operations as named tools with JSON
// input schemas. Every call resolves to a structured result; errors and
// panics in a handler never escape Call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/logging"
	"excel-mcp/internal/store"
	"excel-mcp/internal/tracing"
	"excel-mcp/internal/trades"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// maxJournaledArgs caps the argument text kept per journaled call.
const maxJournaledArgs = 4096

// Handler runs a tool. A payload implementing Failed() bool reports partial
// failure without returning an error.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a registered tool.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	handler     Handler
}

// Definition returns the tool in function-calling form.
func (t *Tool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// Result is the outcome of a tool call.
type Result struct {
	Payload any
	IsError bool
}

// Text renders the payload as indented JSON.
func (r Result) Text() string {
	data, err := json.MarshalIndent(r.Payload, "", "  ")
	if err != nil {
		data, _ = json.Marshal(ErrorPayload{Status: StatusError, Message: err.Error(), ErrorType: apperrors.KindInternal})
	}
	return string(data)
}

// ErrorPayload is the result of a failed call.
type ErrorPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// NewErrorPayload converts err to its structured form.
func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{Status: StatusError, Message: err.Error(), ErrorType: apperrors.Kind(err)}
}

// Registry is an ordered set of tools.
type Registry struct {
	tools   []*Tool
	index   map[string]*Tool
	journal store.Journal
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry. journal may be nil.
func NewRegistry(journal store.Journal, logger zerolog.Logger) *Registry {
	return &Registry{
		index:   make(map[string]*Tool),
		journal: journal,
		logger:  logger.With().Str("component", "tools").Logger(),
	}
}

// Register adds a tool. Registering a name twice panics.
func (r *Registry) Register(name, description string, params jsonschema.Definition, handler Handler) {
	if _, dup := r.index[name]; dup {
		panic(fmt.Sprintf("tools: %s registered twice", name))
	}
	t := &Tool{Name: name, Description: description, Parameters: params, handler: handler}
	r.tools = append(r.tools, t)
	r.index[name] = t
}

// List returns the tools in registration order.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Definitions returns every tool in function-calling form.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

type callIDKey struct{}

// CallID returns the journal id of the tool call running in ctx.
func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// Call runs the named tool. The only error is NotFound for an unknown tool;
// every other failure is carried in the Result.
func (r *Registry) Call(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	t, ok := r.index[name]
	if !ok {
		return Result{}, apperrors.NotFoundf("unknown tool: %s", name)
	}

	id := uuid.NewString()
	logger := logging.WithTool(r.logger, name).With().Str("call_id", id).Logger()
	ctx = logging.WithLogger(context.WithValue(ctx, callIDKey{}, id), logger)
	ctx, span := tracing.StartSpan(ctx, "tools."+name)
	defer span.End()

	start := time.Now()
	res := r.invoke(ctx, t, raw, logger)
	elapsed := time.Since(start)

	call := &store.ToolCall{ID: id, Tool: name, Status: StatusSuccess, Args: truncate(string(raw), maxJournaledArgs), Duration: elapsed}
	if res.IsError {
		call.Status = StatusError
		switch p := res.Payload.(type) {
		case ErrorPayload:
			call.ErrorType, call.Message = p.ErrorType, p.Message
		case trades.BatchResult:
			call.ErrorType, call.Message = p.ErrorType, p.Message
		}
		span.SetStatus(codes.Error, call.ErrorType)
	}
	span.SetAttributes(attribute.String("tool.name", name), attribute.String("tool.status", call.Status))
	logging.LogToolCall(logger, name, call.Status, elapsed, call.ErrorType)

	if r.journal != nil {
		if err := r.journal.RecordCall(context.WithoutCancel(ctx), call); err != nil {
			logger.Warn().Err(err).Msg("Failed to journal tool call")
		}
	}
	return res, nil
}

func (r *Registry) invoke(ctx context.Context, t *Tool, raw json.RawMessage, logger zerolog.Logger) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("Tool handler panicked")
			res = Result{
				Payload: ErrorPayload{Status: StatusError, Message: fmt.Sprintf("internal error: %v", p), ErrorType: apperrors.KindInternal},
				IsError: true,
			}
		}
	}()

	args, err := ParseArgs(raw)
	if err != nil {
		return Result{Payload: NewErrorPayload(err), IsError: true}
	}

	payload, err := t.handler(ctx, args)
	if err != nil {
		return Result{Payload: NewErrorPayload(err), IsError: true}
	}
	if f, ok := payload.(interface{ Failed() bool }); ok && f.Failed() {
		return Result{Payload: payload, IsError: true}
	}
	return Result{Payload: payload}
}
