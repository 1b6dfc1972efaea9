package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/monitor"
)

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
	decl   core.ToolSchema
}

// Registry holds the tool declarations of a process and dispatches calls to
// them. Declarations are registered once at startup.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]entry
	timeout     time.Duration
	maxParallel int
	logger      zerolog.Logger
}

type Option func(*Registry)

// WithTimeout bounds every single tool execution. Zero means no deadline
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithMaxParallel bounds ExecuteAll fan-out.
func WithMaxParallel(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logging.Component(l, "tools") }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:       make(map[string]entry),
		maxParallel: 4,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register compiles the tool's parameter schema and adds it. Names are unique.
func (r *Registry) Register(t Tool) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.Parameters()))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	r.tools[t.Name()] = entry{tool: t, schema: schema, decl: ToSchema(t)}
	return nil
}

func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.tool, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns every declaration, sorted by name.
func (r *Registry) Schemas() []core.ToolSchema {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]core.ToolSchema, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, r.tools[name].decl)
	}
	return schemas
}

// Execute runs one call. It never returns an error: unknown tools, invalid
// arguments, failures and panics all come back as an error payload.
func (r *Registry) Execute(ctx context.Context, call core.ToolCall) (result core.ToolResult) {
	start := time.Now()
	log := r.logger.With().Str("tool", call.Name).Str("tool_call_id", call.ID).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("tool panicked")
			result = core.NewToolError(call, fmt.Sprintf("tool %s failed: %v", call.Name, p))
		}
		monitor.ObserveTool(r.metricLabel(call.Name), result.IsError, time.Since(start))
	}()

	payload, err := r.invoke(ctx, call)
	if err != nil {
		log.Warn().Err(err).Msg("tool call failed")
		return core.NewToolError(call, err.Error())
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("tool call succeeded")
	return core.NewToolResult(call, payload)
}

// metricLabel keeps model-supplied names out of metric labels unless they
// are registered.
func (r *Registry) metricLabel(name string) string {
	if _, ok := r.Get(name); ok {
		return name
	}
	return monitor.UnknownTool
}

func (r *Registry) invoke(ctx context.Context, call core.ToolCall) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &core.ToolError{Kind: core.ToolErrUnknown, Tool: call.Name}
	}

	args, err := validateArgs(e.schema, call.Arguments)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolErrInvalidArguments, Tool: call.Name, Err: err}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	payload, err := e.tool.Execute(ctx, args)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s: %w", call.Name, core.ErrTimeout)
	}
	return payload, err
}

func validateArgs(schema *gojsonschema.Schema, raw json.RawMessage) (json.RawMessage, error) {
	args := raw
	if trimmed := strings.TrimSpace(string(raw)); trimmed == "" || trimmed == "null" {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, errors.New("arguments are not valid JSON")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}
	return args, nil
}
