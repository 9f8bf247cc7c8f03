package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"larkmcp/internal/bus"
	"larkmcp/internal/domain"
)

// Emitter receives tool execution events. *bus.EventBus satisfies it.
type Emitter interface {
	Emit(event bus.Event)
}

// Registry holds all available tools and prompts and executes tools.
type Registry struct {
	mu      sync.RWMutex
	name    string
	tools   map[string]domain.Tool
	prompts map[string]domain.Prompt
	events  Emitter
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. name identifies the tool set ("lark", "oss") in events.
func NewRegistry(name string, events Emitter, logger *slog.Logger) *Registry {
	return &Registry{
		name:    name,
		tools:   make(map[string]domain.Tool),
		prompts: make(map[string]domain.Prompt),
		events:  events,
		logger:  logger,
	}
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.logger.Debug("registered tool", "name", t.Name())
}

func (r *Registry) RegisterPrompt(p domain.Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.Name] = p
}

func (r *Registry) Get(name string) domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

func (r *Registry) Prompt(name string) (domain.Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	return p, ok
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t := r.Get(name)
	if t == nil {
		return "", fmt.Errorf("unknown tool: %s (available: %v)", name, r.Names())
	}
	r.emit(bus.EventToolBeforeExecute, map[string]any{"tool": name})
	start := time.Now()
	result, err := t.Execute(ctx, args)
	payload := map[string]any{
		"tool":        name,
		"duration_ms": time.Since(start).Milliseconds(),
		"result_size": len(result),
	}
	if err != nil {
		payload["error"] = err.Error()
		r.logger.Warn("tool failed", "tool", name, "error", err)
	}
	r.emit(bus.EventToolAfterExecute, payload)
	return result, err
}

func (r *Registry) emit(typ string, payload map[string]any) {
	if r.events == nil {
		return
	}
	payload["toolset"] = r.name
	r.events.Emit(bus.Event{Type: typ, Source: "tool", Payload: payload})
}

// GetDefinitions returns tool definitions sorted by name.
func (r *Registry) GetDefinitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Prompts() []domain.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
	// Items is the element type for arrays.
	Items string
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if p.Type == "array" {
			items := p.Items
			if items == "" {
				items = "string"
			}
			prop["items"] = map[string]any{"type": items}
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ArgsBool reads a boolean, accepting "true"/"false" strings. Missing keys yield def.
func ArgsBool(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	case float64:
		return v != 0
	}
	return def
}

// ArgsStrings reads a list of strings. A single string becomes a one-element list.
func ArgsStrings(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func ArgsMap(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

func ArgsSlice(args map[string]any, key string) []any {
	s, _ := args[key].([]any)
	return s
}

// RequireArgs fails when any key is missing or empty.
func RequireArgs(args map[string]any, keys ...string) error {
	for _, k := range keys {
		if v, ok := args[k]; !ok || v == nil || v == "" {
			return fmt.Errorf("missing required argument %q", k)
		}
	}
	return nil
}

// RequirePresent fails only when a key is absent or null, so empty strings are accepted.
func RequirePresent(args map[string]any, keys ...string) error {
	for _, k := range keys {
		if v, ok := args[k]; !ok || v == nil {
			return fmt.Errorf("missing required argument %q", k)
		}
	}
	return nil
}

// funcTool adapts a plain function to domain.Tool.
type funcTool struct {
	name        string
	description string
	parameters  map[string]any
	run         func(ctx context.Context, args map[string]any) (string, error)
}

func (t *funcTool) Name() string               { return t.name }
func (t *funcTool) Description() string        { return t.description }
func (t *funcTool) Parameters() map[string]any { return t.parameters }
func (t *funcTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.run(ctx, args)
}

var _ domain.Tool = (*funcTool)(nil)

// jsonResult encodes a tool result.
func jsonResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

// errorResult is the {"error": reason} shape used for expected failures.
func errorResult(reason string) (string, error) {
	return jsonResult(map[string]string{"error": reason})
}
