package domain

import "context"

// Tool is the interface for capabilities exposed to the tool host (lark messaging, object storage).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolDefinition is the listing form of a Tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Prompt is a canned instruction template served next to the tools.
type Prompt struct {
	Name        string
	Description string
	Text        string
}
