package tools

import (
	"context"
	"encoding/json"

	"github.com/hubenschmidt/go-orchestra/core"
)

// Tool is a named function the model may call. Execute receives arguments
// that already passed validation against Parameters and returns a value that
// marshals to a JSON object.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

func ToSchema(t Tool) core.ToolSchema {
	return core.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
		Required:    requiredParams(t.Parameters()),
	}
}

func requiredParams(params json.RawMessage) []string {
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(params, &schema); err != nil {
		return nil
	}
	return schema.Required
}
