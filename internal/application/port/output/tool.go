package output

import (
	"context"

	"data-agent/internal/domain/entity"
)

// ToolPort is a named capability the model may invoke. Invoke reports snippet
// failures inside the returned Observation; the error return is reserved for
// faults that keep the tool from running at all.
type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Invoke(ctx context.Context, input string) (entity.Observation, error)
}

type ToolRegistry interface {
	Register(tool ToolPort) error
	Resolve(name string) (ToolPort, bool)
	List() []ToolPort
}
