package input

import (
	"context"

	"data-agent/internal/domain/entity"
)

// TurnRunner answers one question. It always returns a populated result;
// agent-internal faults are reported through TurnResult.Err.
type TurnRunner interface {
	RunTurn(ctx context.Context, question string, history []entity.ChatMessage) entity.TurnResult
}
