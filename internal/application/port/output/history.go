package output

import (
	"context"

	"data-agent/internal/domain/entity"
)

type HistoryStore interface {
	Append(ctx context.Context, sessionID string, msg entity.ChatMessage) error
	List(ctx context.Context, sessionID string) ([]entity.ChatMessage, error)
	Close() error
}
