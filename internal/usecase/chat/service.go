// Package chat keeps a conversation with the agent: it loads history, runs
// one turn at a time and stores both sides of each exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"data-agent/internal/application/port/input"
	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/usecase/assembler"
)

const DefaultLimitNotice = "The analysis did not finish in time."

var ErrEmptyQuestion = errors.New("question is empty")

// DatasetBinder swaps the table the tools work on and drops every variable
// defined against the previous one.
type DatasetBinder interface {
	Reset(ds *entity.Dataset) error
}

type Reply struct {
	Result   entity.TurnResult
	Response assembler.Response
}

type Service struct {
	mu          sync.Mutex
	runner      input.TurnRunner
	history     output.HistoryStore
	binder      DatasetBinder
	logger      output.LoggerPort
	limitNotice string
	now         func() time.Time
}

func NewService(runner input.TurnRunner, history output.HistoryStore, binder DatasetBinder, logger output.LoggerPort, limitNotice string) *Service {
	if limitNotice == "" {
		limitNotice = DefaultLimitNotice
	}
	return &Service{
		runner:      runner,
		history:     history,
		binder:      binder,
		logger:      logger,
		limitNotice: limitNotice,
		now:         time.Now,
	}
}

// Ask runs one turn. Agent faults are reported in Reply.Result.Err; the
// error return covers an empty question and history storage failures.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Reply{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithField("session", sessionID)

	history, err := s.history.List(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("load history: %w", err)
	}

	result := s.runner.RunTurn(ctx, question, history)
	response := assembler.Assemble(result.FinalText)
	if result.Err != nil {
		log.Error("Turn failed", "error", result.Err, "steps", len(result.Steps))
	} else {
		log.Info("Turn completed", "reason", result.StoppedReason, "steps", len(result.Steps), "segments", len(response.Segments))
	}

	content := response.Clean
	if !result.StoppedReason.Finished() {
		content = s.limitNotice
	}

	if err := s.history.Append(ctx, sessionID, entity.ChatMessage{
		Role:      entity.RoleUser,
		Content:   question,
		CreatedAt: s.now(),
	}); err != nil {
		return Reply{Result: result, Response: response}, fmt.Errorf("store question: %w", err)
	}
	if err := s.history.Append(ctx, sessionID, entity.ChatMessage{
		Role:      entity.RoleAssistant,
		Content:   content,
		Raw:       result.FinalText,
		CreatedAt: s.now(),
	}); err != nil {
		return Reply{Result: result, Response: response}, fmt.Errorf("store answer: %w", err)
	}

	return Reply{Result: result, Response: response}, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]entity.ChatMessage, error) {
	return s.history.List(ctx, sessionID)
}

// Reconfigure binds a new dataset. It waits for a running turn to finish.
func (s *Service) Reconfigure(ds *entity.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: no dataset loaded", entity.ErrConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.binder.Reset(ds); err != nil {
		return err
	}
	s.logger.Info("Dataset loaded", "name", ds.Name, "rows", ds.NumRows(), "columns", ds.NumCols())
	return nil
}
