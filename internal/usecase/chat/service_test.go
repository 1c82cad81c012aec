package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu       sync.Mutex
	messages map[string][]entity.ChatMessage
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{messages: map[string][]entity.ChatMessage{}}
}

func (m *memoryStore) Append(ctx context.Context, sessionID string, msg entity.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return nil
}

func (m *memoryStore) List(ctx context.Context, sessionID string) ([]entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]entity.ChatMessage(nil), m.messages[sessionID]...), nil
}

func (m *memoryStore) Close() error { return nil }

type stubRunner struct {
	result    entity.TurnResult
	histories [][]entity.ChatMessage
}

func (r *stubRunner) RunTurn(ctx context.Context, question string, history []entity.ChatMessage) entity.TurnResult {
	r.histories = append(r.histories, history)
	return r.result
}

type stubBinder struct {
	bound *entity.Dataset
}

func (b *stubBinder) Reset(ds *entity.Dataset) error {
	b.bound = ds
	return nil
}

func TestService_AskStoresCleanAndRaw(t *testing.T) {
	runner := &stubRunner{result: entity.TurnResult{
		FinalText:     "Sales peak in March. [CHART:charts/chart_1.png]",
		StoppedReason: entity.StopAnswered,
	}}
	store := newMemoryStore()
	svc := NewService(runner, store, &stubBinder{}, logger.NewNop(), "")

	reply, err := svc.Ask(context.Background(), "s1", "  When do sales peak?  ")
	require.NoError(t, err)

	assert.Equal(t, "Sales peak in March.", reply.Response.Clean)
	require.Len(t, reply.Response.Segments, 2)
	assert.Equal(t, entity.SegmentChart, reply.Response.Segments[1].Kind)

	history, err := svc.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.RoleUser, history[0].Role)
	assert.Equal(t, "When do sales peak?", history[0].Content)
	assert.Equal(t, entity.RoleAssistant, history[1].Role)
	assert.Equal(t, "Sales peak in March.", history[1].Content)
	assert.Equal(t, runner.result.FinalText, history[1].Raw)
}

func TestService_AskPassesPriorHistory(t *testing.T) {
	runner := &stubRunner{result: entity.TurnResult{FinalText: "ok", StoppedReason: entity.StopAnswered}}
	svc := NewService(runner, newMemoryStore(), &stubBinder{}, logger.NewNop(), "")

	_, err := svc.Ask(context.Background(), "s1", "first")
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), "s1", "second")
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), "other", "third")
	require.NoError(t, err)

	require.Len(t, runner.histories, 3)
	assert.Empty(t, runner.histories[0])
	assert.Len(t, runner.histories[1], 2)
	assert.Empty(t, runner.histories[2])
}

func TestService_LimitStoresNotice(t *testing.T) {
	runner := &stubRunner{result: entity.TurnResult{
		FinalText:     "Partial: the mean is 4.2",
		StoppedReason: entity.StopIterationLimit,
	}}
	store := newMemoryStore()
	svc := NewService(runner, store, &stubBinder{}, logger.NewNop(), "")

	reply, err := svc.Ask(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "Partial: the mean is 4.2", reply.Response.Clean)

	history, _ := store.List(context.Background(), "s1")
	require.Len(t, history, 2)
	assert.Equal(t, DefaultLimitNotice, history[1].Content)
	assert.Equal(t, "Partial: the mean is 4.2", history[1].Raw)
}

func TestService_TurnErrorIsInResult(t *testing.T) {
	turnErr := errors.Join(entity.ErrCompletionService, errors.New("timeout"))
	runner := &stubRunner{result: entity.TurnResult{
		FinalText:     "Sorry, the service failed.",
		StoppedReason: entity.StopAnswered,
		Err:           turnErr,
	}}
	svc := NewService(runner, newMemoryStore(), &stubBinder{}, logger.NewNop(), "")

	reply, err := svc.Ask(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.True(t, errors.Is(reply.Result.Err, entity.ErrCompletionService))
}

func TestService_EmptyQuestion(t *testing.T) {
	svc := NewService(&stubRunner{}, newMemoryStore(), &stubBinder{}, logger.NewNop(), "")

	_, err := svc.Ask(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestService_HistoryFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("database is locked")
	runner := &stubRunner{}
	svc := NewService(runner, store, &stubBinder{}, logger.NewNop(), "")

	_, err := svc.Ask(context.Background(), "s1", "q")
	assert.Error(t, err)
	assert.Empty(t, runner.histories)
}

func TestService_Reconfigure(t *testing.T) {
	binder := &stubBinder{}
	svc := NewService(&stubRunner{}, newMemoryStore(), binder, logger.NewNop(), "")

	ds, err := entity.NewDataset("b.csv", []string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)
	require.NoError(t, svc.Reconfigure(ds))
	assert.Same(t, ds, binder.bound)

	assert.ErrorIs(t, svc.Reconfigure(nil), entity.ErrConfiguration)
}
