package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chirp-labs/chirp/internal/domain"
)

// MockTask is a mock implementation of Task
type MockTask struct {
	mock.Mock
	mu    sync.Mutex
	count int
}

func (m *MockTask) Run(ctx context.Context) error {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTask) runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// MockChunkSweepStore is a mock implementation of ChunkSweepStore
type MockChunkSweepStore struct {
	mock.Mock
}

func (m *MockChunkSweepStore) ListSupersededVersions(ctx context.Context) ([]domain.SupersededVersion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SupersededVersion), args.Error(1)
}

func (m *MockChunkSweepStore) DeleteVersion(ctx context.Context, botID string, version int64) (int64, error) {
	args := m.Called(ctx, botID, version)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessionSweepStore is a mock implementation of SessionSweepStore
type MockSessionSweepStore struct {
	mock.Mock
}

func (m *MockSessionSweepStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type countingPruner struct {
	mu    sync.Mutex
	count int
}

func (p *countingPruner) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return 0
}

func TestWorker_RunsTaskOnInterval(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything).Return(nil)

	worker := NewWorker(task, 10*time.Millisecond)
	go worker.Start(context.Background())

	time.Sleep(55 * time.Millisecond)
	worker.Stop()

	assert.GreaterOrEqual(t, task.runs(), 2)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	worker := NewWorker(task, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}

func TestWorker_KeepsRunningAfterTaskError(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything).Return(errors.New("sweep failed"))

	worker := NewWorker(task, 10*time.Millisecond)
	go worker.Start(context.Background())

	time.Sleep(45 * time.Millisecond)
	worker.Stop()

	assert.GreaterOrEqual(t, task.runs(), 2)
}

func TestSweeper_Run(t *testing.T) {
	chunks := new(MockChunkSweepStore)
	sessions := new(MockSessionSweepStore)
	pruner := &countingPruner{}
	sweeper := NewSweeper(chunks, sessions, pruner)
	ctx := context.Background()

	stale := []domain.SupersededVersion{
		{BotID: "bot-1", Version: 2},
		{BotID: "bot-2", Version: 7},
	}
	chunks.On("ListSupersededVersions", ctx).Return(stale, nil)
	chunks.On("DeleteVersion", ctx, "bot-1", int64(2)).Return(int64(12), nil)
	chunks.On("DeleteVersion", ctx, "bot-2", int64(7)).Return(int64(3), nil)
	sessions.On("DeleteExpired", ctx).Return(int64(1), nil)

	require.NoError(t, sweeper.Run(ctx))

	assert.Equal(t, 1, pruner.count)
	chunks.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestSweeper_Run_ContinuesPastFailures(t *testing.T) {
	chunks := new(MockChunkSweepStore)
	sessions := new(MockSessionSweepStore)
	sweeper := NewSweeper(chunks, sessions, &countingPruner{})
	ctx := context.Background()

	stale := []domain.SupersededVersion{
		{BotID: "bot-1", Version: 2},
		{BotID: "bot-2", Version: 7},
	}
	boom := errors.New("delete failed")
	chunks.On("ListSupersededVersions", ctx).Return(stale, nil)
	chunks.On("DeleteVersion", ctx, "bot-1", int64(2)).Return(int64(0), boom)
	chunks.On("DeleteVersion", ctx, "bot-2", int64(7)).Return(int64(3), nil)
	sessions.On("DeleteExpired", ctx).Return(int64(0), nil)

	err := sweeper.Run(ctx)

	assert.ErrorIs(t, err, boom)
	// The second version and the sessions were still swept.
	chunks.AssertCalled(t, "DeleteVersion", ctx, "bot-2", int64(7))
	sessions.AssertCalled(t, "DeleteExpired", ctx)
}

func TestSweeper_Run_NothingToDo(t *testing.T) {
	chunks := new(MockChunkSweepStore)
	sweeper := NewSweeper(chunks, nil, nil)
	ctx := context.Background()

	chunks.On("ListSupersededVersions", ctx).Return([]domain.SupersededVersion{}, nil)

	assert.NoError(t, sweeper.Run(ctx))
}
