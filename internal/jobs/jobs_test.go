package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sprinklerprep/internal/exam"
	"sprinklerprep/internal/loader"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/repositories"
	"sprinklerprep/internal/statestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type loaderFunc func(ctx context.Context) (*loader.Bank, error)

func (f loaderFunc) Load(ctx context.Context) (*loader.Bank, error) { return f(ctx) }

func bankOf(ids ...string) *loader.Bank {
	b := &loader.Bank{LoadedAt: time.Now()}
	for _, id := range ids {
		b.Questions = append(b.Questions, models.Question{ID: id})
	}
	return b
}

func TestBankReloadJob_RunReload(t *testing.T) {
	repo := repositories.NewQuestionRepository(zap.NewNop())
	repo.Replace(bankOf("a"))

	job := NewBankReloadJob(repo, loaderFunc(func(context.Context) (*loader.Bank, error) {
		return bankOf("a", "b"), nil
	}), "", zap.NewNop())
	require.NoError(t, job.RunReload())
	assert.Len(t, repo.Questions(), 2)
}

func TestBankReloadJob_FailureKeepsBank(t *testing.T) {
	repo := repositories.NewQuestionRepository(zap.NewNop())
	repo.Replace(bankOf("a"))

	job := NewBankReloadJob(repo, loaderFunc(func(context.Context) (*loader.Bank, error) {
		return nil, errors.New("disk gone")
	}), "", zap.NewNop())
	assert.Error(t, job.RunReload())
	assert.Len(t, repo.Questions(), 1)
}

func TestBankReloadJob_Schedule(t *testing.T) {
	var loads atomic.Int32
	repo := repositories.NewQuestionRepository(zap.NewNop())
	l := loaderFunc(func(context.Context) (*loader.Bank, error) {
		loads.Add(1)
		return bankOf("a"), nil
	})

	disabled := NewBankReloadJob(repo, l, "", zap.NewNop())
	require.NoError(t, disabled.Start())
	disabled.Stop()

	bad := NewBankReloadJob(repo, l, "not a schedule", zap.NewNop())
	assert.Error(t, bad.Start())

	job := NewBankReloadJob(repo, l, "@every 1s", zap.NewNop())
	require.NoError(t, job.Start())
	assert.Eventually(t, func() bool { return loads.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	job.Stop()
}

type countingSweeper struct {
	calls   atomic.Int32
	maxIdle time.Duration
}

func (s *countingSweeper) Sweep(maxIdle time.Duration) int {
	s.calls.Add(1)
	s.maxIdle = maxIdle
	return 2
}

func TestSweepJob(t *testing.T) {
	s := &countingSweeper{}
	job := NewSweepJob("games", s, time.Hour, "", zap.NewNop())
	require.NoError(t, job.Start())
	assert.Equal(t, 2, job.RunSweep())
	assert.Equal(t, time.Hour, s.maxIdle)

	scheduled := NewSweepJob("games", s, time.Hour, "@every 1s", zap.NewNop())
	require.NoError(t, scheduled.Start())
	assert.Eventually(t, func() bool { return s.calls.Load() > 1 }, 3*time.Second, 20*time.Millisecond)
	scheduled.Stop()

	assert.Error(t, NewSweepJob("games", s, time.Hour, "whenever", zap.NewNop()).Start())
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSweepJob_DropsSettledExams(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	registry := exam.NewRegistry(ctx, func(owner string) *exam.Session {
		return exam.NewSession(owner, func() []models.Question { return nil }, statestore.NewMemoryStore(), nil, zap.NewNop(),
			exam.WithClock(clock))
	})
	defer func() {
		cancel()
		registry.Wait()
	}()

	// an empty bank leaves a session that never started
	_, err := registry.Start(ctx, "alice")
	require.ErrorIs(t, err, exam.ErrEmptyPool)

	job := NewSweepJob("exams", registry, 30*time.Minute, "", zap.NewNop())
	assert.Zero(t, job.RunSweep())

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, job.RunSweep())
	_, ok := registry.Get("alice")
	assert.False(t, ok)
}
