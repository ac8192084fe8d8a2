package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMaintainer struct {
	prunes atomic.Int32
	warms  atomic.Int32

	mu     sync.Mutex
	states []string
}

func (f *fakeMaintainer) Prune() int {
	f.prunes.Add(1)
	return 1
}

func (f *fakeMaintainer) Warm(_ context.Context, states []string, _ time.Duration) {
	f.mu.Lock()
	f.states = states
	f.mu.Unlock()
	f.warms.Add(1)
}

func TestScheduler_RunsPruneAndWarm(t *testing.T) {
	target := &fakeMaintainer{}
	s := New(Config{
		PruneInterval: 20 * time.Millisecond,
		WarmStates:    []string{"UT", "CO"},
		WarmInterval:  time.Hour,
	}, target, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return target.warms.Load() == 1 }, time.Second, 5*time.Millisecond,
		"warm runs once at start")
	assert.Eventually(t, func() bool { return target.prunes.Load() >= 2 }, time.Second, 5*time.Millisecond)

	target.mu.Lock()
	assert.Equal(t, []string{"UT", "CO"}, target.states)
	target.mu.Unlock()
}

func TestScheduler_NoWarmStates(t *testing.T) {
	target := &fakeMaintainer{}
	s := New(Config{WarmInterval: 10 * time.Millisecond}, target, zap.NewNop())

	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), target.warms.Load())
	assert.Equal(t, int32(0), target.prunes.Load())
}
