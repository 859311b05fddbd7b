package license

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingApplier captures applied feature transitions.
type recordingApplier struct {
	mu      sync.Mutex
	applied []bool
}

func (a *recordingApplier) Apply(allowRbac bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, allowRbac)
}

func (a *recordingApplier) Applied() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]bool, len(a.applied))
	copy(out, a.applied)
	return out
}

// flakyProvider returns a sequence of results, then repeats the last one.
type flakyProvider struct {
	mu      sync.Mutex
	results []func() (Features, error)
	idx     int
}

func (p *flakyProvider) Features(ctx context.Context) (Features, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.results[p.idx]
	if p.idx < len(p.results)-1 {
		p.idx++
	}
	return f()
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{State: Features{AllowRbac: true}}
	features, err := p.Features(context.Background())

	require.NoError(t, err)
	assert.True(t, features.AllowRbac)
}

func TestWatcher_AppliesInitialState(t *testing.T) {
	applier := &recordingApplier{}
	w := NewWatcher(StaticProvider{State: Features{AllowRbac: true}}, applier, time.Hour, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	applied := applier.Applied()
	require.Len(t, applied, 1)
	assert.True(t, applied[0])
}

func TestWatcher_StartFailsWhenInitialFetchFails(t *testing.T) {
	provider := &flakyProvider{results: []func() (Features, error){
		func() (Features, error) { return Features{}, errors.New("license service down") },
	}}
	w := NewWatcher(provider, &recordingApplier{}, time.Hour, zap.NewNop())

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_AppliesTransitions(t *testing.T) {
	provider := &flakyProvider{results: []func() (Features, error){
		func() (Features, error) { return Features{AllowRbac: false}, nil },
		func() (Features, error) { return Features{AllowRbac: true}, nil },
	}}
	applier := &recordingApplier{}
	w := NewWatcher(provider, applier, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool {
		applied := applier.Applied()
		return len(applied) >= 2 && applied[len(applied)-1]
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_PollFailureKeepsCurrentMode(t *testing.T) {
	var calls atomic.Int32
	provider := &flakyProvider{results: []func() (Features, error){
		func() (Features, error) { return Features{AllowRbac: true}, nil },
		func() (Features, error) { calls.Add(1); return Features{}, errors.New("blip") },
	}}
	applier := &recordingApplier{}
	w := NewWatcher(provider, applier, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	// Only the initial successful state was applied; failures never reach
	// the applier.
	assert.Equal(t, []bool{true}, applier.Applied())
}

func TestWatcher_StopIsIdempotentBeforeStart(t *testing.T) {
	w := NewWatcher(StaticProvider{}, &recordingApplier{}, time.Hour, zap.NewNop())
	w.Stop()
}

func TestWatcher_StopHaltsPolling(t *testing.T) {
	applier := &recordingApplier{}
	w := NewWatcher(StaticProvider{State: Features{AllowRbac: true}}, applier, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	count := len(applier.Applied())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, len(applier.Applied()))
}
