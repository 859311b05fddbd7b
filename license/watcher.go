package license

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Features is the license/feature state relevant to access control.
type Features struct {
	AllowRbac bool `json:"allow_rbac"`
}

// Provider returns the current license feature state. Implementations may
// call out to a license service or read a locally cached cluster state.
type Provider interface {
	Features(ctx context.Context) (Features, error)
}

// StaticProvider always reports a fixed feature state. Used for single-node
// and development deployments without a license service.
type StaticProvider struct {
	State Features
}

// Features implements Provider.
func (p StaticProvider) Features(ctx context.Context) (Features, error) {
	return p.State, nil
}

// Applier receives feature state transitions. *authorization.ModeResolver
// satisfies it.
type Applier interface {
	Apply(allowRbac bool)
}

// Watcher polls a Provider and pushes AllowRbac transitions into the mode
// resolver. It is the single writer of the enforcement mode.
type Watcher struct {
	provider Provider
	applier  Applier
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// NewWatcher creates a watcher. interval must be positive.
func NewWatcher(provider Provider, applier Applier, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		provider: provider,
		applier:  applier,
		interval: interval,
		logger:   logger,
	}
}

// Start applies the current feature state once, then polls in the background
// until Stop is called. A provider failure leaves the previous mode in place;
// enforcement never flips because the license feed blipped.
func (w *Watcher) Start(ctx context.Context) error {
	features, err := w.provider.Features(ctx)
	if err != nil {
		return err
	}
	w.applier.Apply(features.AllowRbac)

	pollCtx, cancel := context.WithCancel(context.Background())

	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.poll(pollCtx)
	return nil
}

// Stop halts polling and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			features, err := w.provider.Features(ctx)
			if err != nil {
				w.logger.Warn("license feature poll failed, keeping current mode", zap.Error(err))
				continue
			}
			w.applier.Apply(features.AllowRbac)
		}
	}
}
