package authorization

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Mode selects how the interceptor and the secure saved-objects client
// enforce access.
type Mode int32

const (
	// ModeLegacy grants access to any authenticated principal without
	// consulting privileges.
	ModeLegacy Mode = iota
	// ModeRbac enforces per-action privilege checks.
	ModeRbac
)

// String returns the mode name for logging.
func (m Mode) String() string {
	if m == ModeRbac {
		return "rbac"
	}
	return "legacy"
}

// ModeResolver holds the process-wide enforcement mode. The license watcher
// is the single writer; every request reads it with one atomic load per
// decision. A stale read during a transition affects at most the in-flight
// request that observed it.
type ModeResolver struct {
	mode   atomic.Int32
	logger *zap.Logger
}

// NewModeResolver creates a resolver starting in legacy mode. Enforcement is
// only switched on once the license feed confirms RBAC is allowed.
func NewModeResolver(logger *zap.Logger) *ModeResolver {
	return &ModeResolver{logger: logger}
}

// UseRbac reports whether full RBAC enforcement is active.
func (r *ModeResolver) UseRbac() bool {
	return Mode(r.mode.Load()) == ModeRbac
}

// Mode returns the current enforcement mode.
func (r *ModeResolver) Mode() Mode {
	return Mode(r.mode.Load())
}

// Apply updates the mode from a license/feature state change. It never
// read-modify-writes: the new mode is a pure function of the event.
func (r *ModeResolver) Apply(allowRbac bool) {
	next := ModeLegacy
	if allowRbac {
		next = ModeRbac
	}
	prev := Mode(r.mode.Swap(int32(next)))
	if prev != next {
		r.logger.Info("enforcement mode changed",
			zap.String("from", prev.String()),
			zap.String("to", next.String()))
	}
}
