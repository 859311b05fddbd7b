package capabilities

import (
	"context"

	"github.com/upb/access-control-plane/authorization"
	"go.uber.org/zap"
)

// Capabilities is a UI capability map: feature id -> capability id -> enabled.
type Capabilities map[string]map[string]bool

// Clone returns a deep copy with identical shape.
func (c Capabilities) Clone() Capabilities {
	out := make(Capabilities, len(c))
	for feature, caps := range c {
		flags := make(map[string]bool, len(caps))
		for capability, enabled := range caps {
			flags[capability] = enabled
		}
		out[feature] = flags
	}
	return out
}

// DisableAll returns a copy of the map with every capability switched off.
// Used for anonymous and unauthenticated routes. The input is not mutated.
func DisableAll(caps Capabilities) Capabilities {
	out := caps.Clone()
	for _, flags := range out {
		for capability := range flags {
			flags[capability] = false
		}
	}
	return out
}

// Disabler turns off capabilities the principal cannot exercise.
type Disabler struct {
	checker *authorization.Checker
	actions *authorization.Actions
	logger  *zap.Logger
}

// NewDisabler creates a capability disabler.
func NewDisabler(checker *authorization.Checker, actions *authorization.Actions, logger *zap.Logger) *Disabler {
	return &Disabler{
		checker: checker,
		actions: actions,
		logger:  logger,
	}
}

// Disable returns a copy of the map where every capability whose backing
// ui action the principal lacks is switched off. One batched privilege check
// covers the whole map. The input is never mutated; already-disabled flags
// stay disabled regardless of privileges.
func (d *Disabler) Disable(ctx context.Context, principal authorization.Principal, caps Capabilities) (Capabilities, error) {
	if principal.Anonymous() {
		return DisableAll(caps), nil
	}

	type backing struct {
		feature    string
		capability string
	}

	var required []authorization.Action
	byAction := make(map[authorization.Action][]backing)
	for feature, flags := range caps {
		for capability, enabled := range flags {
			if !enabled {
				continue
			}
			action, err := d.actions.UI.Get(feature, capability)
			if err != nil {
				return nil, err
			}
			if _, ok := byAction[action]; !ok {
				required = append(required, action)
			}
			byAction[action] = append(byAction[action], backing{feature: feature, capability: capability})
		}
	}

	out := caps.Clone()
	if len(required) == 0 {
		return out, nil
	}

	result, err := d.checker.Check(ctx, principal, required)
	if err != nil {
		return nil, err
	}

	for _, action := range result.Missing {
		for _, b := range byAction[action] {
			out[b.feature][b.capability] = false
		}
	}

	d.logger.Debug("capabilities resolved",
		zap.String("username", result.Username),
		zap.Int("checked", len(required)),
		zap.Int("disabled", len(result.Missing)))

	return out, nil
}
