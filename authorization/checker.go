package authorization

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Role is a named grant of action patterns, as returned by the identity
// backend. A pattern is either a full action or a wildcard suffix within a
// namespace: "app:*" satisfies any "app:X", "api:foo/*" any "api:foo/<op>".
type Role struct {
	Name    string   `json:"name"`
	Granted []string `json:"granted"`
}

// RoleSet is the full set of roles resolved for a principal.
type RoleSet []Role

// PrivilegeSource resolves the roles granted to a principal. Implementations
// must query the backend with the principal's own identity context, never an
// elevated one, and return identity.ErrBackendUnavailable-wrapped errors on
// transport failure.
type PrivilegeSource interface {
	QueryPrivileges(ctx context.Context, principal Principal) (RoleSet, error)
}

// CheckResult is the outcome of a privilege check.
type CheckResult struct {
	// HasAllRequested is true iff Missing is empty.
	HasAllRequested bool
	// Missing holds the required actions not satisfied by any role.
	Missing []Action
	// Username echoes the checked principal for audit correlation.
	Username string
}

// Checker evaluates required actions against a principal's live role set.
// It is mode-agnostic: callers decide whether to consult it at all based on
// the enforcement mode, which keeps the checker independently testable.
type Checker struct {
	source PrivilegeSource
	logger *zap.Logger
}

// NewChecker creates a privilege checker backed by the given source.
func NewChecker(source PrivilegeSource, logger *zap.Logger) *Checker {
	return &Checker{source: source, logger: logger}
}

// Check resolves the principal's roles and reports which required actions are
// satisfied. One backend call per invocation; results are never cached so a
// revoked privilege takes effect on the next request.
//
// If the identity backend is unavailable the result is deny-all: every
// required action is reported missing. Backend availability is never traded
// for a false grant.
func (c *Checker) Check(ctx context.Context, principal Principal, required []Action) (CheckResult, error) {
	roles, err := c.source.QueryPrivileges(ctx, principal)
	if err != nil {
		c.logger.Warn("privilege query failed, denying all requested actions",
			zap.String("username", principal.Username),
			zap.Int("required", len(required)),
			zap.Error(err))
		missing := make([]Action, len(required))
		copy(missing, required)
		return CheckResult{
			HasAllRequested: len(missing) == 0,
			Missing:         missing,
			Username:        principal.Username,
		}, nil
	}

	var missing []Action
	for _, action := range required {
		if !roles.satisfies(action) {
			missing = append(missing, action)
		}
	}

	return CheckResult{
		HasAllRequested: len(missing) == 0,
		Missing:         missing,
		Username:        principal.Username,
	}, nil
}

// DynamicChecker is a privilege check bound to a single request's principal.
type DynamicChecker func(ctx context.Context, required []Action) (CheckResult, error)

// CheckPrivilegesDynamicallyWithRequest binds the checker to the given
// principal so callers holding only the request identity can run repeated
// checks without re-threading it.
func (c *Checker) CheckPrivilegesDynamicallyWithRequest(principal Principal) DynamicChecker {
	return func(ctx context.Context, required []Action) (CheckResult, error) {
		return c.Check(ctx, principal, required)
	}
}

func (rs RoleSet) satisfies(action Action) bool {
	for _, role := range rs {
		for _, pattern := range role.Granted {
			if patternMatches(pattern, action) {
				return true
			}
		}
	}
	return false
}

// patternMatches implements exact-match-or-wildcard-suffix matching. A
// wildcard is only honored as the final character and only once the pattern
// already names a namespace, so "*" alone grants nothing.
func patternMatches(pattern string, action Action) bool {
	if pattern == string(action) {
		return true
	}
	if !strings.HasSuffix(pattern, "*") {
		return false
	}
	prefix := strings.TrimSuffix(pattern, "*")
	if !strings.Contains(prefix, namespaceDelimiter) {
		return false
	}
	return strings.HasPrefix(string(action), prefix)
}
