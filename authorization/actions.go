package authorization

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a canonical identifier for a protected operation. Actions are
// plain strings in a closed namespace so they can be matched against the
// granted-action patterns returned by the identity backend.
type Action string

// Action namespaces. The prefix determines how the rest of the identifier
// is segmented.
const (
	NamespaceApp         = "app"
	NamespaceAPI         = "api"
	NamespaceSavedObject = "saved_object"
	NamespaceUI          = "ui"
)

const (
	namespaceDelimiter = ":"
	segmentDelimiter   = "/"
)

// ErrInvalidActionSegment indicates an action constructor was given a segment
// that would make the canonical form ambiguous. This is a programmer error
// and must never reach a request boundary.
var ErrInvalidActionSegment = errors.New("authorization: action segment contains reserved delimiter or is empty")

// Actions bundles the per-namespace action constructors. A single instance is
// shared process-wide; constructors are pure.
type Actions struct {
	App         AppActions
	API         APIActions
	SavedObject SavedObjectActions
	UI          UIActions
}

// NewActions returns the action registry.
func NewActions() *Actions {
	return &Actions{}
}

// AppActions builds actions gating access to whole applications.
type AppActions struct{}

// Get returns the action for entering the given application.
func (AppActions) Get(appID string) (Action, error) {
	if err := validateSegment(appID); err != nil {
		return "", err
	}
	return Action(NamespaceApp + namespaceDelimiter + appID), nil
}

// APIActions builds actions gating API endpoint operations.
type APIActions struct{}

// Get returns the action for performing operation on the given API feature.
func (APIActions) Get(feature, operation string) (Action, error) {
	if err := validateSegment(feature); err != nil {
		return "", err
	}
	if err := validateSegment(operation); err != nil {
		return "", err
	}
	return Action(NamespaceAPI + namespaceDelimiter + feature + segmentDelimiter + operation), nil
}

// SavedObjectActions builds actions gating storage-object operations.
type SavedObjectActions struct{}

// Get returns the action for performing operation on objects of the given type.
func (SavedObjectActions) Get(objectType, operation string) (Action, error) {
	if err := validateSegment(objectType); err != nil {
		return "", err
	}
	if err := validateSegment(operation); err != nil {
		return "", err
	}
	return Action(NamespaceSavedObject + namespaceDelimiter + objectType + segmentDelimiter + operation), nil
}

// UIActions builds actions backing UI capability flags.
type UIActions struct{}

// Get returns the action backing the capability within the given feature.
func (UIActions) Get(feature, capability string) (Action, error) {
	if err := validateSegment(feature); err != nil {
		return "", err
	}
	if err := validateSegment(capability); err != nil {
		return "", err
	}
	return Action(NamespaceUI + namespaceDelimiter + feature + segmentDelimiter + capability), nil
}

// ParsedAction is the decomposed form of an Action.
type ParsedAction struct {
	Namespace string
	Segments  []string
}

// ParseAction decomposes an action produced by one of the constructors. It is
// the exact inverse of the constructors for every value they produce.
func ParseAction(a Action) (ParsedAction, error) {
	s := string(a)
	idx := strings.Index(s, namespaceDelimiter)
	if idx <= 0 || idx == len(s)-1 {
		return ParsedAction{}, fmt.Errorf("authorization: malformed action %q", s)
	}
	ns := s[:idx]
	rest := s[idx+1:]

	switch ns {
	case NamespaceApp:
		if strings.Contains(rest, segmentDelimiter) {
			return ParsedAction{}, fmt.Errorf("authorization: malformed %s action %q", ns, s)
		}
		return ParsedAction{Namespace: ns, Segments: []string{rest}}, nil
	case NamespaceAPI, NamespaceSavedObject, NamespaceUI:
		parts := strings.Split(rest, segmentDelimiter)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return ParsedAction{}, fmt.Errorf("authorization: malformed %s action %q", ns, s)
		}
		return ParsedAction{Namespace: ns, Segments: parts}, nil
	default:
		return ParsedAction{}, fmt.Errorf("authorization: unknown action namespace %q", ns)
	}
}

func validateSegment(segment string) error {
	if segment == "" ||
		strings.Contains(segment, namespaceDelimiter) ||
		strings.Contains(segment, segmentDelimiter) {
		return fmt.Errorf("%w: %q", ErrInvalidActionSegment, segment)
	}
	return nil
}
