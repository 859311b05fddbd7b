package savedobjects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upb/access-control-plane/authorization"
)

var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("savedobjects: object not found")
	// ErrUnknownType indicates the object type is not in the registry.
	ErrUnknownType = errors.New("savedobjects: unknown object type")
	// ErrUnsupportedOperation indicates the type does not permit the operation.
	ErrUnsupportedOperation = errors.New("savedobjects: unsupported operation")
)

// ForbiddenError is returned by the secure client when a privilege check
// denies a storage operation. Unlike the HTTP layer, which masks denials as
// not-found, storage callers get the full picture: the operation, the object
// types involved, and the missing actions.
type ForbiddenError struct {
	Username  string
	Operation string
	Types     []string
	Missing   []authorization.Action
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, a := range e.Missing {
		missing[i] = string(a)
	}
	return fmt.Sprintf("savedobjects: unable to %s %s, missing privileges: %s",
		e.Operation, strings.Join(e.Types, ","), strings.Join(missing, ","))
}

// IsForbidden reports whether err is a privilege denial from the secure client.
func IsForbidden(err error) bool {
	var forbidden *ForbiddenError
	return errors.As(err, &forbidden)
}
