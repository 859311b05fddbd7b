package savedobjects

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Storage-object operations. The set of operations a type permits is fixed
// at process start through the TypeRegistry.
const (
	OperationCreate     = "create"
	OperationBulkCreate = "bulk_create"
	OperationGet        = "get"
	OperationFind       = "find"
	OperationUpdate     = "update"
	OperationDelete     = "delete"
)

// SavedObject is a typed storage object with schemaless attributes.
type SavedObject struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Type       string          `json:"type" db:"type"`
	Attributes json.RawMessage `json:"attributes" db:"attributes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// New creates a saved object of the given type.
func New(objectType string, attributes json.RawMessage) *SavedObject {
	now := time.Now()
	return &SavedObject{
		ID:         uuid.New(),
		Type:       objectType,
		Attributes: attributes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FindOptions narrows a Find call.
type FindOptions struct {
	Type    string
	PerPage int
	Page    int
}

// Client is the saved-objects storage surface. The secure wrapper and the
// postgres repository both implement it, so callers cannot tell whether
// privilege checks sit in front of them.
type Client interface {
	Create(ctx context.Context, obj *SavedObject) (*SavedObject, error)
	BulkCreate(ctx context.Context, objs []*SavedObject) ([]*SavedObject, error)
	Get(ctx context.Context, objectType string, id uuid.UUID) (*SavedObject, error)
	Find(ctx context.Context, opts FindOptions) ([]*SavedObject, error)
	Update(ctx context.Context, obj *SavedObject) (*SavedObject, error)
	Delete(ctx context.Context, objectType string, id uuid.UUID) error
}

// TypeRegistry is the fixed enumeration of registered object types and the
// operations each permits. It is supplied at startup and never mutated.
type TypeRegistry struct {
	permitted map[string]map[string]struct{}
}

// NewTypeRegistry builds a registry from a type -> operations mapping.
func NewTypeRegistry(types map[string][]string) *TypeRegistry {
	permitted := make(map[string]map[string]struct{}, len(types))
	for objectType, ops := range types {
		set := make(map[string]struct{}, len(ops))
		for _, op := range ops {
			set[op] = struct{}{}
		}
		permitted[objectType] = set
	}
	return &TypeRegistry{permitted: permitted}
}

// DefaultOperations is the operation set most types register.
func DefaultOperations() []string {
	return []string{
		OperationCreate,
		OperationBulkCreate,
		OperationGet,
		OperationFind,
		OperationUpdate,
		OperationDelete,
	}
}

// IsRegistered reports whether the object type is known.
func (r *TypeRegistry) IsRegistered(objectType string) bool {
	_, ok := r.permitted[objectType]
	return ok
}

// Permits reports whether the type allows the operation.
func (r *TypeRegistry) Permits(objectType, operation string) bool {
	ops, ok := r.permitted[objectType]
	if !ok {
		return false
	}
	_, ok = ops[operation]
	return ok
}

// Types returns the registered type names, sorted.
func (r *TypeRegistry) Types() []string {
	types := make([]string, 0, len(r.permitted))
	for objectType := range r.permitted {
		types = append(types, objectType)
	}
	sort.Strings(types)
	return types
}

// Validate checks that the type is registered and permits the operation.
func (r *TypeRegistry) Validate(objectType, operation string) error {
	if !r.IsRegistered(objectType) {
		return fmt.Errorf("%w: %q", ErrUnknownType, objectType)
	}
	if !r.Permits(objectType, operation) {
		return fmt.Errorf("%w: type %q does not permit %q", ErrUnsupportedOperation, objectType, operation)
	}
	return nil
}
