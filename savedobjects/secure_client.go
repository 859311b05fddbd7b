package savedobjects

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/access-control-plane/audit"
	"github.com/upb/access-control-plane/authorization"
	"go.uber.org/zap"
)

// SecureClientFactory builds per-request saved-objects clients that enforce
// privilege checks in front of the underlying storage client.
type SecureClientFactory struct {
	base     Client
	checker  *authorization.Checker
	actions  *authorization.Actions
	registry *TypeRegistry
	mode     *authorization.ModeResolver
	audits   *audit.Service
	logger   *zap.Logger
}

// NewSecureClientFactory wires the factory.
func NewSecureClientFactory(
	base Client,
	checker *authorization.Checker,
	actions *authorization.Actions,
	registry *TypeRegistry,
	mode *authorization.ModeResolver,
	audits *audit.Service,
	logger *zap.Logger,
) *SecureClientFactory {
	return &SecureClientFactory{
		base:     base,
		checker:  checker,
		actions:  actions,
		registry: registry,
		mode:     mode,
		audits:   audits,
		logger:   logger,
	}
}

// ScopedClient returns a Client bound to the request's principal. Every call
// reads the enforcement mode once: legacy mode is a bare delegation to the
// underlying client, with no check and no audit entry.
func (f *SecureClientFactory) ScopedClient(principal authorization.Principal, requestID string) Client {
	return &secureClient{
		factory:   f,
		principal: principal,
		requestID: requestID,
	}
}

type secureClient struct {
	factory   *SecureClientFactory
	principal authorization.Principal
	requestID string
}

// Create implements Client.
func (c *secureClient) Create(ctx context.Context, obj *SavedObject) (*SavedObject, error) {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.Create(ctx, obj)
	}
	if err := c.ensureAuthorized(ctx, OperationCreate, obj.Type); err != nil {
		return nil, err
	}
	return c.factory.base.Create(ctx, obj)
}

// BulkCreate implements Client. A bulk call touching several types is
// all-or-nothing: every type's action must be satisfied or the whole call is
// denied before storage sees it.
func (c *secureClient) BulkCreate(ctx context.Context, objs []*SavedObject) ([]*SavedObject, error) {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.BulkCreate(ctx, objs)
	}
	types := make([]string, 0, len(objs))
	for _, obj := range objs {
		types = append(types, obj.Type)
	}
	if err := c.ensureAuthorized(ctx, OperationBulkCreate, types...); err != nil {
		return nil, err
	}
	return c.factory.base.BulkCreate(ctx, objs)
}

// Get implements Client.
func (c *secureClient) Get(ctx context.Context, objectType string, id uuid.UUID) (*SavedObject, error) {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.Get(ctx, objectType, id)
	}
	if err := c.ensureAuthorized(ctx, OperationGet, objectType); err != nil {
		return nil, err
	}
	return c.factory.base.Get(ctx, objectType, id)
}

// Find implements Client.
func (c *secureClient) Find(ctx context.Context, opts FindOptions) ([]*SavedObject, error) {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.Find(ctx, opts)
	}
	if err := c.ensureAuthorized(ctx, OperationFind, opts.Type); err != nil {
		return nil, err
	}
	return c.factory.base.Find(ctx, opts)
}

// Update implements Client.
func (c *secureClient) Update(ctx context.Context, obj *SavedObject) (*SavedObject, error) {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.Update(ctx, obj)
	}
	if err := c.ensureAuthorized(ctx, OperationUpdate, obj.Type); err != nil {
		return nil, err
	}
	return c.factory.base.Update(ctx, obj)
}

// Delete implements Client.
func (c *secureClient) Delete(ctx context.Context, objectType string, id uuid.UUID) error {
	if !c.factory.mode.UseRbac() {
		return c.factory.base.Delete(ctx, objectType, id)
	}
	if err := c.ensureAuthorized(ctx, OperationDelete, objectType); err != nil {
		return err
	}
	return c.factory.base.Delete(ctx, objectType, id)
}

// ensureAuthorized validates the types against the registry, runs one
// privilege check covering every distinct type touched, and records the
// outcome. The check and its audit entry happen before the underlying
// storage call; a denied check leaves storage untouched.
func (c *secureClient) ensureAuthorized(ctx context.Context, operation string, types ...string) error {
	distinct := dedupe(types)

	required := make([]authorization.Action, 0, len(distinct))
	for _, objectType := range distinct {
		if err := c.factory.registry.Validate(objectType, operation); err != nil {
			return err
		}
		action, err := c.factory.actions.SavedObject.Get(objectType, operation)
		if err != nil {
			return err
		}
		required = append(required, action)
	}

	result, err := c.factory.checker.Check(ctx, c.principal, required)
	if err != nil {
		return err
	}

	actionStrings := make([]string, len(required))
	for i, a := range required {
		actionStrings[i] = string(a)
	}

	if !result.HasAllRequested {
		c.factory.audits.Submit(
			audit.NewEntry(result.Username, actionStrings, audit.OutcomeDenied).
				WithRequestID(c.requestID))
		c.factory.logger.Debug("saved object operation denied",
			zap.String("username", result.Username),
			zap.String("operation", operation),
			zap.Strings("types", distinct))
		return &ForbiddenError{
			Username:  result.Username,
			Operation: operation,
			Types:     distinct,
			Missing:   result.Missing,
		}
	}

	if c.factory.audits.Enabled() {
		c.factory.audits.Submit(
			audit.NewEntry(result.Username, actionStrings, audit.OutcomeGranted).
				WithRequestID(c.requestID))
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
