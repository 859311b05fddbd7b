package middleware

import (
	"context"

	"github.com/upb/access-control-plane/authorization"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"

	// AccessTagsKey is the context key for route access-control tags
	AccessTagsKey contextKey = "access_tags"
)

// GetPrincipalFromContext retrieves the principal from context. The zero
// Principal (anonymous) is returned when no authentication ran.
func GetPrincipalFromContext(ctx context.Context) authorization.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(authorization.Principal); ok {
			return principal
		}
	}
	return authorization.Principal{}
}

// WithPrincipal adds a principal to the context
func WithPrincipal(ctx context.Context, principal authorization.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// GetAccessTagsFromContext retrieves route access tags from context
func GetAccessTagsFromContext(ctx context.Context) []string {
	if val := ctx.Value(AccessTagsKey); val != nil {
		if tags, ok := val.([]string); ok {
			return tags
		}
	}
	return nil
}

// WithAccessTags adds route access tags to the context
func WithAccessTags(ctx context.Context, tags []string) context.Context {
	return context.WithValue(ctx, AccessTagsKey, tags)
}
