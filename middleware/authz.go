package middleware

import (
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/access-control-plane/authorization"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

// accessTagPrefix marks a route tag as an access-control requirement.
// Tags without the prefix are ignored by the interceptor.
const accessTagPrefix = "access:"

// Interceptor enforces privilege checks on app and tagged API routes. A
// denial is written as a not-found response, byte-identical to the router's
// own, so callers cannot distinguish a forbidden resource from a missing one.
type Interceptor struct {
	checker *authorization.Checker
	actions *authorization.Actions
	mode    *authorization.ModeResolver
	logger  *zap.Logger
}

// NewInterceptor creates the request authorization interceptor.
func NewInterceptor(
	checker *authorization.Checker,
	actions *authorization.Actions,
	mode *authorization.ModeResolver,
	logger *zap.Logger,
) *Interceptor {
	return &Interceptor{
		checker: checker,
		actions: actions,
		mode:    mode,
		logger:  logger,
	}
}

// Tags attaches access-control tags to the routes it wraps. It must be
// mounted before Enforce in the middleware chain.
func (i *Interceptor) Tags(tags ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithAccessTags(r.Context(), tags)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Enforce runs the per-request authorization state machine:
//
//  1. Legacy mode: continue, no checks.
//  2. /app/<appId>/... paths require app:<appId>.
//  3. /api/<feature>/... paths with access tags require api:<feature>/<op>
//     for every tag.
//  4. Anything else continues; untagged routes rely on authentication alone.
func (i *Interceptor) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.mode.UseRbac() {
			next.ServeHTTP(w, r)
			return
		}

		required, err := i.requiredActions(r)
		if err != nil {
			// Misregistered route or tag. Fail closed without confirming
			// the path exists.
			i.logger.Error("failed to derive required actions",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteNotFound(w, "")
			return
		}
		if len(required) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		principal := GetPrincipalFromContext(r.Context())
		result, err := i.checker.Check(r.Context(), principal, required)
		if err != nil {
			i.logger.Error("privilege check failed",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.Error(err))
			_ = utils.WriteNotFound(w, "")
			return
		}

		if !result.HasAllRequested {
			missing := make([]string, len(result.Missing))
			for idx, a := range result.Missing {
				missing[idx] = string(a)
			}
			i.logger.Debug("request denied",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("username", result.Username),
				zap.String("path", r.URL.Path),
				zap.Strings("missing", missing))
			_ = utils.WriteNotFound(w, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requiredActions derives the actions a request must hold from its path and
// route tags.
func (i *Interceptor) requiredActions(r *http.Request) ([]authorization.Action, error) {
	if appID, ok := appIDFromPath(r.URL.Path); ok {
		action, err := i.actions.App.Get(appID)
		if err != nil {
			return nil, err
		}
		return []authorization.Action{action}, nil
	}

	feature, ok := featureFromPath(r.URL.Path)
	if !ok {
		return nil, nil
	}

	var required []authorization.Action
	for _, tag := range GetAccessTagsFromContext(r.Context()) {
		if !strings.HasPrefix(tag, accessTagPrefix) {
			continue
		}
		operation := strings.TrimPrefix(tag, accessTagPrefix)
		action, err := i.actions.API.Get(feature, operation)
		if err != nil {
			return nil, err
		}
		required = append(required, action)
	}
	return required, nil
}

// appIDFromPath extracts <appId> from /app/<appId>[/...].
func appIDFromPath(path string) (string, bool) {
	return firstSegmentAfter(path, "/app/")
}

// featureFromPath extracts <feature> from /api/<feature>[/...].
func featureFromPath(path string) (string, bool) {
	return firstSegmentAfter(path, "/api/")
}

func firstSegmentAfter(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	segment, _, _ := strings.Cut(rest, "/")
	if segment == "" {
		return "", false
	}
	return segment, true
}
