package handlers

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/access-control-plane/app"
	"github.com/upb/access-control-plane/capabilities"
	"github.com/upb/access-control-plane/middleware"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

// CapabilitiesHandler handles GET /api/capabilities. The route allows
// anonymous callers: an anonymous principal gets the full map with every
// capability disabled, an authenticated one gets the map trimmed to their
// privileges. In legacy mode the registered map is returned untouched.
func CapabilitiesHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimiddleware.GetReqID(ctx)
		principal := middleware.GetPrincipalFromContext(ctx)

		if !deps.Mode.UseRbac() {
			_ = utils.WriteOK(w, deps.UICapabilities.Clone())
			return
		}

		resolved, err := deps.Capabilities.Disable(ctx, principal, deps.UICapabilities)
		if err != nil {
			deps.Logger.Error("failed to resolve capabilities",
				zap.String("request_id", requestID),
				zap.String("username", principal.Username),
				zap.Error(err))
			// Fail safe: report everything disabled rather than leaking
			// capabilities the caller may not hold.
			_ = utils.WriteOK(w, capabilities.DisableAll(deps.UICapabilities))
			return
		}

		_ = utils.WriteOK(w, resolved)
	}
}
