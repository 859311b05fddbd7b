package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/access-control-plane/app"
	"github.com/upb/access-control-plane/middleware"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

// AppResponse is the shell payload returned when an application route is
// served. A caller only ever sees this after the interceptor has verified
// the app privilege, so reaching the handler means access was granted.
type AppResponse struct {
	AppID    string `json:"app_id"`
	Username string `json:"username"`
}

// AppHandler handles GET /app/{appID}
func AppHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		appID := chi.URLParam(r, "appID")
		principal := middleware.GetPrincipalFromContext(ctx)

		deps.Logger.Debug("serving application",
			zap.String("request_id", chimiddleware.GetReqID(ctx)),
			zap.String("app_id", appID),
			zap.String("username", principal.Username))

		_ = utils.WriteOK(w, AppResponse{
			AppID:    appID,
			Username: principal.Username,
		})
	}
}
