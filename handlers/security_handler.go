package handlers

import (
	"net/http"

	"github.com/upb/access-control-plane/app"
	"github.com/upb/access-control-plane/utils"
)

// SecurityModeResponse reports the active enforcement mode
type SecurityModeResponse struct {
	Mode        string `json:"mode"`
	RbacEnabled bool   `json:"rbac_enabled"`
}

// SecurityModeHandler handles GET /api/security/mode
func SecurityModeHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, SecurityModeResponse{
			Mode:        deps.Mode.Mode().String(),
			RbacEnabled: deps.Mode.UseRbac(),
		})
	}
}
