package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/access-control-plane/app"
	"github.com/upb/access-control-plane/authorization"
	"github.com/upb/access-control-plane/capabilities"
	"github.com/upb/access-control-plane/middleware"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

func capabilitiesDeps(t *testing.T, granted []string, rbac bool) *app.Dependencies {
	t.Helper()

	mode := authorization.NewModeResolver(zap.NewNop())
	mode.Apply(rbac)
	checker := authorization.NewChecker(&grantSource{granted: granted}, zap.NewNop())

	return &app.Dependencies{
		Logger:       zap.NewNop(),
		Mode:         mode,
		Capabilities: capabilities.NewDisabler(checker, authorization.NewActions(), zap.NewNop()),
		UICapabilities: capabilities.Capabilities{
			"dashboards": {"show": true, "save": true},
			"management": {"show": true},
		},
	}
}

func decodeCapabilities(t *testing.T, rec *httptest.ResponseRecorder) map[string]map[string]bool {
	t.Helper()
	var response utils.SuccessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	raw, err := json.Marshal(response.Data)
	require.NoError(t, err)
	var caps map[string]map[string]bool
	require.NoError(t, json.Unmarshal(raw, &caps))
	return caps
}

func TestCapabilitiesHandler_Anonymous(t *testing.T) {
	deps := capabilitiesDeps(t, []string{"ui:*"}, true)

	rec := httptest.NewRecorder()
	CapabilitiesHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/api/capabilities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	caps := decodeCapabilities(t, rec)
	assert.False(t, caps["dashboards"]["show"])
	assert.False(t, caps["dashboards"]["save"])
	assert.False(t, caps["management"]["show"])
}

func TestCapabilitiesHandler_AuthenticatedTrimsToPrivileges(t *testing.T) {
	deps := capabilitiesDeps(t, []string{"ui:dashboards/*"}, true)

	r := httptest.NewRequest(http.MethodGet, "/api/capabilities", nil)
	principal := authorization.Principal{Username: "elastic", Token: "tok"}
	r = r.WithContext(middleware.WithPrincipal(r.Context(), principal))

	rec := httptest.NewRecorder()
	CapabilitiesHandler(deps)(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	caps := decodeCapabilities(t, rec)
	assert.True(t, caps["dashboards"]["show"])
	assert.True(t, caps["dashboards"]["save"])
	assert.False(t, caps["management"]["show"])
}

func TestCapabilitiesHandler_LegacyModeReturnsFullMap(t *testing.T) {
	deps := capabilitiesDeps(t, nil, false)

	rec := httptest.NewRecorder()
	CapabilitiesHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/api/capabilities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	caps := decodeCapabilities(t, rec)
	assert.True(t, caps["dashboards"]["show"])
	assert.True(t, caps["management"]["show"])
}

func newSecurityDeps(rbac bool) *app.Dependencies {
	mode := authorization.NewModeResolver(zap.NewNop())
	mode.Apply(rbac)
	return &app.Dependencies{Logger: zap.NewNop(), Mode: mode}
}

func TestSecurityModeHandler(t *testing.T) {
	t.Run("rbac", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SecurityModeHandler(newSecurityDeps(true))(rec, httptest.NewRequest(http.MethodGet, "/api/security/mode", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		data := response.Data.(map[string]interface{})
		assert.Equal(t, "rbac", data["mode"])
		assert.Equal(t, true, data["rbac_enabled"])
	})

	t.Run("legacy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SecurityModeHandler(newSecurityDeps(false))(rec, httptest.NewRequest(http.MethodGet, "/api/security/mode", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		data := response.Data.(map[string]interface{})
		assert.Equal(t, "legacy", data["mode"])
		assert.Equal(t, false, data["rbac_enabled"])
	})
}
