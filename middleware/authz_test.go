package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/access-control-plane/authorization"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

// stubSource is a PrivilegeSource with a fixed role set, counting calls.
type stubSource struct {
	roles authorization.RoleSet
	err   error
	calls int
}

func (s *stubSource) QueryPrivileges(ctx context.Context, principal authorization.Principal) (authorization.RoleSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.roles, nil
}

func newTestInterceptor(t *testing.T, source *stubSource, rbac bool) *Interceptor {
	t.Helper()
	mode := authorization.NewModeResolver(zap.NewNop())
	mode.Apply(rbac)
	checker := authorization.NewChecker(source, zap.NewNop())
	return NewInterceptor(checker, authorization.NewActions(), mode, zap.NewNop())
}

func serveEnforced(i *Interceptor, r *http.Request, tags ...string) (*httptest.ResponseRecorder, bool) {
	nextCalled := false
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})
	handler = i.Enforce(handler)
	if len(tags) > 0 {
		handler = i.Tags(tags...)(handler)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec, nextCalled
}

func authedRequest(method, path string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	principal := authorization.Principal{Username: "elastic", Token: "tok"}
	return r.WithContext(WithPrincipal(r.Context(), principal))
}

func TestEnforce_LegacyModeSkipsChecks(t *testing.T) {
	source := &stubSource{}
	i := newTestInterceptor(t, source, false)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/app/analytics"))

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, source.calls, "legacy mode must never consult the privilege source")
}

func TestEnforce_AppRouteGranted(t *testing.T) {
	source := &stubSource{roles: authorization.RoleSet{
		{Name: "analytics_user", Granted: []string{"app:analytics"}},
	}}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/app/analytics"))

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, source.calls)
}

func TestEnforce_AppRouteDeniedMasksAsNotFound(t *testing.T) {
	source := &stubSource{roles: authorization.RoleSet{
		{Name: "other_app_user", Granted: []string{"app:monitoring"}},
	}}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/app/analytics"))

	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The denial must be byte-identical to the router's own not-found
	// response, otherwise callers can probe which apps exist.
	routerRec := httptest.NewRecorder()
	_ = utils.WriteNotFound(routerRec, "")
	assert.Equal(t, routerRec.Body.String(), rec.Body.String())
	assert.Equal(t, routerRec.Code, rec.Code)
}

func TestEnforce_TaggedAPIRoute(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		source := &stubSource{roles: authorization.RoleSet{
			{Name: "readers", Granted: []string{"api:dashboards/read"}},
		}}
		i := newTestInterceptor(t, source, true)

		rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/api/dashboards"), "access:read")

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		source := &stubSource{roles: authorization.RoleSet{
			{Name: "readers", Granted: []string{"api:dashboards/read"}},
		}}
		i := newTestInterceptor(t, source, true)

		rec, nextCalled := serveEnforced(i, authedRequest(http.MethodPost, "/api/dashboards"), "access:write")

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("all tags required", func(t *testing.T) {
		source := &stubSource{roles: authorization.RoleSet{
			{Name: "readers", Granted: []string{"api:dashboards/read"}},
		}}
		i := newTestInterceptor(t, source, true)

		rec, nextCalled := serveEnforced(i,
			authedRequest(http.MethodPost, "/api/dashboards"), "access:read", "access:write")

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestEnforce_UntaggedAPIRouteContinues(t *testing.T) {
	source := &stubSource{}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/api/status"))

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, source.calls)
}

func TestEnforce_NonAccessTagsIgnored(t *testing.T) {
	source := &stubSource{}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/api/dashboards"), "metrics:enabled")

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, source.calls)
}

func TestEnforce_BackendFailureFailsClosed(t *testing.T) {
	source := &stubSource{err: errors.New("backend down")}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/app/analytics"))

	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnforce_OtherPathsUnaffected(t *testing.T) {
	source := &stubSource{}
	i := newTestInterceptor(t, source, true)

	rec, nextCalled := serveEnforced(i, authedRequest(http.MethodGet, "/healthz"))

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, source.calls)
}

func TestTags_StoredInContext(t *testing.T) {
	i := newTestInterceptor(t, &stubSource{}, true)

	var got []string
	handler := i.Tags("access:read", "access:write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAccessTagsFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboards", nil))

	require.Equal(t, []string{"access:read", "access:write"}, got)
}
