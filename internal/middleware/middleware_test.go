package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

type stubAuthorizer struct {
	roles map[string]model.Role
}

func (s stubAuthorizer) Authorize(token string, allowed []model.Role) (*model.AuthClaims, error) {
	if token == "" {
		return nil, apierror.Unauthenticated("missing bearer token")
	}
	role, ok := s.roles[token]
	if !ok {
		return nil, apierror.Unauthenticated("invalid token")
	}
	if !slices.Contains(allowed, role) {
		return nil, apierror.Forbidden("insufficient permissions")
	}
	return &model.AuthClaims{UserID: token, Role: role}, nil
}

func newStubAuth() *AuthMiddleware {
	return NewAuthMiddleware(stubAuthorizer{roles: map[string]model.Role{
		"super": model.RoleSuperAdmin,
		"d1":    model.RoleAdminDistance1,
		"d2":    model.RoleAdminDistance2,
	}})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorBody {
	t.Helper()
	var body model.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	auth := newStubAuth()
	var seen *model.AuthClaims
	protected := auth.RequireRoles(model.RoleSuperAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{name: "no header", status: http.StatusUnauthorized, code: apierror.CodeUnauthenticated},
		{name: "basic scheme", header: "Basic super", status: http.StatusUnauthorized, code: apierror.CodeUnauthenticated},
		{name: "unknown token", header: "Bearer forged", status: http.StatusUnauthorized, code: apierror.CodeUnauthenticated},
		{name: "wrong role", header: "Bearer d1", status: http.StatusForbidden, code: apierror.CodeForbidden},
		{name: "allowed", header: "Bearer super", status: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer super", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/logs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, model.RoleSuperAdmin, seen.Role)
		})
	}
}

func TestRequireSensorReader(t *testing.T) {
	t.Parallel()

	auth := newStubAuth()
	r := chi.NewRouter()
	r.With(auth.RequireSensorReader("sensor")).Get("/api/distance/{sensor}/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "own sensor", path: "/api/distance/1/latest", token: "d1", status: http.StatusOK},
		{name: "other sensor", path: "/api/distance/2/latest", token: "d1", status: http.StatusForbidden},
		{name: "super admin", path: "/api/distance/2/latest", token: "super", status: http.StatusOK},
		{name: "no token", path: "/api/distance/2/latest", status: http.StatusUnauthorized},
		{name: "unknown sensor", path: "/api/distance/3/latest", token: "super", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, InvalidSensorMessage, decodeError(t, rec).Message)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierror.CodeInternal, decodeError(t, rec).Code)
}

func TestLoggingSetsRequestID(t *testing.T) {
	t.Parallel()

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.2:5000", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.2:5000", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.1:4321", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
