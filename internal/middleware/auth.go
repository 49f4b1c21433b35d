package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

type authorizer interface {
	Authorize(tokenString string, allowed []model.Role) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

// InvalidSensorMessage is returned for any sensor path segment other than 1 or 2.
const InvalidSensorMessage = "Invalid sensor type. Must be '1' or '2'"

type AuthMiddleware struct {
	authorizer authorizer
}

func NewAuthMiddleware(authorizer authorizer) *AuthMiddleware {
	return &AuthMiddleware{authorizer: authorizer}
}

// RequireRoles admits requests whose bearer token is valid and carries one
// of the given roles. Claims are stored in the request context.
func (m *AuthMiddleware) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.gate(w, r, next, allowed)
		})
	}
}

// RequireSensorReader gates routes with a {sensor} URL parameter: the
// sensor's own admin role or super-admin.
func (m *AuthMiddleware) RequireSensorReader(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sensor, ok := model.ParseSensor(chi.URLParam(r, param))
			if !ok {
				writeAPIError(w, apierror.Validation(InvalidSensorMessage, ""))
				return
			}
			m.gate(w, r, next, []model.Role{sensor.ReaderRole(), model.RoleSuperAdmin})
		})
	}
}

func (m *AuthMiddleware) gate(w http.ResponseWriter, r *http.Request, next http.Handler, allowed []model.Role) {
	claims, err := m.authorizer.Authorize(bearerToken(r), allowed)
	if err != nil {
		var apiErr *apierror.APIError
		if !errors.As(err, &apiErr) {
			apiErr = apierror.Unauthenticated("invalid token")
		}
		writeAPIError(w, apiErr)
		return
	}

	ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}
