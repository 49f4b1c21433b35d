//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-iot-backend/internal/config"
	"go-iot-backend/internal/database"
	"go-iot-backend/internal/event"
	"go-iot-backend/internal/handler"
	"go-iot-backend/internal/middleware"
	"go-iot-backend/internal/repository"
	"go-iot-backend/internal/router"
	"go-iot-backend/internal/service"
)

// openTestDB connects to TEST_DATABASE_URL, migrates, and empties every
// table so each test starts clean.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Options{URL: url, MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE users, distance1, distance2, switch_condition RESTART IDENTITY`)
	require.NoError(t, err)

	return db
}

func newServer(t *testing.T) (*httptest.Server, *event.InMemoryBus) {
	t.Helper()

	db := openTestDB(t)
	bus := event.NewBus()

	users := repository.NewUserRepository(db.Pool)
	audit := service.NewAuditService(users)
	auth, err := service.NewAuthService("integration-secret", users, service.NewBcryptHasherWithCost(bcrypt.MinCost), audit)
	require.NoError(t, err)

	telemetry := service.NewTelemetryService(repository.NewReadingRepository(db.Pool), bus)
	control := service.NewControlService(repository.NewControlRepository(db.Pool), nil, bus)

	cfg := &config.Config{CORSOrigins: []string{"*"}, RequestTimeout: 10 * time.Second}
	server := httptest.NewServer(router.New(cfg,
		middleware.NewAuthMiddleware(auth),
		handler.NewAuthHandler(auth, audit),
		handler.NewDistanceHandler(telemetry),
		handler.NewControlHandler(control),
		handler.NewHealthHandler(db),
	))
	t.Cleanup(server.Close)

	return server, bus
}

func register(t *testing.T, baseURL string, username string, password string, role string) *http.Response {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"username": username, "password": password, "role": role})
	require.NoError(t, err)
	return doRequest(t, mustNewRequest(t, http.MethodPost, baseURL+"/api/auth/register", payload))
}

func login(t *testing.T, baseURL string, username string, password string) string {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	resp := doRequest(t, mustNewRequest(t, http.MethodPost, baseURL+"/api/auth/login", payload))
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotEmpty(t, parsed.Token)
	return parsed.Token
}

func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func doAuthRequest(t *testing.T, method string, url string, body []byte, token string) *http.Response {
	t.Helper()

	req := mustNewRequest(t, method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return doRequest(t, req)
}

func mustNewRequest(t *testing.T, method string, url string, body []byte) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
