package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

const maxBodyBytes = 1 << 20

var exposeInternalErrors atomic.Bool

// ExposeInternalErrors attaches the underlying error text to 500 responses.
// Enabled only when APP_ENV=development.
func ExposeInternalErrors(enabled bool) {
	exposeInternalErrors.Store(enabled)
}

// writeJSON writes the payload as the whole body; devices read fields at the
// top level, so there is no envelope.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorBody{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrDuplicateUsername) {
		status = http.StatusConflict
		body.Code = apierror.CodeDuplicateUsername
		body.Message = "username already exists"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusUnauthorized
		body.Code = apierror.CodeInvalidCredentials
		body.Message = "invalid username or password"
	} else if errors.Is(err, model.ErrNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "not found"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeValidation
		body.Message = "invalid input"
	} else {
		slog.Error("unhandled error in writeError", "error", err)
		if exposeInternalErrors.Load() {
			body.Details = err.Error()
		}
	}

	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apierror.Validation("request body too large", "")
		}
		return apierror.Validation("invalid JSON body", "")
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return v
}
