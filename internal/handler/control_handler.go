package handler

import (
	"net/http"

	"go-iot-backend/internal/model"
	"go-iot-backend/internal/service"
)

type ControlHandler struct {
	service *service.ControlService
}

func NewControlHandler(service *service.ControlService) *ControlHandler {
	return &ControlHandler{service: service}
}

// Get is polled by devices; it takes no credentials.
func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *ControlHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.ControlRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), payload.TV)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ControlHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Toggle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ControlHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
