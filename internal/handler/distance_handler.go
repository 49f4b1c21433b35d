package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-iot-backend/internal/middleware"
	"go-iot-backend/internal/model"
	"go-iot-backend/internal/service"
	"go-iot-backend/pkg/apierror"
)

// SensorParam is the chi URL parameter holding the sensor id.
const SensorParam = "sensor"

type DistanceHandler struct {
	service *service.TelemetryService
}

func NewDistanceHandler(service *service.TelemetryService) *DistanceHandler {
	return &DistanceHandler{service: service}
}

func (h *DistanceHandler) List(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromRequest(w, r)
	if !ok {
		return
	}

	rows, err := h.service.List(r.Context(), sensor, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

func (h *DistanceHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListAll(r.Context(), parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Create is the device ingest endpoint; it takes no credentials.
func (h *DistanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromRequest(w, r)
	if !ok {
		return
	}

	var payload model.ReadingRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Record(r.Context(), sensor, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *DistanceHandler) Latest(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromRequest(w, r)
	if !ok {
		return
	}

	rd, err := h.service.Latest(r.Context(), sensor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rd)
}

func (h *DistanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromRequest(w, r)
	if !ok {
		return
	}

	hours := parseIntOrDefault(r.URL.Query().Get("hours"), service.DefaultStatsHours)
	stats, err := h.service.Statistics(r.Context(), sensor, hours)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *DistanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromRequest(w, r)
	if !ok {
		return
	}

	days := parseIntOrDefault(r.URL.Query().Get("days"), service.DefaultRetentionDays)
	result, err := h.service.Cleanup(r.Context(), sensor, days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func sensorFromRequest(w http.ResponseWriter, r *http.Request) (model.SensorID, bool) {
	sensor, ok := model.ParseSensor(chi.URLParam(r, SensorParam))
	if !ok {
		writeError(w, apierror.Validation(middleware.InvalidSensorMessage, ""))
		return "", false
	}
	return sensor, true
}
