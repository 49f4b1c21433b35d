package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"go-iot-backend/internal/event"
	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

const (
	DefaultSensorLimit   = 20
	DefaultCombinedLimit = 10
	MaxReadingLimit      = 1000
	DefaultStatsHours    = 24
	DefaultRetentionDays = 30
)

var validStatuses = []string{"online", "offline", "1", "0", "true", "false"}

type ReadingStore interface {
	Insert(ctx context.Context, sensor model.SensorID, in model.NewReading) (model.Reading, error)
	List(ctx context.Context, sensor model.SensorID, limit int) ([]model.Reading, error)
	ListAll(ctx context.Context, limit int) ([]model.Reading, error)
	Latest(ctx context.Context, sensor model.SensorID) (model.Reading, error)
	Aggregate(ctx context.Context, sensor model.SensorID, since time.Time) (model.ReadingAggregate, error)
	DeleteBefore(ctx context.Context, sensor model.SensorID, cutoff time.Time) (int64, error)
}

type TelemetryService struct {
	store  ReadingStore
	events event.Publisher
	now    func() time.Time
}

func NewTelemetryService(store ReadingStore, events event.Publisher) *TelemetryService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &TelemetryService{store: store, events: events, now: time.Now}
}

// Record validates a device reading and appends it to the sensor's table.
func (s *TelemetryService) Record(ctx context.Context, sensor model.SensorID, req model.ReadingRequest) (model.InsertReadingResult, error) {
	in, err := validateReading(req)
	if err != nil {
		return model.InsertReadingResult{}, err
	}

	rd, err := s.store.Insert(ctx, sensor, in)
	if err != nil {
		return model.InsertReadingResult{}, fmt.Errorf("insert reading: %w", err)
	}

	s.events.Publish(event.New(event.TypeReadingCreated, event.ReadingCreated{
		Sensor:    string(sensor),
		ID:        rd.ID,
		Distances: rd.Distances,
		Status:    rd.Status,
		Timestamp: rd.Timestamp,
	}))

	return model.InsertReadingResult{
		Message:    fmt.Sprintf("Distance%s data inserted successfully", sensor),
		ID:         rd.ID,
		Distances:  rd.Distances,
		Status:     rd.Status,
		Timestamp:  rd.Timestamp,
		SensorType: sensor,
	}, nil
}

func (s *TelemetryService) List(ctx context.Context, sensor model.SensorID, limit int) ([]model.Reading, error) {
	rows, err := s.store.List(ctx, sensor, normalizeLimit(limit, DefaultSensorLimit))
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return nonNil(rows), nil
}

func (s *TelemetryService) ListAll(ctx context.Context, limit int) ([]model.Reading, error) {
	rows, err := s.store.ListAll(ctx, normalizeLimit(limit, DefaultCombinedLimit))
	if err != nil {
		return nil, fmt.Errorf("list combined readings: %w", err)
	}
	return nonNil(rows), nil
}

func (s *TelemetryService) Latest(ctx context.Context, sensor model.SensorID) (model.Reading, error) {
	rd, err := s.store.Latest(ctx, sensor)
	if errors.Is(err, model.ErrNotFound) {
		return model.Reading{}, apierror.NotFound(fmt.Sprintf("No data found for sensor %s", sensor))
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("latest reading: %w", err)
	}
	return rd, nil
}

func (s *TelemetryService) Statistics(ctx context.Context, sensor model.SensorID, hours int) (model.ReadingStatistics, error) {
	if hours <= 0 {
		hours = DefaultStatsHours
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	agg, err := s.store.Aggregate(ctx, sensor, since)
	if err != nil {
		return model.ReadingStatistics{}, fmt.Errorf("reading statistics: %w", err)
	}

	stats := model.ReadingStatistics{
		Sensor:        sensor,
		PeriodHours:   hours,
		TotalReadings: agg.Total,
		AvgDistance:   agg.Avg,
		MinDistance:   agg.Min,
		MaxDistance:   agg.Max,
	}
	if agg.Total > 0 {
		stats.OnlinePercentage = percentage(agg.Online, agg.Total)
		stats.OfflinePercentage = percentage(agg.Offline, agg.Total)
	}
	return stats, nil
}

func (s *TelemetryService) Cleanup(ctx context.Context, sensor model.SensorID, days int) (model.CleanupResult, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteBefore(ctx, sensor, cutoff)
	if err != nil {
		return model.CleanupResult{}, fmt.Errorf("cleanup readings: %w", err)
	}

	if deleted > 0 {
		slog.Info("old readings removed", "sensor", sensor, "deleted", deleted, "days_kept", days)
		s.events.Publish(event.New(event.TypeReadingsPurged, event.ReadingsPurged{
			Sensor:  string(sensor),
			Deleted: deleted,
		}))
	}

	return model.CleanupResult{
		Message:        fmt.Sprintf("Cleaned up old data from %s", sensor.Table()),
		DeletedRecords: deleted,
		Sensor:         sensor,
		DaysKept:       days,
	}, nil
}

// StartRetentionTicker runs Cleanup for every sensor on start and then on
// each interval until ctx is cancelled.
func (s *TelemetryService) StartRetentionTicker(ctx context.Context, interval time.Duration, days int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.purgeAll(ctx, days)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeAll(ctx, days)
		}
	}
}

func (s *TelemetryService) purgeAll(ctx context.Context, days int) {
	for _, sensor := range model.Sensors {
		if _, err := s.Cleanup(ctx, sensor, days); err != nil {
			slog.Error("retention cleanup failed", "sensor", sensor, "error", err)
		}
	}
}

func validateReading(req model.ReadingRequest) (model.NewReading, error) {
	if isAbsent(req.Distances) || isAbsent(req.Status) {
		return model.NewReading{}, apierror.Validation("Missing required fields: distances and status", "")
	}

	var distances float64
	if err := json.Unmarshal(req.Distances, &distances); err != nil {
		return model.NewReading{}, apierror.Validation("distances must be a number", "")
	}
	if distances < 0 {
		return model.NewReading{}, apierror.Validation("distances must be a positive number", "")
	}

	var status string
	if err := json.Unmarshal(req.Status, &status); err != nil {
		return model.NewReading{}, apierror.Validation("status must be a string", "")
	}
	status = strings.ToLower(status)
	if !slices.Contains(validStatuses, status) {
		return model.NewReading{}, apierror.Validation("status must be one of: online, offline, 1, 0, true, false", "")
	}

	return model.NewReading{Distances: distances, Status: status}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func normalizeLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, MaxReadingLimit)
}

func percentage(part int64, total int64) float64 {
	return math.Round(float64(part)/float64(total)*10000) / 100
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
