package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-iot-backend/internal/event"
	"go-iot-backend/internal/model"
	"go-iot-backend/internal/repository"
	"go-iot-backend/pkg/apierror"
)

func reading(distances string, status string) model.ReadingRequest {
	req := model.ReadingRequest{}
	if distances != "" {
		req.Distances = json.RawMessage(distances)
	}
	if status != "" {
		req.Status = json.RawMessage(status)
	}
	return req
}

func TestTelemetryService_Record(t *testing.T) {
	t.Parallel()

	t.Run("valid reading is stored and announced", func(t *testing.T) {
		store := repository.NewMemoryReadingRepository()
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()
		svc := NewTelemetryService(store, bus)

		result, err := svc.Record(context.Background(), model.Sensor1, reading(`12.5`, `"ONLINE"`))
		require.NoError(t, err)
		assert.Equal(t, "Distance1 data inserted successfully", result.Message)
		assert.Equal(t, 12.5, result.Distances)
		assert.Equal(t, "online", result.Status)
		assert.Equal(t, model.Sensor1, result.SensorType)
		assert.NotZero(t, result.ID)

		select {
		case e := <-events:
			require.Equal(t, event.TypeReadingCreated, e.Type)
			payload := e.Payload.(event.ReadingCreated)
			assert.Equal(t, "1", payload.Sensor)
			assert.Equal(t, result.ID, payload.ID)
		case <-time.After(time.Second):
			t.Fatal("reading.created not published")
		}

		rows, err := svc.List(context.Background(), model.Sensor1, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	tests := []struct {
		name    string
		req     model.ReadingRequest
		message string
	}{
		{name: "missing distances", req: reading("", `"online"`), message: "Missing required fields: distances and status"},
		{name: "missing status", req: reading(`3`, ""), message: "Missing required fields: distances and status"},
		{name: "null distances", req: reading(`null`, `"online"`), message: "Missing required fields: distances and status"},
		{name: "string distances", req: reading(`"12"`, `"online"`), message: "distances must be a number"},
		{name: "negative distances", req: reading(`-1`, `"online"`), message: "distances must be a positive number"},
		{name: "numeric status", req: reading(`1`, `1`), message: "status must be a string"},
		{name: "unknown status", req: reading(`1`, `"maybe"`), message: "status must be one of: online, offline, 1, 0, true, false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryReadingRepository()
			svc := NewTelemetryService(store, nil)

			_, err := svc.Record(context.Background(), model.Sensor2, tt.req)
			apiErr := requireCode(t, err, apierror.CodeValidation)
			assert.Equal(t, tt.message, apiErr.Message)

			rows, err := store.List(context.Background(), model.Sensor2, 10)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}

	t.Run("zero distance is accepted", func(t *testing.T) {
		svc := NewTelemetryService(repository.NewMemoryReadingRepository(), nil)
		_, err := svc.Record(context.Background(), model.Sensor2, reading(`0`, `"false"`))
		require.NoError(t, err)
	})
}

func TestTelemetryService_Queries(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	clock := base
	store := repository.NewMemoryReadingRepository()
	store.SetClock(func() time.Time { return clock })
	svc := NewTelemetryService(store, nil)
	svc.now = func() time.Time { return base.Add(48 * time.Hour) }
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		clock = base.Add(time.Duration(i) * time.Hour)
		status := `"online"`
		if i%4 == 0 {
			status = `"offline"`
		}
		_, err := svc.Record(ctx, model.Sensor1, reading(jsonNumber(float64(i)), status))
		require.NoError(t, err)
	}
	clock = base.Add(30 * time.Hour)
	_, err := svc.Record(ctx, model.Sensor2, reading(`7`, `"1"`))
	require.NoError(t, err)

	t.Run("list is newest first with default limit", func(t *testing.T) {
		rows, err := svc.List(ctx, model.Sensor1, 0)
		require.NoError(t, err)
		require.Len(t, rows, DefaultSensorLimit)
		assert.Equal(t, 24.0, rows[0].Distances)
		assert.True(t, rows[0].Timestamp.After(rows[1].Timestamp))
	})

	t.Run("explicit limit", func(t *testing.T) {
		rows, err := svc.List(ctx, model.Sensor1, 3)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("combined listing is tagged and limited", func(t *testing.T) {
		rows, err := svc.ListAll(ctx, 0)
		require.NoError(t, err)
		require.Len(t, rows, DefaultCombinedLimit)
		assert.Equal(t, "distance2", rows[0].Source)
		assert.Equal(t, "distance1", rows[1].Source)
	})

	t.Run("latest", func(t *testing.T) {
		rd, err := svc.Latest(ctx, model.Sensor2)
		require.NoError(t, err)
		assert.Equal(t, 7.0, rd.Distances)
	})

	t.Run("statistics over window", func(t *testing.T) {
		// now is base+48h, so 24h covers readings at base+24h and nothing else on sensor 1
		stats, err := svc.Statistics(ctx, model.Sensor1, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultStatsHours, stats.PeriodHours)
		assert.Equal(t, int64(1), stats.TotalReadings)
		assert.Equal(t, 0.0, stats.OnlinePercentage)
		assert.Equal(t, 100.0, stats.OfflinePercentage)

		stats, err = svc.Statistics(ctx, model.Sensor1, 48)
		require.NoError(t, err)
		assert.Equal(t, int64(25), stats.TotalReadings)
		assert.Equal(t, 0.0, stats.MinDistance)
		assert.Equal(t, 24.0, stats.MaxDistance)
		assert.Equal(t, 12.0, stats.AvgDistance)
		assert.Equal(t, 72.0, stats.OnlinePercentage)
		assert.Equal(t, 28.0, stats.OfflinePercentage)
	})

	t.Run("cleanup", func(t *testing.T) {
		result, err := svc.Cleanup(ctx, model.Sensor2, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.DeletedRecords)
		assert.Equal(t, "Cleaned up old data from distance2", result.Message)
		assert.Equal(t, 1, result.DaysKept)
	})
}

func TestTelemetryService_LatestNotFound(t *testing.T) {
	t.Parallel()

	svc := NewTelemetryService(repository.NewMemoryReadingRepository(), nil)
	_, err := svc.Latest(context.Background(), model.Sensor2)
	apiErr := requireCode(t, err, apierror.CodeNotFound)
	assert.Equal(t, "No data found for sensor 2", apiErr.Message)

	stats, err := svc.Statistics(context.Background(), model.Sensor2, 5)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReadings)
	assert.Zero(t, stats.OnlinePercentage)
}

func TestTelemetryService_RetentionTicker(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := repository.NewMemoryReadingRepository()
	store.SetClock(func() time.Time { return now.AddDate(0, 0, -40) })
	svc := NewTelemetryService(store, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.Record(ctx, model.Sensor1, reading(`1`, `"online"`))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.StartRetentionTicker(ctx, time.Hour, 30)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rows, err := store.List(context.Background(), model.Sensor1, 10)
		return err == nil && len(rows) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20, normalizeLimit(0, 20))
	assert.Equal(t, 20, normalizeLimit(-5, 20))
	assert.Equal(t, 5, normalizeLimit(5, 20))
	assert.Equal(t, MaxReadingLimit, normalizeLimit(1_000_000, 20))
}

func jsonNumber(v float64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
