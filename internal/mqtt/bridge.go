package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"go-iot-backend/internal/event"
	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

const ingestTimeout = 5 * time.Second

type messenger interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

type readingRecorder interface {
	Record(ctx context.Context, sensor model.SensorID, req model.ReadingRequest) (model.InsertReadingResult, error)
}

// Bridge connects devices on the broker to the stores: control changes go
// out as retained messages, readings come in through the same validation as
// the HTTP ingest route.
type Bridge struct {
	client    messenger
	readings  readingRecorder
	topics    Topics
	rejectLog rate.Sometimes
}

func NewBridge(client messenger, readings readingRecorder, topics Topics) *Bridge {
	return &Bridge{
		client:    client,
		readings:  readings,
		topics:    topics,
		rejectLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Start subscribes to device readings.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllReadings(), b.HandleReading); err != nil {
		return fmt.Errorf("subscribe readings: %w", err)
	}
	slog.Info("mqtt bridge subscribed", "topic", b.topics.AllReadings())
	return nil
}

// Run forwards control changes from the bus until ctx is done or the
// channel closes.
func (b *Bridge) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			changed, isControl := e.Payload.(event.ControlChanged)
			if e.Type != event.TypeControlChanged || !isControl {
				continue
			}
			if err := b.PublishControl(changed); err != nil {
				slog.Warn("control state not published", "tv", changed.TV, "error", err)
			}
		}
	}
}

func (b *Bridge) PublishControl(state event.ControlChanged) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode control state: %w", err)
	}
	return b.client.Publish(b.topics.ControlTV(), payload, true)
}

// HandleReading ingests one device message. Malformed messages are dropped;
// only store failures are returned as errors.
func (b *Bridge) HandleReading(topic string, payload []byte) error {
	sensor, ok := b.topics.SensorFromReading(topic)
	if !ok {
		b.reject(topic, "unknown sensor topic")
		return nil
	}

	var req model.ReadingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b.reject(topic, "invalid JSON payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	_, err := b.readings.Record(ctx, sensor, req)
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		b.reject(topic, apiErr.Message)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record reading from %s: %w", topic, err)
	}
	return nil
}

func (b *Bridge) reject(topic string, reason string) {
	b.rejectLog.Do(func() {
		slog.Warn("mqtt reading dropped", "topic", topic, "reason", reason)
	})
}
