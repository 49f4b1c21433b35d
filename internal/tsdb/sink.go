package tsdb

import (
	"context"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"go-iot-backend/internal/event"
)

const measurement = "distance"

type pointWriter interface {
	WritePoint(point *write.Point)
}

// Sink mirrors stored readings into the time-series bucket.
type Sink struct {
	writer pointWriter
}

func NewSink(writer pointWriter) *Sink {
	return &Sink{writer: writer}
}

// Run consumes bus events until ctx is done or the channel closes.
func (s *Sink) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if reading, isReading := e.Payload.(event.ReadingCreated); isReading && e.Type == event.TypeReadingCreated {
				s.writer.WritePoint(ReadingPoint(reading))
			}
		}
	}
}

func ReadingPoint(r event.ReadingCreated) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{"sensor": r.Sensor},
		map[string]any{
			"distance": r.Distances,
			"online":   isOnline(r.Status),
		},
		r.Timestamp,
	)
}

func isOnline(status string) bool {
	switch strings.ToLower(status) {
	case "online", "1", "true":
		return true
	default:
		return false
	}
}
