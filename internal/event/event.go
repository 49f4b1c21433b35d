package event

import "time"

type Type string

const (
	TypeReadingCreated Type = "reading.created"
	TypeControlChanged Type = "control.changed"
	TypeReadingsPurged Type = "readings.purged"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type ReadingCreated struct {
	Sensor    string    `json:"sensor"`
	ID        int64     `json:"id"`
	Distances float64   `json:"distances"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ControlChanged struct {
	TV        int       `json:"TV"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReadingsPurged struct {
	Sensor  string `json:"sensor"`
	Deleted int64  `json:"deleted"`
}

type Publisher interface {
	Publish(e Event)
}

type Bus interface {
	Publisher
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
