package model

import "time"

type SensorID string

const (
	Sensor1 SensorID = "1"
	Sensor2 SensorID = "2"
)

var Sensors = []SensorID{Sensor1, Sensor2}

func ParseSensor(raw string) (SensorID, bool) {
	switch SensorID(raw) {
	case Sensor1, Sensor2:
		return SensorID(raw), true
	default:
		return "", false
	}
}

// Table is the backing table of the sensor. Only values returned by
// ParseSensor are ever interpolated into SQL.
func (s SensorID) Table() string {
	return "distance" + string(s)
}

// ReaderRole is the non-super role allowed to read this sensor.
func (s SensorID) ReaderRole() Role {
	return Role("admin-distance" + string(s))
}

type Reading struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source,omitempty"`
	Distances float64   `json:"distances"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type NewReading struct {
	Distances float64
	Status    string
}

type InsertReadingResult struct {
	Message    string    `json:"message"`
	ID         int64     `json:"id"`
	Distances  float64   `json:"distances"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	SensorType SensorID  `json:"sensorType"`
}

// ReadingAggregate is the raw aggregate row produced by the store.
type ReadingAggregate struct {
	Total   int64
	Avg     float64
	Min     float64
	Max     float64
	Online  int64
	Offline int64
}

type ReadingStatistics struct {
	Sensor            SensorID `json:"sensor"`
	PeriodHours       int      `json:"period_hours"`
	TotalReadings     int64    `json:"total_readings"`
	AvgDistance       float64  `json:"avg_distance"`
	MinDistance       float64  `json:"min_distance"`
	MaxDistance       float64  `json:"max_distance"`
	OnlinePercentage  float64  `json:"online_percentage"`
	OfflinePercentage float64  `json:"offline_percentage"`
}

type CleanupResult struct {
	Message        string   `json:"message"`
	DeletedRecords int64    `json:"deleted_records"`
	Sensor         SensorID `json:"sensor"`
	DaysKept       int      `json:"days_kept"`
}
