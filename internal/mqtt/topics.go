package mqtt

import (
	"strings"

	"go-iot-backend/internal/model"
)

// Topics builds the topic tree under a configurable prefix:
//
//	<prefix>/control/tv             retained control state, published here
//	<prefix>/distance/<n>/reading   device readings, consumed here
type Topics struct {
	Prefix string
}

func (t Topics) ControlTV() string {
	return t.Prefix + "/control/tv"
}

func (t Topics) AllReadings() string {
	return t.Prefix + "/distance/+/reading"
}

func (t Topics) Reading(sensor model.SensorID) string {
	return t.Prefix + "/distance/" + string(sensor) + "/reading"
}

// SensorFromReading extracts the sensor id from a concrete reading topic.
func (t Topics) SensorFromReading(topic string) (model.SensorID, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/distance/")
	if !ok {
		return "", false
	}
	raw, ok := strings.CutSuffix(rest, "/reading")
	if !ok {
		return "", false
	}
	return model.ParseSensor(raw)
}
