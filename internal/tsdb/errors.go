package tsdb

import "errors"

var (
	ErrDisabled         = errors.New("influxdb: not configured")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
