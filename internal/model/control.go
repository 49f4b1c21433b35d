package model

import "time"

type ControlState struct {
	TV        int       `json:"TV"`
	UpdatedAt time.Time `json:"-"`
}

type ControlStatus struct {
	TV int `json:"TV"`
}

type ControlUpdateResult struct {
	Message      string    `json:"message"`
	TV           int       `json:"TV"`
	UpdatedAt    time.Time `json:"updated_at"`
	AffectedRows int64     `json:"affected_rows"`
}

type ControlToggleResult struct {
	ControlUpdateResult
	PreviousValue int `json:"previous_value"`
	NewValue      int `json:"new_value"`
}

type DeviceStatus struct {
	Status      string     `json:"status"`
	Value       int        `json:"value"`
	LastUpdated *time.Time `json:"last_updated"`
}

type DeviceSummary struct {
	Devices       map[string]DeviceStatus `json:"devices"`
	TotalDevices  int                     `json:"total_devices"`
	ActiveDevices int                     `json:"active_devices"`
	Summary       string                  `json:"summary"`
}
