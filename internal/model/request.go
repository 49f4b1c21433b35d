package model

import "encoding/json"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ReadingRequest keeps the raw JSON of each field so type mismatches
// ("distances": "12") are reported instead of silently coerced.
type ReadingRequest struct {
	Distances json.RawMessage `json:"distances"`
	Status    json.RawMessage `json:"status"`
}

type ControlRequest struct {
	TV json.RawMessage `json:"TV"`
}
