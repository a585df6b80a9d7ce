package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidReading is returned for payloads that are not a single reading.
var ErrInvalidReading = errors.New("peer: invalid reading")

// Reading is one SenML-style measurement as published on the broker.
//
//	{"n":"temperature","u":"Cel","t":1767268800,"v":21.5}
type Reading struct {
	Name  string  `json:"n"`
	Unit  string  `json:"u"`
	Time  int64   `json:"t"`
	Value float64 `json:"v"`
}

// NewReading builds a reading stamped with ts at second resolution.
func NewReading(name, unit string, value float64, ts time.Time) Reading {
	return Reading{Name: name, Unit: unit, Time: ts.Unix(), Value: value}
}

// Timestamp returns the reading time.
func (r Reading) Timestamp() time.Time {
	return time.Unix(r.Time, 0)
}

// Encode returns the JSON payload.
func (r Reading) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// ParseReading decodes a payload and checks it names a measure.
func ParseReading(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	if strings.TrimSpace(r.Name) == "" {
		return Reading{}, fmt.Errorf("%w: missing n", ErrInvalidReading)
	}
	if r.Time <= 0 {
		return Reading{}, fmt.Errorf("%w: missing t", ErrInvalidReading)
	}
	return r, nil
}
