package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownIdentifier is stored for device identifiers the reporter omitted.
const UnknownIdentifier = "Unknown"

// ErrValidation is the base error for client-caused ingestion rejections.
// Handlers map anything wrapping it to a 400 response.
var ErrValidation = errors.New("invalid reading")

// Reading is one accepted sensor event record, exactly as persisted and
// broadcast. Value keeps the device's raw JSON (number or string) verbatim.
// Nil coordinates serialize as null, the explicit absent marker.
type Reading struct {
	Event     string          `json:"event"`
	Value     json.RawMessage `json:"value"`
	Timestamp string          `json:"timestamp"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	IP        string          `json:"ip"`
	MAC       string          `json:"mac"`
}

// Payload is a candidate reading as decoded from an ingestion request body,
// before validation and normalization. Coordinates stay raw because devices
// report them either as JSON numbers or as numeric strings.
type Payload struct {
	Event     string          `json:"event"`
	Value     json.RawMessage `json:"value"`
	Timestamp string          `json:"timestamp"`
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
	IP        string          `json:"ip"`
	MAC       string          `json:"mac"`
}

// NewReading validates and normalizes a payload into a Reading.
//
// event must be non-empty and timestamp must be present. value must be
// present but may be any JSON value, including 0 or null: a reading that
// reports "nothing measured" is still a reading. Failures wrap
// [ErrValidation].
func NewReading(p Payload) (Reading, error) {
	if p.Event == "" {
		return Reading{}, fmt.Errorf("%w: missing required field %q", ErrValidation, "event")
	}
	if len(p.Value) == 0 {
		return Reading{}, fmt.Errorf("%w: missing required field %q", ErrValidation, "value")
	}
	if p.Timestamp == "" {
		return Reading{}, fmt.Errorf("%w: missing required field %q", ErrValidation, "timestamp")
	}

	return Reading{
		Event:     p.Event,
		Value:     p.Value,
		Timestamp: p.Timestamp,
		Latitude:  parseCoordinate(p.Latitude),
		Longitude: parseCoordinate(p.Longitude),
		IP:        defaultIdentifier(p.IP),
		MAC:       defaultIdentifier(p.MAC),
	}, nil
}

// parseCoordinate interprets a raw JSON coordinate as a float64.
// Accepts JSON numbers and numeric strings; anything else (missing, null,
// junk text) yields nil, the absent marker.
func parseCoordinate(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func defaultIdentifier(s string) string {
	if s == "" {
		return UnknownIdentifier
	}
	return s
}
