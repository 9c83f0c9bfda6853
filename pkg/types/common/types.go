// Package common holds the small shared value types used across the
// coilforge domain, application, and infrastructure layers.
package common

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4 identifiers (designs, export artifacts).
type ID string

// NewID generates a new random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Timestamp is a time.Time alias serialized as RFC 3339 in JSON.
type Timestamp time.Time

// NewTimestamp returns the current UTC time as a Timestamp.
func NewTimestamp() Timestamp {
	return Timestamp(time.Now().UTC())
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Range is an immutable min/max pair.  Every configured bound in the system
// (coordinates, widths, normalization, rule limits) is a Range; a violated
// Min <= Max invariant is a configuration error, never a runtime failure.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Validate reports whether Min <= Max and both ends are non-NaN.
// Infinite ends are permitted: a one-sided limit uses -Inf or +Inf.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return fmt.Errorf("range contains NaN: [%v, %v]", r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("range min exceeds max: [%v, %v]", r.Min, r.Max)
	}
	return nil
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Clamp restricts v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies inside [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// IntRange is an immutable integer min/max pair (design sizes, retry counts).
type IntRange struct {
	Min int `mapstructure:"min" json:"min"`
	Max int `mapstructure:"max" json:"max"`
}

// Validate reports whether Min <= Max.
func (r IntRange) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("range min exceeds max: [%d, %d]", r.Min, r.Max)
	}
	return nil
}
