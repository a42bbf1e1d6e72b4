package location

import (
	"fmt"
	"strings"
	"time"
)

// Known source names.
const (
	SourceNetwork = "network" // Wi-Fi / cell / IP based geolocation
	SourceGPS     = "gps"     // Satellite receiver attached over serial
)

// Position is a single fix reported by a source.
type Position struct {
	Latitude  float64   // Decimal degrees
	Longitude float64   // Decimal degrees
	Accuracy  float64   // Horizontal accuracy radius in metres
	Time      time.Time // Time of the fix
	Source    string    // Name of the source that produced the fix

	// Optional fields, nil when the source does not supply them
	Altitude *float64 // Metres above mean sea level
	Speed    *float64 // Ground speed in m/s
	Heading  *float64 // Course over ground in degrees
}

func (p Position) String() string {
	return fmt.Sprintf("Position[%s %.6f,%.6f acc=%.1f t=%s]",
		p.Source, p.Latitude, p.Longitude, p.Accuracy, p.Time.Format(time.RFC3339))
}

// Status is the availability of a source.
type Status int

const (
	OutOfService Status = iota
	TemporarilyUnavailable
	Available
)

func (s Status) String() string {
	switch s {
	case OutOfService:
		return "out_of_service"
	case TemporarilyUnavailable:
		return "temporarily_unavailable"
	case Available:
		return "available"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusEvent describes a change in the availability of a source.
type StatusEvent struct {
	Provider string
	Status   Status
	Extras   map[string]any
}

// Accuracy is the precision tier requested from the service.
type Accuracy int

const (
	AccuracyCoarse Accuracy = iota
	AccuracyFine
)

func (a Accuracy) String() string {
	if a == AccuracyFine {
		return "fine"
	}
	return "coarse"
}

// Criteria is the precision and the thresholds between updates for a registration.
type Criteria struct {
	Accuracy    Accuracy
	MinTime     time.Duration
	MinDistance float64 // Metres
}

// NewCriteria returns the criteria for a registration. Thresholds are zero so that
// updates are delivered as often as the service allows.
func NewCriteria(highAccuracy bool) Criteria {
	c := Criteria{Accuracy: AccuracyCoarse}
	if highAccuracy {
		c.Accuracy = AccuracyFine
	}
	return c
}

// Permission is an authorization to read positions.
type Permission int

const (
	PermissionCoarse Permission = iota
	PermissionFine
)

func (p Permission) String() string {
	if p == PermissionFine {
		return "fine"
	}
	return "coarse"
}

// ParsePermission converts a configuration value ("coarse" or "fine") into a Permission.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coarse":
		return PermissionCoarse, nil
	case "fine":
		return PermissionFine, nil
	default:
		return 0, fmt.Errorf("unknown location permission %q", s)
	}
}
