package enums

import "fmt"

// DriverStatus maps to the driver_status enum in Postgres.
type DriverStatus string

const (
	DriverStatusAvailable  DriverStatus = "available"
	DriverStatusOnDelivery DriverStatus = "on_delivery"
	DriverStatusOffline    DriverStatus = "offline"
)

var validDriverStatuses = []DriverStatus{
	DriverStatusAvailable,
	DriverStatusOnDelivery,
	DriverStatusOffline,
}

// String implements fmt.Stringer.
func (d DriverStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DriverStatus.
func (d DriverStatus) IsValid() bool {
	for _, candidate := range validDriverStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// Notifiable reports whether drivers in this status may receive order offers.
func (d DriverStatus) Notifiable() bool {
	return d == DriverStatusAvailable || d == DriverStatusOnDelivery
}

// ParseDriverStatus converts raw input into a DriverStatus.
func ParseDriverStatus(value string) (DriverStatus, error) {
	for _, candidate := range validDriverStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid driver status %q", value)
}
