package sensor

import "errors"

var (
	// ErrInitFailed is returned when a required sensor driver fails to start.
	ErrInitFailed = errors.New("sensor init failed")
	// ErrNoEnvironmentalSensor is returned when environmental fields are
	// requested but no environmental sensor is selected.
	ErrNoEnvironmentalSensor = errors.New("no environmental sensor selected")
	// ErrUnsupportedField is returned when the selected sensor cannot measure a requested field.
	ErrUnsupportedField = errors.New("field not supported by selected sensor")
)
