package vitals

import "errors"

var (
	// ErrInvalidThreshold is returned by Threshold.Validate when good >= poor.
	ErrInvalidThreshold = errors.New("vitals: invalid threshold")

	// ErrEmptyHistory is returned when a history holds no samples.
	ErrEmptyHistory = errors.New("vitals: empty history")

	// ErrUnknownMetric is returned when parsing an unrecognised metric name.
	ErrUnknownMetric = errors.New("vitals: unknown metric")

	// ErrUnknownStatus is returned when parsing an unrecognised status name.
	ErrUnknownStatus = errors.New("vitals: unknown status")
)
