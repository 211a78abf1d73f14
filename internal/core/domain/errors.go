package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidPriceData marks day-ahead data that failed structural
// validation (unordered, duplicated or naive timestamps, malformed points).
var ErrInvalidPriceData = errors.New("invalid price data")

// ErrNoPriceData signals that no validated price series is available yet.
var ErrNoPriceData = errors.New("no price data available")

// ErrTimezone marks a timestamp without a resolvable UTC offset. It is
// always wrapped together with ErrInvalidPriceData.
var ErrTimezone = errors.New("timestamp has no timezone offset")

// SensorUnavailableError reports an entity whose value could not be read.
// The decision engine treats it as unknown, never as zero.
type SensorUnavailableError struct {
	Entity string
}

func (e SensorUnavailableError) Error() string {
	return fmt.Sprintf("sensor unavailable: %s", e.Entity)
}

// DeviceUnreachableError reports a failed inverter command. Commands are not
// retried within the same tick; the next tick decides again.
type DeviceUnreachableError struct {
	Op    string
	Cause error
}

func (e DeviceUnreachableError) Error() string {
	return fmt.Sprintf("device unreachable during %s: %s", e.Op, e.Cause)
}

func (e DeviceUnreachableError) Unwrap() error {
	return e.Cause
}
