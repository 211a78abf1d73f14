package port

import (
	"context"
	"time"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

// SensorReader reads live state from the home automation platform.
type SensorReader interface {
	ReadSnapshot(ctx context.Context) (*domain.LiveSnapshot, error)
}

// ForecastReader fetches the raw day-ahead price forecast.
type ForecastReader interface {
	ReadPriceForecast(ctx context.Context) (*domain.RawPriceData, error)
}

// DeviceController commands the inverter's battery charge control.
// Open must succeed before any command is issued.
type DeviceController interface {
	Open(ctx context.Context) error
	Close() error
	EnableCharge(ctx context.Context, powerWatt uint32) error
	DisableCharge(ctx context.Context) error
	State(ctx context.Context) (externControl bool, setpointWatt uint32, err error)
}

// ChargePlanner turns a validated price series and current SOC into a
// charging plan. Pure logic, no I/O.
type ChargePlanner interface {
	BuildPlan(series domain.PriceSeries, now time.Time, currentSoC float64, targetSoC float64) domain.ChargingPlan
}

// ChargeDecisionLogic evaluates the per-tick decision. Pure logic, no I/O.
type ChargeDecisionLogic interface {
	Decide(snapshot domain.LiveSnapshot, plan *domain.ChargingPlan, automationEnabled bool, now time.Time) domain.Decision
}
