package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode is the single charging state of the system. Exactly one mode holds at
// any instant; transitions are decided by the decision engine and applied by
// the control actor.
type Mode string

const (
	ModeStandby        Mode = "standby"
	ModeManualCharging Mode = "manual_charging"
	ModeAutoCharging   Mode = "auto_charging"
)

// PriceLevel mirrors the Tibber price level classification.
type PriceLevel string

const (
	PriceLevelCheap         PriceLevel = "CHEAP"
	PriceLevelNormal        PriceLevel = "NORMAL"
	PriceLevelExpensive     PriceLevel = "EXPENSIVE"
	PriceLevelVeryExpensive PriceLevel = "VERY_EXPENSIVE"
	PriceLevelUnknown       PriceLevel = "UNKNOWN"
)

func ParsePriceLevel(s string) PriceLevel {
	switch strings.ToUpper(s) {
	case "VERY_CHEAP", "CHEAP":
		return PriceLevelCheap
	case "NORMAL":
		return PriceLevelNormal
	case "EXPENSIVE":
		return PriceLevelExpensive
	case "VERY_EXPENSIVE":
		return PriceLevelVeryExpensive
	default:
		return PriceLevelUnknown
	}
}

// PricePoint is one hour of the day-ahead price curve. StartsAt always
// carries a resolved UTC offset; naive timestamps are rejected at ingestion.
type PricePoint struct {
	StartsAt time.Time
	Price    decimal.Decimal
}

// PriceSeries is the chronological concatenation of today's and (when
// already published) tomorrow's hourly price points. Timestamps are strictly
// increasing; gaps are tolerated but never interpolated.
type PriceSeries struct {
	points []PricePoint
}

func NewPriceSeries(points []PricePoint) PriceSeries {
	return PriceSeries{points: points}
}

func (s PriceSeries) Points() []PricePoint {
	return s.points
}

func (s PriceSeries) Len() int {
	return len(s.points)
}

func (s PriceSeries) IsEmpty() bool {
	return len(s.points) == 0
}

// PriceAt returns the point whose 1-hour bucket contains the given instant.
// The second return is false when the instant precedes the first point,
// falls into a gap, or the series is empty.
func (s PriceSeries) PriceAt(instant time.Time) (PricePoint, bool) {
	var found *PricePoint
	for i := range s.points {
		if s.points[i].StartsAt.After(instant) {
			break
		}
		found = &s.points[i]
	}
	if found == nil {
		return PricePoint{}, false
	}
	if instant.Sub(found.StartsAt) >= time.Hour {
		return PricePoint{}, false
	}
	return *found, true
}

// RawPricePoint is an unvalidated point as delivered by the price source
// (Tibber entity attributes).
type RawPricePoint struct {
	StartsAt string  `json:"startsAt" mapstructure:"startsAt"`
	Total    float64 `json:"total" mapstructure:"total"`
	Level    string  `json:"level" mapstructure:"level"`
}

// RawPriceData is the day-ahead forecast as fetched from the price source.
// Tomorrow is legitimately empty before publication (~13:00 local).
type RawPriceData struct {
	Today    []RawPricePoint
	Tomorrow []RawPricePoint
}

// PlanReason reports why a plan does or does not contain a window.
type PlanReason string

const (
	PlanFound           PlanReason = "FOUND"
	PlanNoCheapPeriod   PlanReason = "NO_CHEAP_PERIOD"
	PlanAlreadyAtTarget PlanReason = "ALREADY_AT_TARGET"
	PlanNoData          PlanReason = "NO_DATA"
)

// ChargingPlan is the output of a slow-cycle plan computation. Immutable
// once produced; the control actor replaces it wholesale. A nil window means
// no automatic charge is scheduled.
type ChargingPlan struct {
	ComputedAt  time.Time
	WindowStart *time.Time
	WindowEnd   *time.Time
	TargetSOC   float64
	Reason      PlanReason
}

// WindowActive reports whether now is inside [WindowStart, WindowEnd).
func (p ChargingPlan) WindowActive(now time.Time) bool {
	if p.Reason != PlanFound || p.WindowStart == nil || p.WindowEnd == nil {
		return false
	}
	return !now.Before(*p.WindowStart) && now.Before(*p.WindowEnd)
}

func (p ChargingPlan) Summary() string {
	switch p.Reason {
	case PlanFound:
		return fmt.Sprintf("charge window %s - %s (target %.0f%%)",
			p.WindowStart.Format("15:04"), p.WindowEnd.Format("15:04"), p.TargetSOC)
	case PlanNoCheapPeriod:
		return "no cheap period detected, no window scheduled"
	case PlanAlreadyAtTarget:
		return "battery already at target SOC"
	default:
		return "no price data available"
	}
}

// LiveSnapshot is the sensor state of a single fast tick. It is rebuilt
// every tick and owned by the tick that produced it.
type LiveSnapshot struct {
	Time time.Time
	SOC  float64
	// BatteryPowerWatt is positive while the battery charges, negative
	// while it discharges.
	BatteryPowerWatt      float64
	PVForecastTodayKWh    float64
	PVForecastTomorrowKWh float64
	CurrentPrice          decimal.Decimal
	PriceLevel            PriceLevel
	ManualOverride        bool
}

// ConditionPolarity tells how a satisfied flag maps onto "good" for the
// explanation rendering.
type ConditionPolarity string

const (
	OkWhenTrue  ConditionPolarity = "ok_when_true"
	OkWhenFalse ConditionPolarity = "ok_when_false"
)

// Condition is one evaluated gate of the decision engine, surfaced for the
// status explanation. Evaluated fresh each tick, never cached.
type Condition struct {
	ID        string            `json:"id"`
	Satisfied bool              `json:"satisfied"`
	Actual    string            `json:"actual"`
	Threshold string            `json:"threshold"`
	Polarity  ConditionPolarity `json:"polarity"`
	Detail    string            `json:"detail"`
}

// Ok maps the satisfied flag through the polarity.
func (c Condition) Ok() bool {
	if c.Polarity == OkWhenFalse {
		return !c.Satisfied
	}
	return c.Satisfied
}

// Mark renders the condition state for the dashboard explanation.
func (c Condition) Mark() string {
	if c.Ok() {
		return "✅"
	}
	return "❌"
}

// Decision is the decision engine's complete output for one tick.
type Decision struct {
	Mode            Mode
	ChargePowerWatt uint32
	Summary         string
	Conditions      []Condition
}
