package service

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/port"
)

// ChargePlanBuilder computes a backward-scheduled charging window ending at
// the trend breakpoint.
type ChargePlanBuilder struct {
	Trend           *TrendAnalyzer
	MinutesPer10Pct uint
	Logger          *zap.Logger
}

// BuildPlan recomputes the plan from scratch. Plans are never patched
// incrementally.
func (b *ChargePlanBuilder) BuildPlan(series domain.PriceSeries, now time.Time,
	currentSoC float64, targetSoC float64) domain.ChargingPlan {

	plan := domain.ChargingPlan{
		ComputedAt: now,
		TargetSOC:  targetSoC,
	}

	if series.IsEmpty() {
		plan.Reason = domain.PlanNoData
		return plan
	}
	if currentSoC >= targetSoC {
		plan.Reason = domain.PlanAlreadyAtTarget
		return plan
	}

	rise, found := b.Trend.FindPriceRise(series, now)
	if !found {
		plan.Reason = domain.PlanNoCheapPeriod
		return plan
	}

	socNeeded := targetSoC - currentSoC
	duration := time.Duration(math.Ceil(socNeeded/10)*float64(b.MinutesPer10Pct)) * time.Minute

	windowEnd := rise.Point.StartsAt
	windowStart := windowEnd.Add(-duration)
	if windowStart.Before(now) {
		// less time remains than needed, start right away
		windowStart = now
	}

	plan.Reason = domain.PlanFound
	plan.WindowStart = &windowStart
	plan.WindowEnd = &windowEnd

	if b.Logger != nil {
		b.Logger.Info("charging plan computed",
			zap.Time("window_start", windowStart),
			zap.Time("window_end", windowEnd),
			zap.Float64("target_soc", targetSoC),
			zap.Float64("delta_pct", rise.DeltaPct))
	}
	return plan
}

// ensure interface compliance
var _ port.ChargePlanner = (*ChargePlanBuilder)(nil)
