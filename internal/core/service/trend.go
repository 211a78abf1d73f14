package service

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

// PriceRise describes the detected end of the cheap period.
type PriceRise struct {
	Point    domain.PricePoint
	DeltaPct float64
	Horizon  time.Duration
}

// TrendAnalyzer finds the earliest instant after now at which the price
// trend signals the end of the cheap period.
type TrendAnalyzer struct {
	// Threshold1h and Threshold3h are fractions, e.g. 0.08 for 8%.
	Threshold1h float64
	Threshold3h float64
	Logger      *zap.Logger
}

// FindPriceRise walks the series from the current hour forward and flags
// the first point whose 1h or 3h trailing delta meets its threshold. The 1h
// delta is evaluated first; either one triggering is sufficient. Missing
// predecessors never trigger. Returns false when no point through the end
// of available data is flagged.
func (a *TrendAnalyzer) FindPriceRise(series domain.PriceSeries, now time.Time) (PriceRise, bool) {
	points := series.Points()
	th1 := decimal.NewFromFloat(a.Threshold1h)
	th3 := decimal.NewFromFloat(a.Threshold3h)

	for i := range points {
		p := points[i]
		if !p.StartsAt.After(now) {
			continue
		}

		if i >= 1 {
			if delta, ok := relativeDelta(p.Price, points[i-1].Price); ok && delta.GreaterThanOrEqual(th1) {
				return a.rise(p, delta, time.Hour), true
			}
		}
		if i >= 3 {
			avg := points[i-1].Price.Add(points[i-2].Price).Add(points[i-3].Price).
				Div(decimal.NewFromInt(3))
			if delta, ok := relativeDelta(p.Price, avg); ok && delta.GreaterThanOrEqual(th3) {
				return a.rise(p, delta, 3*time.Hour), true
			}
		}
	}
	return PriceRise{}, false
}

func (a *TrendAnalyzer) rise(p domain.PricePoint, delta decimal.Decimal, horizon time.Duration) PriceRise {
	deltaPct, _ := delta.Mul(decimal.NewFromInt(100)).Float64()
	if a.Logger != nil {
		a.Logger.Debug("price rise detected",
			zap.Time("at", p.StartsAt),
			zap.Float64("delta_pct", deltaPct),
			zap.Duration("horizon", horizon))
	}
	return PriceRise{Point: p, DeltaPct: deltaPct, Horizon: horizon}
}

// relativeDelta returns (price - ref) / ref. A non-positive reference price
// makes a relative rise meaningless, so the comparison is skipped.
func relativeDelta(price, ref decimal.Decimal) (decimal.Decimal, bool) {
	if !ref.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price.Sub(ref).Div(ref), true
}
