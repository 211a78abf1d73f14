package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

// PriceSeriesBuilder validates and normalizes raw day-ahead price data into
// a chronological series.
type PriceSeriesBuilder struct {
	Logger *zap.Logger
}

// Build concatenates today's and tomorrow's points into one series.
// Tomorrow may be empty before publication. Fails when today is empty,
// a timestamp cannot be parsed with an explicit UTC offset, or timestamps
// are not strictly increasing.
func (b *PriceSeriesBuilder) Build(raw *domain.RawPriceData) (domain.PriceSeries, error) {
	if raw == nil || len(raw.Today) == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%w: no points for today", domain.ErrInvalidPriceData)
	}

	rawPoints := make([]domain.RawPricePoint, 0, len(raw.Today)+len(raw.Tomorrow))
	rawPoints = append(rawPoints, raw.Today...)
	rawPoints = append(rawPoints, raw.Tomorrow...)

	points := make([]domain.PricePoint, 0, len(rawPoints))
	for _, rp := range rawPoints {
		startsAt, err := parseAwareTimestamp(rp.StartsAt)
		if err != nil {
			return domain.PriceSeries{}, err
		}
		points = append(points, domain.PricePoint{
			StartsAt: startsAt,
			Price:    decimal.NewFromFloat(rp.Total),
		})
	}

	for i := 1; i < len(points); i++ {
		if !points[i].StartsAt.After(points[i-1].StartsAt) {
			return domain.PriceSeries{}, fmt.Errorf("%w: timestamps not strictly increasing at %s",
				domain.ErrInvalidPriceData, points[i].StartsAt.Format(time.RFC3339))
		}
	}

	if b.Logger != nil {
		b.Logger.Debug("price series built", zap.Int("points", len(points)),
			zap.Int("tomorrow", len(raw.Tomorrow)))
	}
	return domain.NewPriceSeries(points), nil
}

// parseAwareTimestamp parses an RFC 3339 timestamp. Timestamps lacking a
// resolvable UTC offset are rejected here, never tolerated until comparison.
func parseAwareTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w: %q", domain.ErrInvalidPriceData, domain.ErrTimezone, s)
	}
	return t, nil
}
