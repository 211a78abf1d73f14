package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

var tz = time.FixedZone("CET", 3600)

func TestBuildConcatenatesTodayAndTomorrow(t *testing.T) {
	require := require.New(t)

	raw := &domain.RawPriceData{
		Today:    rawHours(5, 0, 0.20, 0.21, 0.22),
		Tomorrow: rawHours(6, 0, 0.30, 0.31),
	}
	series, err := builder.Build(raw)
	require.NoError(err)
	require.Equal(5, series.Len())
	assert.True(t, series.Points()[2].StartsAt.Before(series.Points()[3].StartsAt))
}

func TestBuildFailsOnEmptyToday(t *testing.T) {
	require := require.New(t)

	_, err := builder.Build(&domain.RawPriceData{Tomorrow: rawHours(6, 0, 0.30)})
	require.ErrorIs(err, domain.ErrInvalidPriceData)

	_, err = builder.Build(nil)
	require.ErrorIs(err, domain.ErrInvalidPriceData)
}

func TestBuildRejectsNaiveTimestamps(t *testing.T) {
	require := require.New(t)

	raw := &domain.RawPriceData{
		Today: []domain.RawPricePoint{
			{StartsAt: "2026-01-05T10:00:00", Total: 0.25},
		},
	}
	_, err := builder.Build(raw)
	require.ErrorIs(err, domain.ErrInvalidPriceData)
	// distinguishable from other structural failures
	require.ErrorIs(err, domain.ErrTimezone)
}

func TestBuildRejectsDuplicateTimestamps(t *testing.T) {
	require := require.New(t)

	points := rawHours(5, 10, 0.20, 0.21)
	points = append(points, points[1])
	_, err := builder.Build(&domain.RawPriceData{Today: points})
	require.ErrorIs(err, domain.ErrInvalidPriceData)
}

func TestBuildRejectsUnorderedTimestamps(t *testing.T) {
	require := require.New(t)

	points := rawHours(5, 10, 0.20, 0.21, 0.22)
	points[0], points[2] = points[2], points[0]
	_, err := builder.Build(&domain.RawPriceData{Today: points})
	require.ErrorIs(err, domain.ErrInvalidPriceData)
}

func TestBuildKeepsNegativePrices(t *testing.T) {
	require := require.New(t)

	series, err := builder.Build(&domain.RawPriceData{Today: rawHours(5, 12, -0.05, 0.10)})
	require.NoError(err)
	require.Equal(2, series.Len())
	assert.True(t, series.Points()[0].Price.IsNegative())
}

func TestPriceAtBuckets(t *testing.T) {
	require := require.New(t)

	series, err := builder.Build(&domain.RawPriceData{Today: rawHours(5, 10, 0.20, 0.21, 0.22)})
	require.NoError(err)

	// mid-hour falls in the closest preceding bucket
	p, ok := series.PriceAt(hour(5, 11).Add(30 * time.Minute))
	require.True(ok)
	assert.True(t, p.StartsAt.Equal(hour(5, 11)))

	// exactly on a bucket boundary
	p, ok = series.PriceAt(hour(5, 12))
	require.True(ok)
	assert.True(t, p.StartsAt.Equal(hour(5, 12)))

	// before the first point
	_, ok = series.PriceAt(hour(5, 9).Add(59 * time.Minute))
	require.False(ok)
}

func TestPriceAtGapAndEmpty(t *testing.T) {
	require := require.New(t)

	// 10:00 and 13:00, a two hour gap in between
	points := rawHours(5, 10, 0.20)
	points = append(points, rawHours(5, 13, 0.30)...)
	series, err := builder.Build(&domain.RawPriceData{Today: points})
	require.NoError(err)

	_, ok := series.PriceAt(hour(5, 11).Add(30 * time.Minute))
	require.False(ok, "gap hours must not resolve to a stale bucket")

	_, ok = domain.PriceSeries{}.PriceAt(hour(5, 11))
	require.False(ok)
}

// hour returns day 2026-01-<day> at <h>:00 CET.
func hour(day, h int) time.Time {
	return time.Date(2026, 1, day, h, 0, 0, 0, tz)
}

// rawHours generates consecutive hourly raw points starting at <startHour>.
func rawHours(day, startHour int, prices ...float64) []domain.RawPricePoint {
	points := make([]domain.RawPricePoint, 0, len(prices))
	for i, price := range prices {
		points = append(points, domain.RawPricePoint{
			StartsAt: hour(day, startHour+i).Format(time.RFC3339),
			Total:    price,
		})
	}
	return points
}

var builder = &PriceSeriesBuilder{Logger: zap.Must(zap.NewDevelopment())}
