package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

// a 10% jump at 14:00 CET, cheap before
func risingSeries() domain.PriceSeries {
	return seriesOf(5, 10, 0.20, 0.20, 0.20, 0.20, 0.22, 0.22)
}

func TestPlanNoData(t *testing.T) {
	require := require.New(t)

	plan := planner.BuildPlan(domain.PriceSeries{}, hour(5, 10), 50, 95)
	require.Equal(domain.PlanNoData, plan.Reason)
	assert.Nil(t, plan.WindowStart)
	assert.Equal(t, hour(5, 10), plan.ComputedAt)
}

func TestPlanAlreadyAtTarget(t *testing.T) {
	require := require.New(t)

	// target reached wins even when a breakpoint exists
	plan := planner.BuildPlan(risingSeries(), hour(5, 10), 95, 95)
	require.Equal(domain.PlanAlreadyAtTarget, plan.Reason)
	assert.Nil(t, plan.WindowStart)

	plan = planner.BuildPlan(risingSeries(), hour(5, 10), 97, 95)
	require.Equal(domain.PlanAlreadyAtTarget, plan.Reason)
}

func TestPlanNoCheapPeriod(t *testing.T) {
	require := require.New(t)

	flat := seriesOf(5, 10, 0.25, 0.25, 0.25, 0.25, 0.25)
	plan := planner.BuildPlan(flat, hour(5, 10), 50, 95)
	require.Equal(domain.PlanNoCheapPeriod, plan.Reason)
	assert.Nil(t, plan.WindowStart)
	assert.Equal(t, hour(5, 10), plan.ComputedAt)
}

func TestPlanBackwardScheduledWindow(t *testing.T) {
	require := require.New(t)

	// SOC 60 to 95 needs 35% -> ceil(35/10) = 4 blocks -> 72 min
	plan := planner.BuildPlan(risingSeries(), hour(5, 10), 60, 95)
	require.Equal(domain.PlanFound, plan.Reason)
	require.NotNil(plan.WindowStart)
	require.NotNil(plan.WindowEnd)
	assert.Equal(t, hour(5, 12).Add(48*time.Minute), *plan.WindowStart)
	assert.Equal(t, hour(5, 14), *plan.WindowEnd)

	assert.True(t, plan.WindowActive(hour(5, 13)))
	assert.False(t, plan.WindowActive(hour(5, 14)), "window end is exclusive")
	assert.False(t, plan.WindowActive(hour(5, 12)))
}

func TestPlanClampsStartToNow(t *testing.T) {
	require := require.New(t)

	// at 13:30 only 30 min remain before the breakpoint, less than the
	// 72 min needed; charging starts immediately and is still FOUND
	now := hour(5, 13).Add(30 * time.Minute)
	plan := planner.BuildPlan(risingSeries(), now, 60, 95)
	require.Equal(domain.PlanFound, plan.Reason)
	assert.Equal(t, now, *plan.WindowStart)
	assert.Equal(t, hour(5, 14), *plan.WindowEnd)
	assert.True(t, plan.WindowStart.Before(*plan.WindowEnd))
}

func TestPlanDurationRoundsUpToBlocks(t *testing.T) {
	require := require.New(t)

	// 1% needed still charges a full 10% block
	plan := planner.BuildPlan(risingSeries(), hour(5, 10), 94, 95)
	require.Equal(domain.PlanFound, plan.Reason)
	assert.Equal(t, 18*time.Minute, plan.WindowEnd.Sub(*plan.WindowStart))
}

func TestPlanIdempotent(t *testing.T) {
	require := require.New(t)

	now := hour(5, 10).Add(7 * time.Minute)
	a := planner.BuildPlan(risingSeries(), now, 60, 95)
	b := planner.BuildPlan(risingSeries(), now, 60, 95)
	require.Equal(a.Reason, b.Reason)
	require.Equal(*a.WindowStart, *b.WindowStart)
	require.Equal(*a.WindowEnd, *b.WindowEnd)
}

var planner = &ChargePlanBuilder{
	Trend:           trend,
	MinutesPer10Pct: 18,
	Logger:          zap.Must(zap.NewDevelopment()),
}
