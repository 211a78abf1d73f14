package service

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

func snap(soc, pvToday float64) domain.LiveSnapshot {
	return domain.LiveSnapshot{
		Time:               hour(5, 13),
		SOC:                soc,
		PVForecastTodayKWh: pvToday,
		CurrentPrice:       decimal.NewFromFloat(0.22),
		PriceLevel:         domain.PriceLevelNormal,
	}
}

func foundPlan(startDay, startH, endH int, targetSoC float64) *domain.ChargingPlan {
	start := hour(startDay, startH)
	end := hour(startDay, endH)
	return &domain.ChargingPlan{
		ComputedAt:  hour(startDay, startH),
		WindowStart: &start,
		WindowEnd:   &end,
		TargetSOC:   targetSoC,
		Reason:      domain.PlanFound,
	}
}

func TestManualOverrideBypassesEverything(t *testing.T) {
	require := require.New(t)

	s := snap(96, 20)
	s.ManualOverride = true
	// even with automation disabled, target reached and plenty of PV
	d := engine.Decide(s, nil, false, hour(5, 13))
	require.Equal(domain.ModeManualCharging, d.Mode)
	assert.EqualValues(t, engine.ChargePowerWatt, d.ChargePowerWatt)
	assert.Contains(t, d.Summary, "manual control active")
}

func TestAutomationDisabledStandby(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(15, 0), foundPlan(5, 12, 14, 95), false, hour(5, 13))
	require.Equal(domain.ModeStandby, d.Mode)
	assert.Contains(t, d.Summary, "automation disabled")
}

func TestSafetySoCTriggersImmediately(t *testing.T) {
	require := require.New(t)

	// no plan at all, no cheap period, still charges
	d := engine.Decide(snap(15, 0), nil, true, hour(5, 13))
	require.Equal(domain.ModeAutoCharging, d.Mode)
	assert.EqualValues(t, engine.ChargePowerWatt, d.ChargePowerWatt)
	assert.Contains(t, d.Summary, "safety minimum")
}

func TestSafetySoCBeatsPVVeto(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(15, 30), nil, true, hour(5, 13))
	require.Equal(domain.ModeAutoCharging, d.Mode)
}

func TestSafetyBoundaryIsStrict(t *testing.T) {
	require := require.New(t)

	// soc == safety_soc does not breach, soc just below does
	d := engine.Decide(snap(20, 0), nil, true, hour(5, 13))
	require.Equal(domain.ModeStandby, d.Mode)
	assert.Contains(t, d.Summary, "no active condition")

	d = engine.Decide(snap(19.9, 0), nil, true, hour(5, 13))
	require.Equal(domain.ModeAutoCharging, d.Mode)
}

func TestTargetBoundaryIsInclusive(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(95, 0), foundPlan(5, 12, 14, 95), true, hour(5, 13))
	require.Equal(domain.ModeStandby, d.Mode)
	assert.Contains(t, d.Summary, "target already reached")
}

func TestPVVetoInsideWindow(t *testing.T) {
	require := require.New(t)

	// forecast 12 kWh >= 5 kWh threshold wins over the active window
	d := engine.Decide(snap(60, 12), foundPlan(5, 12, 14, 95), true, hour(5, 13))
	require.Equal(domain.ModeStandby, d.Mode)
	assert.Contains(t, d.Summary, "solar forecast sufficient")
}

func TestActiveWindowCharges(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(60, 1), foundPlan(5, 12, 14, 95), true, hour(5, 13))
	require.Equal(domain.ModeAutoCharging, d.Mode)
	assert.EqualValues(t, engine.ChargePowerWatt, d.ChargePowerWatt)
	assert.Contains(t, d.Summary, "14:00")
	assert.Contains(t, d.Summary, "95")
}

func TestOutsideWindowStandby(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(60, 1), foundPlan(5, 12, 14, 95), true, hour(5, 14).Add(5*time.Minute))
	require.Equal(domain.ModeStandby, d.Mode)
	assert.Contains(t, d.Summary, "no active condition")
}

func TestNoPlanStandby(t *testing.T) {
	require := require.New(t)

	// flat prices day, SOC well between safety and target
	d := engine.Decide(snap(50, 1), &domain.ChargingPlan{
		ComputedAt: hour(5, 10),
		Reason:     domain.PlanNoCheapPeriod,
		TargetSOC:  95,
	}, true, hour(5, 13))
	require.Equal(domain.ModeStandby, d.Mode)
}

func TestConditionsSurfacedEveryTick(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(60, 1), foundPlan(5, 12, 14, 95), true, hour(5, 13))
	require.Len(d.Conditions, 6)

	byId := map[string]domain.Condition{}
	for _, c := range d.Conditions {
		byId[c.ID] = c
	}
	assert.True(t, byId["safety_soc"].Ok(), "safety not breached renders positive")
	assert.Equal(t, "SOC above safety minimum", byId["safety_soc"].Detail)
	assert.False(t, byId["target_soc"].Satisfied)
	assert.True(t, byId["plan_window"].Satisfied)
	assert.True(t, byId["manual_override"].Ok())
}

func TestRenderExplanation(t *testing.T) {
	require := require.New(t)

	d := engine.Decide(snap(60, 1), foundPlan(5, 12, 14, 95), true, hour(5, 13))
	text := RenderExplanation(d)
	require.True(strings.HasPrefix(text, d.Summary))
	assert.Contains(t, text, "✅")
	assert.Contains(t, text, "❌")
	assert.Contains(t, text, "SOC above safety minimum")
}

var engine = &DecisionEngine{
	SafetySoC:       20,
	ChargeBelowSoC:  95,
	PVThresholdKWh:  5,
	ChargePowerWatt: 3000,
	Logger:          zap.Must(zap.NewDevelopment()),
}
