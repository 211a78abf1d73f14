package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/port"
)

// DecisionEngine evaluates the per-tick charging decision. It performs no
// I/O; the control actor applies the resulting mode.
type DecisionEngine struct {
	SafetySoC       float64
	ChargeBelowSoC  float64
	PVThresholdKWh  float64
	ChargePowerWatt uint32
	Logger          *zap.Logger
}

// Decide applies the transition rules in fixed priority order. The first
// satisfied rule wins. All gates are surfaced as Condition records so the
// explanation can be rendered even for rules below the winner.
func (e *DecisionEngine) Decide(snapshot domain.LiveSnapshot, plan *domain.ChargingPlan,
	automationEnabled bool, now time.Time) domain.Decision {

	manualActive := snapshot.ManualOverride
	safetyBreach := snapshot.SOC < e.SafetySoC
	targetReached := snapshot.SOC >= e.ChargeBelowSoC
	pvSufficient := snapshot.PVForecastTodayKWh >= e.PVThresholdKWh
	windowActive := plan != nil && plan.WindowActive(now)

	conditions := []domain.Condition{
		{
			ID: "manual_override", Satisfied: manualActive,
			Actual: fmt.Sprintf("%t", manualActive), Threshold: "false",
			Polarity: domain.OkWhenFalse,
			Detail:   pick(manualActive, "manual control active", "no manual override"),
		},
		{
			ID: "automation_enabled", Satisfied: automationEnabled,
			Actual: fmt.Sprintf("%t", automationEnabled), Threshold: "true",
			Polarity: domain.OkWhenTrue,
			Detail:   pick(automationEnabled, "automation enabled", "automation disabled"),
		},
		{
			ID: "safety_soc", Satisfied: safetyBreach,
			Actual: fmt.Sprintf("%.1f%%", snapshot.SOC), Threshold: fmt.Sprintf("%.0f%%", e.SafetySoC),
			Polarity: domain.OkWhenFalse,
			Detail:   pick(safetyBreach, "SOC below safety minimum", "SOC above safety minimum"),
		},
		{
			ID: "target_soc", Satisfied: targetReached,
			Actual: fmt.Sprintf("%.1f%%", snapshot.SOC), Threshold: fmt.Sprintf("%.0f%%", e.ChargeBelowSoC),
			Polarity: domain.OkWhenTrue,
			Detail:   pick(targetReached, "target already reached", "SOC below charge target"),
		},
		{
			ID: "pv_forecast", Satisfied: pvSufficient,
			Actual: fmt.Sprintf("%.1f kWh", snapshot.PVForecastTodayKWh), Threshold: fmt.Sprintf("%.1f kWh", e.PVThresholdKWh),
			Polarity: domain.OkWhenTrue,
			Detail:   pick(pvSufficient, "solar forecast sufficient, no grid charging needed", "solar forecast below threshold"),
		},
		{
			ID: "plan_window", Satisfied: windowActive,
			Actual: planWindowText(plan), Threshold: "now inside window",
			Polarity: domain.OkWhenTrue,
			Detail:   pick(windowActive, "inside planned charging window", "outside planned charging window"),
		},
	}

	mode, power, summary := e.transition(snapshot, plan,
		manualActive, automationEnabled, safetyBreach, targetReached, pvSufficient, windowActive)

	if e.Logger != nil {
		e.Logger.Debug("decision evaluated",
			zap.String("mode", string(mode)),
			zap.Uint32("power", power),
			zap.String("summary", summary))
	}

	return domain.Decision{
		Mode:            mode,
		ChargePowerWatt: power,
		Summary:         summary,
		Conditions:      conditions,
	}
}

func (e *DecisionEngine) transition(snapshot domain.LiveSnapshot, plan *domain.ChargingPlan,
	manualActive, automationEnabled, safetyBreach, targetReached, pvSufficient, windowActive bool) (domain.Mode, uint32, string) {

	switch {
	case manualActive:
		return domain.ModeManualCharging, e.ChargePowerWatt, "manual control active"
	case !automationEnabled:
		return domain.ModeStandby, 0, "automation disabled"
	case safetyBreach:
		return domain.ModeAutoCharging, e.ChargePowerWatt,
			fmt.Sprintf("SOC below safety minimum (%.1f%% < %.0f%%)", snapshot.SOC, e.SafetySoC)
	case targetReached:
		return domain.ModeStandby, 0, "target already reached"
	case pvSufficient:
		return domain.ModeStandby, 0, "solar forecast sufficient, no grid charging needed"
	case windowActive:
		return domain.ModeAutoCharging, e.ChargePowerWatt,
			fmt.Sprintf("charging until %s towards %.0f%%", plan.WindowEnd.Format("15:04"), plan.TargetSOC)
	default:
		return domain.ModeStandby, 0, "no active condition for charging"
	}
}

// RenderExplanation formats the decision as a dashboard-ready text block.
func RenderExplanation(d domain.Decision) string {
	var sb strings.Builder
	sb.WriteString(d.Summary)
	sb.WriteString("\n")
	for _, c := range d.Conditions {
		sb.WriteString(fmt.Sprintf("%s %s (%s / %s)\n", c.Mark(), c.Detail, c.Actual, c.Threshold))
	}
	return sb.String()
}

func planWindowText(plan *domain.ChargingPlan) string {
	if plan == nil {
		return "no plan"
	}
	return plan.Summary()
}

func pick(cond bool, whenTrue, whenFalse string) string {
	if cond {
		return whenTrue
	}
	return whenFalse
}

// ensure interface compliance
var _ port.ChargeDecisionLogic = (*DecisionEngine)(nil)
