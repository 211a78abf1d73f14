package events

import (
	"time"

	. "github.com/berfenger/plenticharge/internal/core/domain"
)

func SnapshotToUpdateEvents(s *LiveSnapshot) []any {
	var events []any

	// Battery SoC
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    s.SOC,
		Decimals: 1,
	})
	// Battery power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_POWER,
		},
		Value:    s.BatteryPowerWatt,
		Decimals: 0,
	})
	// Current price
	price, _ := s.CurrentPrice.Float64()
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CURRENT_PRICE,
		},
		Value:    price,
		Decimals: 4,
	})
	// Price level
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PRICE_LEVEL,
		},
		Value: string(s.PriceLevel),
	})
	// PV forecasts
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PV_FORECAST_TODAY,
		},
		Value:    s.PVForecastTodayKWh,
		Decimals: 2,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PV_FORECAST_TOMORROW,
		},
		Value:    s.PVForecastTomorrowKWh,
		Decimals: 2,
	})

	return events
}

func PlanToUpdateEvents(plan *ChargingPlan) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_SUMMARY,
		},
		Value: plan.Summary(),
	})

	start := ""
	end := ""
	if plan.Reason == PlanFound {
		start = plan.WindowStart.Format(time.RFC3339)
		end = plan.WindowEnd.Format(time.RFC3339)
	}
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_WINDOW_START,
		},
		Value: start,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_WINDOW_END,
		},
		Value: end,
	})

	return events
}

func DecisionToUpdateEvents(d *Decision) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MODE,
		},
		Value: string(d.Mode),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DECISION_SUMMARY,
		},
		Value: d.Summary,
	})

	return events
}

func AutomationSwitchUpdateEvent(enabled bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_AUTOMATION,
		},
		Value: enabled,
	}
}

func ManualChargeSwitchUpdateEvent(enabled bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_MANUAL_CHARGE,
		},
		Value: enabled,
	}
}

func TargetSoCUpdateEvent(value uint) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_TARGET_SOC,
		},
		Value: float64(value),
	}
}
