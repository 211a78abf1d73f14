package util

import (
	"github.com/berfenger/plenticharge/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		HomeAssistant: config.HomeAssistantConfig{
			BaseURL:                "http://localhost:8123",
			Token:                  "test-token",
			BatterySoCEntity:       "sensor.battery_soc",
			BatteryPowerEntity:     "sensor.battery_power",
			PVForecastTodayEntity:  "sensor.pv_forecast_today",
			PVForecastTomorrEntity: "sensor.pv_forecast_tomorrow",
			PriceEntity:            "sensor.electricity_price",
			TimeoutMillis:          1500,
		},
		Inverter: config.InverterConfig{
			Host:          "-.-.-.-",
			RESTPort:      80,
			ModbusPort:    1502,
			ModbusUnitId:  71,
			TimeoutMillis: 1500,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "plenticharge",
		},
		AutomationConfig: config.AutomationConfig{
			SafetySoC:             10,
			ChargeBelowSoC:        80,
			TargetSoC:             95,
			PVThresholdKWh:        8,
			ChargeMinutesPer10Pct: 18,
			TrendThreshold1h:      0.08,
			TrendThreshold3h:      0.08,
			ChargePowerWatt:       3000,
			FastIntervalMillis:    2000,
			SlowIntervalMillis:    300000,
			EnabledOnStart:        true,
		},
		Port: 8080,
	}
}
