package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel      zapcore.Level
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Inverter      InverterConfig      `mapstructure:"inverter"`
	MQTT          MQTTConfig          `mapstructure:"mqtt"`

	AutomationConfig AutomationConfig `mapstructure:"automation"`
	DatabaseConfig   DatabaseConfig   `mapstructure:"database"`
	Port             uint             `mapstructure:"port"`
	HttpLog          bool             `mapstructure:"http_log"`
}

type HomeAssistantConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string
	// Entity ids read every fast tick
	BatterySoCEntity       string `mapstructure:"battery_soc_entity"`
	BatteryPowerEntity     string `mapstructure:"battery_power_entity"`
	PVForecastTodayEntity  string `mapstructure:"pv_forecast_today_entity"`
	PVForecastTomorrEntity string `mapstructure:"pv_forecast_tomorrow_entity"`
	PriceEntity            string `mapstructure:"price_entity"`
	ManualOverrideEntity   string `mapstructure:"manual_override_entity"`
	TimeoutMillis          uint32 `mapstructure:"timeout_millis"`
}

type InverterConfig struct {
	Host              string
	RESTPort          uint   `mapstructure:"rest_port"`
	ModbusPort        uint   `mapstructure:"modbus_port"`
	ModbusUnitId      uint   `mapstructure:"modbus_unit_id"`
	InstallerPassword string `mapstructure:"installer_password"`
	MasterPassword    string `mapstructure:"master_password"`
	TimeoutMillis     uint32 `mapstructure:"timeout_millis"`
}

type AutomationConfig struct {
	SafetySoC              float64 `mapstructure:"safety_soc"`
	ChargeBelowSoC         float64 `mapstructure:"charge_below_soc"`
	TargetSoC              float64 `mapstructure:"target_soc"`
	PVThresholdKWh         float64 `mapstructure:"pv_threshold_kwh"`
	ChargeMinutesPer10Pct  uint    `mapstructure:"charge_minutes_per_10_percent"`
	TrendThreshold1h       float64 `mapstructure:"trend_threshold_1h"`
	TrendThreshold3h       float64 `mapstructure:"trend_threshold_3h"`
	ChargePowerWatt        uint32  `mapstructure:"charge_power_watt"`
	FastIntervalMillis     uint32  `mapstructure:"fast_interval_millis"`
	SlowIntervalMillis     uint32  `mapstructure:"slow_interval_millis"`
	EnabledOnStart         bool    `mapstructure:"enabled_on_start"`
	ConsumptionTrackEnable bool    `mapstructure:"consumption_track_enable"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
