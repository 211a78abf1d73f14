package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE         = "bridge"
	SENSOR_ID_MODE                 = "charge_mode"
	SENSOR_ID_BATTERY_SOC          = "battery_soc"
	SENSOR_ID_BATTERY_POWER        = "battery_power"
	SENSOR_ID_CURRENT_PRICE        = "current_price"
	SENSOR_ID_PRICE_LEVEL          = "price_level"
	SENSOR_ID_PV_FORECAST_TODAY    = "pv_forecast_today"
	SENSOR_ID_PV_FORECAST_TOMORROW = "pv_forecast_tomorrow"
	SENSOR_ID_PLAN_SUMMARY         = "plan_summary"
	SENSOR_ID_PLAN_WINDOW_START    = "plan_window_start"
	SENSOR_ID_PLAN_WINDOW_END      = "plan_window_end"
	SENSOR_ID_DECISION_SUMMARY     = "decision_summary"
	SWITCH_ID_AUTOMATION           = "automation"
	SWITCH_ID_MANUAL_CHARGE        = "manual_charge"
	INPUT_NUMBER_ID_TARGET_SOC     = "charge_target_soc"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_BATTERY      = "battery"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_ENERGY       = "energy"
	DEVICE_CLASS_MONETARY     = "monetary"
	DEVICE_CLASS_TIMESTAMP    = "timestamp"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
	INPUT_NUMBER_MODE_BOX     = "box"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("plenticharge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Plenticharge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Plenticharge %s", md5HashShort(baseTopic)),
	}
}

func ControllerSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	// Charge mode
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charge mode",
		Icon:       "mdi:state-machine",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_MODE),
	})

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery power
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_BATTERY_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_BATTERY_POWER),
	})

	// Current electricity price
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CURRENT_PRICE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Electricity price",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR/kWh",
		Icon:              "mdi:currency-eur",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CURRENT_PRICE),
	})

	// Price level
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_PRICE_LEVEL,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Price level",
		Icon:       "mdi:chart-bell-curve",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_PRICE_LEVEL),
	})

	// PV forecast today
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_PV_FORECAST_TODAY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "PV forecast today",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_PV_FORECAST_TODAY),
	})

	// PV forecast tomorrow
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_PV_FORECAST_TOMORROW,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "PV forecast tomorrow",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		Icon:              "mdi:solar-power",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(device.Id, SENSOR_ID_PV_FORECAST_TOMORROW),
	})

	// Plan summary
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_PLAN_SUMMARY,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charging plan",
		Icon:       "mdi:calendar-clock",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_PLAN_SUMMARY),
	})

	// Plan window bounds
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_PLAN_WINDOW_START,
		SensorType:  SENSOR_TYPE_SENSOR,
		Name:        "Charge window start",
		DeviceClass: DEVICE_CLASS_TIMESTAMP,
		UniqueId:    uniqueId(device.Id, SENSOR_ID_PLAN_WINDOW_START),
	})
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_PLAN_WINDOW_END,
		SensorType:  SENSOR_TYPE_SENSOR,
		Name:        "Charge window end",
		DeviceClass: DEVICE_CLASS_TIMESTAMP,
		UniqueId:    uniqueId(device.Id, SENSOR_ID_PLAN_WINDOW_END),
	})

	// Decision summary
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_DECISION_SUMMARY,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charging decision",
		Icon:       "mdi:head-cog",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_DECISION_SUMMARY),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func ControlSwitches(device Device) []GenericSwitch {

	var switches []GenericSwitch

	// Automation enable
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_AUTOMATION,
		Name:     "Charge automation",
		UniqueId: uniqueId(device.Id, SWITCH_ID_AUTOMATION),
		Icon:     "mdi:robot",
	})
	// Manual charge
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_MANUAL_CHARGE,
		Name:     "Manual charge",
		UniqueId: uniqueId(device.Id, SWITCH_ID_MANUAL_CHARGE),
		Icon:     "mdi:battery-plus",
	})

	return switches
}

func ControlInputNumbers(device Device) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	// Charge target SoC
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:       device,
		Id:           INPUT_NUMBER_ID_TARGET_SOC,
		Name:         "Charge target SoC",
		UniqueId:     uniqueId(device.Id, INPUT_NUMBER_ID_TARGET_SOC),
		Icon:         "mdi:ticket-percent",
		Max:          100,
		Min:          0,
		Step:         5,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: 95,
	})

	return inputNumbers
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
