package kostal

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Plenticore Modbus TCP register map (unit id 71).
const (
	regStateOfCharge     = 514  // U16, percent
	regBatteryPower      = 582  // S16, watts, positive = discharging
	regChargePowerTarget = 1034 // Float32, watts, negative = charging
)

// PlenticoreModbusWriter drives the battery setpoint while the inverter is
// in external control mode.
type PlenticoreModbusWriter struct {
	client *modbus.ModbusClient
	logger *zap.Logger
}

func CreatePlenticoreModbusWriter(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger) (InverterModbusWriter, error) {

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	// Plenticore serves float registers in little-endian word order
	if err := client.SetEncoding(modbus.BIG_ENDIAN, modbus.LOW_WORD_FIRST); err != nil {
		return nil, err
	}
	return &PlenticoreModbusWriter{client: client, logger: logger}, nil
}

func (w *PlenticoreModbusWriter) Open() error {
	return w.client.Open()
}

func (w *PlenticoreModbusWriter) Close() error {
	return w.client.Close()
}

func (w *PlenticoreModbusWriter) WriteBatteryPower(watts int32) error {
	err := w.client.WriteFloat32(regChargePowerTarget, float32(watts))
	if err != nil {
		return fmt.Errorf("kostal: write battery power: %w", err)
	}
	w.logger.Debug("battery power setpoint written", zap.Int32("watts", watts))
	return nil
}

func (w *PlenticoreModbusWriter) ReadStateOfCharge() (float64, error) {
	soc, err := w.client.ReadRegister(regStateOfCharge, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, fmt.Errorf("kostal: read soc: %w", err)
	}
	return float64(soc), nil
}

func (w *PlenticoreModbusWriter) ReadBatteryPower() (float64, error) {
	raw, err := w.client.ReadRegister(regBatteryPower, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, fmt.Errorf("kostal: read battery power: %w", err)
	}
	return float64(int16(raw)), nil
}

// ensure interface compliance
var _ InverterModbusWriter = (*PlenticoreModbusWriter)(nil)
