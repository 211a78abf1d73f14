package inverter

import (
	"context"

	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/port"
	"github.com/berfenger/plenticharge/pkg/kostal"
)

// Controller drives the Plenticore battery through the combination of the
// REST settings API (external control mode) and Modbus (power setpoint).
type Controller struct {
	rest    kostal.InverterRESTClient
	modbus  kostal.InverterModbusWriter
	logger  *zap.Logger
	engaged bool
}

func NewController(rest kostal.InverterRESTClient, modbus kostal.InverterModbusWriter, logger *zap.Logger) *Controller {
	return &Controller{rest: rest, modbus: modbus, logger: logger}
}

// Open checks the REST endpoint, connects the Modbus transport and reads
// the SOC register once to verify the link.
func (c *Controller) Open(ctx context.Context) error {
	if err := c.rest.TestConnection(); err != nil {
		return domain.DeviceUnreachableError{Op: "check rest api", Cause: err}
	}
	if err := c.modbus.Open(); err != nil {
		return domain.DeviceUnreachableError{Op: "open modbus", Cause: err}
	}
	soc, err := c.modbus.ReadStateOfCharge()
	if err != nil {
		return domain.DeviceUnreachableError{Op: "verify modbus link", Cause: err}
	}
	c.logger.Info("inverter connected", zap.Float64("battery_soc", soc))
	return nil
}

func (c *Controller) Close() error {
	if err := c.rest.Logout(); err != nil {
		c.logger.Warn("rest logout failed", zap.Error(err))
	}
	return c.modbus.Close()
}

// EnableCharge switches the inverter to external control and writes the
// charge setpoint. The negative sign is the device convention for charging.
func (c *Controller) EnableCharge(ctx context.Context, powerWatt uint32) error {
	if !c.engaged {
		if err := c.rest.SetExternControl(true); err != nil {
			return domain.DeviceUnreachableError{Op: "enable extern control", Cause: err}
		}
		c.engaged = true
	}
	if err := c.modbus.WriteBatteryPower(-int32(powerWatt)); err != nil {
		return domain.DeviceUnreachableError{Op: "write charge setpoint", Cause: err}
	}
	c.logger.Info("grid charging enabled", zap.Uint32("power_watt", powerWatt))
	return nil
}

// DisableCharge releases the setpoint and hands control back to the
// inverter's internal battery management.
func (c *Controller) DisableCharge(ctx context.Context) error {
	if err := c.modbus.WriteBatteryPower(0); err != nil {
		return domain.DeviceUnreachableError{Op: "clear charge setpoint", Cause: err}
	}
	if c.engaged {
		if err := c.rest.SetExternControl(false); err != nil {
			return domain.DeviceUnreachableError{Op: "disable extern control", Cause: err}
		}
		c.engaged = false
	}
	c.logger.Info("grid charging disabled")
	return nil
}

func (c *Controller) State(ctx context.Context) (bool, uint32, error) {
	setting, err := c.rest.GetSetting(kostal.SettingExternControl)
	if err != nil {
		return false, 0, domain.DeviceUnreachableError{Op: "read extern control", Cause: err}
	}
	extern := setting.Value == kostal.ExternControlModbus

	power, err := c.modbus.ReadBatteryPower()
	if err != nil {
		return extern, 0, domain.DeviceUnreachableError{Op: "read battery power", Cause: err}
	}
	// negative battery power is charging, its magnitude is the setpoint
	setpoint := uint32(0)
	if power < 0 {
		setpoint = uint32(-power)
	}
	return extern, setpoint, nil
}

// ensure interface compliance
var _ port.DeviceController = (*Controller)(nil)
