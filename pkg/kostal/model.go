package kostal

// InverterRESTClient manages the authenticated REST session used for
// settings that are not reachable over Modbus.
type InverterRESTClient interface {
	Login() error
	Logout() error
	SetExternControl(enabled bool) error
	GetSetting(settingId string) (*SettingValue, error)
	TestConnection() error
}

// InverterModbusWriter drives the battery charge setpoint while external
// control is enabled.
type InverterModbusWriter interface {
	Open() error
	Close() error
	// WriteBatteryPower sets the battery power setpoint in watts.
	// Negative values charge the battery, zero releases the setpoint.
	WriteBatteryPower(watts int32) error
	ReadStateOfCharge() (float64, error)
	ReadBatteryPower() (float64, error)
}

type SettingValue struct {
	ModuleId string `json:"moduleid"`
	Id       string `json:"id"`
	Value    string `json:"value"`
}

const (
	// Battery:ExternControl values
	ExternControlInternal = "0"
	ExternControlModbus   = "2"

	SettingExternControl = "Battery:ExternControl"
)
