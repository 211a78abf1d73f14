package kostal

import (
	"errors"
	"sync"
)

func CreateTestRESTClient() InverterRESTClient {
	return &TestRESTClient{
		settings: map[string]string{
			SettingExternControl: ExternControlInternal,
		},
	}
}

func CreateTestModbusWriter() InverterModbusWriter {
	return &TestModbusWriter{soc: 55.0}
}

// TestRESTClient is an in-memory stand-in for the REST API.
type TestRESTClient struct {
	mu       sync.Mutex
	loggedIn bool
	settings map[string]string
}

func (c *TestRESTClient) Login() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = true
	return nil
}

func (c *TestRESTClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	return nil
}

func (c *TestRESTClient) SetExternControl(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	mode := ExternControlInternal
	if enabled {
		mode = ExternControlModbus
	}
	c.settings[SettingExternControl] = mode
	return nil
}

func (c *TestRESTClient) GetSetting(settingId string) (*SettingValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &SettingValue{
		ModuleId: "devices:local",
		Id:       settingId,
		Value:    c.settings[settingId],
	}, nil
}

func (c *TestRESTClient) TestConnection() error {
	return nil
}

// TestModbusWriter is an in-memory stand-in for the Modbus interface.
type TestModbusWriter struct {
	mu       sync.Mutex
	open     bool
	soc      float64
	setpoint int32
}

func (w *TestModbusWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = true
	return nil
}

func (w *TestModbusWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	return nil
}

// errTransportClosed mirrors the real client failing on any access
// before Open.
var errTransportClosed = errors.New("kostal: modbus transport not open")

func (w *TestModbusWriter) WriteBatteryPower(watts int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return errTransportClosed
	}
	w.setpoint = watts
	return nil
}

func (w *TestModbusWriter) ReadStateOfCharge() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return 0, errTransportClosed
	}
	return w.soc, nil
}

func (w *TestModbusWriter) ReadBatteryPower() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return 0, errTransportClosed
	}
	return float64(w.setpoint), nil
}

// Setpoint exposes the last written value for assertions.
func (w *TestModbusWriter) Setpoint() int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setpoint
}
