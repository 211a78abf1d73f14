package actor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/plenticharge/internal/adapter/actor"
	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/storage"
	"github.com/berfenger/plenticharge/internal/util"
	"github.com/berfenger/plenticharge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSensorReader struct {
	mu       sync.Mutex
	snapshot domain.LiveSnapshot
	forecast domain.RawPriceData
	fail     bool
}

func (f *fakeSensorReader) ReadSnapshot(_ context.Context) (*domain.LiveSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, domain.SensorUnavailableError{Entity: "sensor.battery_soc"}
	}
	s := f.snapshot
	return &s, nil
}

func (f *fakeSensorReader) ReadPriceForecast(_ context.Context) (*domain.RawPriceData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.forecast
	return &d, nil
}

func (f *fakeSensorReader) setSOC(soc float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot.SOC = soc
}

func (f *fakeSensorReader) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type fakeDevice struct {
	mu       sync.Mutex
	opened   bool
	charging bool
	power    uint32
}

func (f *fakeDevice) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = false
	return nil
}

func (f *fakeDevice) EnableCharge(_ context.Context, powerWatt uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return domain.DeviceUnreachableError{Op: "write charge setpoint",
			Cause: errors.New("transport not open")}
	}
	f.charging = true
	f.power = powerWatt
	return nil
}

func (f *fakeDevice) DisableCharge(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return domain.DeviceUnreachableError{Op: "clear charge setpoint",
			Cause: errors.New("transport not open")}
	}
	f.charging = false
	f.power = 0
	return nil
}

func (f *fakeDevice) State(_ context.Context) (bool, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charging, f.power, nil
}

func (f *fakeDevice) isCharging() (bool, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charging, f.power
}

// risingForecast builds prices flat at 0.20 until two hours from now, then
// jumping to 0.30. The jump is the trend breakpoint.
func risingForecast(now time.Time) domain.RawPriceData {
	base := now.Truncate(time.Hour).Add(-1 * time.Hour)
	prices := []float64{0.20, 0.20, 0.20, 0.30, 0.31, 0.31}
	var points []domain.RawPricePoint
	for i, p := range prices {
		points = append(points, domain.RawPricePoint{
			StartsAt: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			Total:    p,
			Level:    "NORMAL",
		})
	}
	return domain.RawPriceData{Today: points}
}

func TestChargeControlFlow(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	// long window so the clamped start covers the test run
	cfg.AutomationConfig.ChargeMinutesPer10Pct = 60
	cfg.AutomationConfig.FastIntervalMillis = 200
	cfg.AutomationConfig.SlowIntervalMillis = 60000

	reader := &fakeSensorReader{
		snapshot: domain.LiveSnapshot{
			SOC:                50,
			PVForecastTodayKWh: 2,
			PriceLevel:         domain.PriceLevelNormal,
		},
		forecast: risingForecast(time.Now()),
	}
	device := &fakeDevice{}

	sensorsPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewSensorsActor(reader, reader, 1*time.Second, logger)
	}))
	devicePID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDeviceActor(device, 1*time.Second, logger)
	}))
	controlPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&cfg, sensorsPID, devicePID, &eventstream.EventStream{}, nil, logger)
	}))

	time.Sleep(1500 * time.Millisecond)

	hcr, err := healthCheck(context, controlPID)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, hcr.Healthy, "actor should be healthy")
	assert.Equal(t, "running", hcr.State)

	// SOC 50 < target inside the planned window: auto charging
	status := controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeAutoCharging, status.Mode)
	assert.NotNil(t, status.Plan)
	assert.Equal(t, domain.PlanFound, status.Plan.Reason)
	charging, power := device.isCharging()
	assert.True(t, charging, "device should be charging")
	assert.Equal(t, uint32(3000), power)

	// automation off stops charging
	context.Send(controlPID, domain.ToggleAutomationRequest{Enable: false})
	time.Sleep(600 * time.Millisecond)

	status = controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeStandby, status.Mode)
	charging, _ = device.isCharging()
	assert.False(t, charging, "device should not be charging")

	// manual charge overrides the disabled automation
	context.Send(controlPID, domain.ManualChargeRequest{Enable: true})
	time.Sleep(600 * time.Millisecond)

	status = controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeManualCharging, status.Mode)
	charging, _ = device.isCharging()
	assert.True(t, charging, "device should be charging")

	resp, err := context.RequestFuture(controlPID, domain.GetExplanationRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	explanation, ok := resp.(domain.GetExplanationResponse)
	assert.True(t, ok)
	assert.Equal(t, "manual control active", explanation.Summary)
	assert.NotEmpty(t, explanation.Rendered)
	assert.Len(t, explanation.Conditions, 6)

	// back to standby
	context.Send(controlPID, domain.ManualChargeRequest{Enable: false})
	time.Sleep(600 * time.Millisecond)
	status = controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeStandby, status.Mode)

	context.Stop(controlPID)
	as.Shutdown()
}

func TestChargeControlTargetReached(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.AutomationConfig.ChargeMinutesPer10Pct = 60
	cfg.AutomationConfig.FastIntervalMillis = 200
	cfg.AutomationConfig.SlowIntervalMillis = 60000

	reader := &fakeSensorReader{
		snapshot: domain.LiveSnapshot{
			SOC:                85,
			PVForecastTodayKWh: 2,
			PriceLevel:         domain.PriceLevelNormal,
		},
		forecast: risingForecast(time.Now()),
	}
	device := &fakeDevice{}

	sensorsPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewSensorsActor(reader, reader, 1*time.Second, logger)
	}))
	devicePID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDeviceActor(device, 1*time.Second, logger)
	}))
	controlPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&cfg, sensorsPID, devicePID, &eventstream.EventStream{}, nil, logger)
	}))

	time.Sleep(1 * time.Second)

	// SOC 85 >= charge_below 80: standby even inside a window
	status := controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeStandby, status.Mode)
	charging, _ := device.isCharging()
	assert.False(t, charging)

	// drop below the safety minimum: charge regardless of the plan
	reader.setSOC(5)
	time.Sleep(600 * time.Millisecond)

	status = controlStatus(t, context, controlPID)
	assert.Equal(t, domain.ModeAutoCharging, status.Mode)
	charging, _ = device.isCharging()
	assert.True(t, charging)

	context.Stop(controlPID)
	as.Shutdown()
}

func TestBootPlanSizedFromLiveSoC(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	// short blocks keep the window start after now, no clamping
	cfg.AutomationConfig.ChargeMinutesPer10Pct = 10
	cfg.AutomationConfig.FastIntervalMillis = 200
	cfg.AutomationConfig.SlowIntervalMillis = 60000

	reader := &fakeSensorReader{
		snapshot: domain.LiveSnapshot{
			SOC:                70,
			PVForecastTodayKWh: 2,
			PriceLevel:         domain.PriceLevelNormal,
		},
		forecast: risingForecast(time.Now()),
	}
	device := &fakeDevice{}

	sensorsPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewSensorsActor(reader, reader, 1*time.Second, logger)
	}))
	devicePID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDeviceActor(device, 1*time.Second, logger)
	}))
	controlPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&cfg, sensorsPID, devicePID, &eventstream.EventStream{}, nil, logger)
	}))

	time.Sleep(1 * time.Second)

	// SOC 70, target 95: 3 blocks of 10 minutes, not sized from SOC 0
	status := controlStatus(t, context, controlPID)
	if status.Plan == nil {
		t.Fatal("no plan after boot")
	}
	assert.Equal(t, domain.PlanFound, status.Plan.Reason)
	assert.Equal(t, 30*time.Minute, status.Plan.WindowEnd.Sub(*status.Plan.WindowStart))

	context.Stop(controlPID)
	as.Shutdown()
}

func TestSensorFailureSurfaced(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.AutomationConfig.ChargeMinutesPer10Pct = 60
	cfg.AutomationConfig.FastIntervalMillis = 200
	cfg.AutomationConfig.SlowIntervalMillis = 60000

	reader := &fakeSensorReader{
		snapshot: domain.LiveSnapshot{
			SOC:                50,
			PVForecastTodayKWh: 2,
			PriceLevel:         domain.PriceLevelNormal,
		},
		forecast: risingForecast(time.Now()),
	}
	device := &fakeDevice{}

	sensorsPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewSensorsActor(reader, reader, 1*time.Second, logger)
	}))
	devicePID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDeviceActor(device, 1*time.Second, logger)
	}))
	controlPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&cfg, sensorsPID, devicePID, &eventstream.EventStream{}, nil, logger)
	}))

	time.Sleep(1 * time.Second)

	status := controlStatus(t, context, controlPID)
	assert.Empty(t, status.SensorError)
	assert.Equal(t, domain.ModeAutoCharging, status.Mode)

	// failed reads hold the mode but must show up in status and explanation
	reader.setFail(true)
	time.Sleep(600 * time.Millisecond)

	status = controlStatus(t, context, controlPID)
	assert.Contains(t, status.SensorError, "sensor unavailable")
	assert.Equal(t, domain.ModeAutoCharging, status.Mode)

	resp, err := context.RequestFuture(controlPID, domain.GetExplanationRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	explanation, ok := resp.(domain.GetExplanationResponse)
	assert.True(t, ok)
	assert.Contains(t, explanation.SensorError, "sensor unavailable")
	assert.Contains(t, explanation.Summary, "sensor read failing")

	// recovery clears the error
	reader.setFail(false)
	time.Sleep(600 * time.Millisecond)

	status = controlStatus(t, context, controlPID)
	assert.Empty(t, status.SensorError)

	context.Stop(controlPID)
	as.Shutdown()
}

func TestConsumptionTracksDischargeOnly(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	repo, err := storage.NewConsumptionRepository(filepath.Join(t.TempDir(), "consumption.db"), 28, logger)
	if err != nil {
		t.Fatal(err)
	}

	cfg := util.LoadTestConfig()
	act := NewChargeControlActor(&cfg, nil, nil, nil, repo, logger)

	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	// 1 kW discharge for 30 minutes covers household load
	act.trackConsumption(&domain.LiveSnapshot{BatteryPowerWatt: -1000}, start)
	act.trackConsumption(&domain.LiveSnapshot{BatteryPowerWatt: -1000}, start.Add(30*time.Minute))
	// charging is grid energy, not consumption
	act.trackConsumption(&domain.LiveSnapshot{BatteryPowerWatt: 2000}, start.Add(time.Hour))

	avg, err := repo.AverageForHour(10)
	if err != nil {
		t.Fatal(err)
	}
	assert.InDelta(t, 0.5, avg, 1e-9)
}

func controlStatus(t *testing.T, ctx *actor.RootContext, pid *actor.PID) domain.GetControlStatusResponse {
	t.Helper()
	resp, err := ctx.RequestFuture(pid, domain.GetControlStatusRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	status, ok := resp.(domain.GetControlStatusResponse)
	if !ok {
		t.Fatal("unexpected response type")
	}
	return status
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
