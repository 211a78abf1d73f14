package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "github.com/berfenger/plenticharge/internal/adapter/actor"
	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/mqtt"
	"github.com/berfenger/plenticharge/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	reader := &fakeSensorReader{
		snapshot: domain.LiveSnapshot{
			SOC:                50,
			PVForecastTodayKWh: 2,
			PriceLevel:         domain.PriceLevelNormal,
		},
		forecast: risingForecast(time.Now()),
	}
	device := &fakeDevice{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.SensorsActor {
			return adactor.NewSensorsActor(reader, reader, 1*time.Second, logger)
		}, func() *adactor.DeviceActor {
			return adactor.NewDeviceActor(device, 1*time.Second, logger)
		}, func(_ *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, nil, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// control queries tunnel through the master
	res, err = context.RequestFuture(pid, domain.GetControlStatusRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	status, ok := res.(domain.GetControlStatusResponse)
	assert.True(t, ok)
	assert.True(t, status.AutomationEnabled)

	// MQTT switch commands route to the control actor
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_AUTOMATION,
		Command:  "switch",
		Payload:  "off",
	}})
	time.Sleep(300 * time.Millisecond)

	res, err = context.RequestFuture(pid, domain.GetControlStatusRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	status, ok = res.(domain.GetControlStatusResponse)
	assert.True(t, ok)
	assert.False(t, status.AutomationEnabled)

	context.Stop(pid)

	as.Shutdown()
}
