package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// connGatedDevice refuses every command until Open has been called,
// like the real modbus transport.
type connGatedDevice struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	charging bool
	power    uint32
}

func (d *connGatedDevice) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = true
	return nil
}

func (d *connGatedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	d.closed = true
	return nil
}

func (d *connGatedDevice) EnableCharge(_ context.Context, powerWatt uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("transport not open")
	}
	d.charging = true
	d.power = powerWatt
	return nil
}

func (d *connGatedDevice) DisableCharge(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("transport not open")
	}
	d.charging = false
	d.power = 0
	return nil
}

func (d *connGatedDevice) State(_ context.Context) (bool, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return false, 0, errors.New("transport not open")
	}
	return d.charging, d.power, nil
}

func (d *connGatedDevice) status() (opened, closed, charging bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed, d.charging
}

func TestDeviceActorOpensBeforeCommands(t *testing.T) {
	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	device := &connGatedDevice{}
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewDeviceActor(device, 1*time.Second, logger)
	}))

	// a command racing the spawn must see an opened transport
	result, err := context.RequestFuture(pid, domain.SetChargeControlRequest{
		Enable:    true,
		PowerWatt: 2000,
	}, 3*time.Second).Result()
	require.NoError(err)

	resp, ok := result.(domain.SetChargeControlResponse)
	require.True(ok)
	assert.False(t, resp.HasResponseError())

	opened, _, charging := device.status()
	assert.True(t, opened)
	assert.True(t, charging)

	context.Stop(pid)
	as.Shutdown()
}

func TestDeviceActorReleasesOnStop(t *testing.T) {
	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	device := &connGatedDevice{}
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewDeviceActor(device, 1*time.Second, logger)
	}))

	result, err := context.RequestFuture(pid, domain.SetChargeControlRequest{
		Enable:    true,
		PowerWatt: 3000,
	}, 3*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.SetChargeControlResponse)
	require.True(ok)
	require.False(resp.HasResponseError())

	context.StopFuture(pid).Wait()

	_, closed, charging := device.status()
	assert.False(t, charging, "setpoint must be released on stop")
	assert.True(t, closed, "transport must be closed on stop")

	as.Shutdown()
}
