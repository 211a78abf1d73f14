package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/port"
	"github.com/berfenger/plenticharge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// DeviceActor serializes commands against the inverter. Charge control is
// stateful on the device side (extern control engage/release), so commands
// must never interleave; in-flight writes stash everything else.
type DeviceActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	device   port.DeviceController
	timeout  time.Duration
	logger   *zap.Logger
}

func NewDeviceActor(device port.DeviceController, timeout time.Duration, logger *zap.Logger) *DeviceActor {
	act := &DeviceActor{
		device:   device,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_DEVICE, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DeviceActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DeviceActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@starting started")
		rctx, cancel := context.WithTimeout(context.Background(), state.timeout)
		defer cancel()
		if err := state.device.Open(rctx); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		if err := state.device.Close(); err != nil {
			state.logger.Debug("device close failed", zap.Error(err))
		}
	default:
		state.logger.Debug("device@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DeviceActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("device@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DEVICE,
			Healthy: true,
			State:   "idle",
		})
	case domain.SetChargeControlRequest:
		state.logger.Debug("device@default: SetChargeControlRequest",
			zap.Bool("enable", msg.Enable), zap.Uint32("power_watt", msg.PowerWatt))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SetChargeControlResponse, error) {
			return state.setChargeControl(msg.Enable, msg.PowerWatt)
		}),
			mapTaskResult[domain.SetChargeControlResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetChargeControlResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.GetDeviceStateRequest:
		state.logger.Debug("device@default: GetDeviceStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceState),
			mapTaskResult[domain.GetDeviceStateResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceStateResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case *actor.Stopping:
		state.releaseControl()
	default:
		state.logger.Debug("device@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DeviceActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("device@waitingDevice backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.releaseControl()
	default:
		state.logger.Debug("device@waitingDevice stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *DeviceActor) setChargeControl(enable bool, powerWatt uint32) (*domain.SetChargeControlResponse, error) {
	rctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	var err error
	if enable {
		err = a.device.EnableCharge(rctx, powerWatt)
	} else {
		err = a.device.DisableCharge(rctx)
	}
	if err != nil {
		a.logger.Error("charge control command failed", zap.Error(err))
		return nil, err
	}
	return &domain.SetChargeControlResponse{}, nil
}

func (a *DeviceActor) getDeviceState() (*domain.GetDeviceStateResponse, error) {
	rctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	extern, setpoint, err := a.device.State(rctx)
	if err != nil {
		a.logger.Error("device state read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetDeviceStateResponse{
		ExternControl: extern,
		SetpointWatt:  setpoint,
	}, nil
}

// releaseControl leaves the battery under the inverter's own management
// when the bridge goes down. Best effort.
func (a *DeviceActor) releaseControl() {
	rctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.device.DisableCharge(rctx); err != nil {
		a.logger.Warn("could not release charge control on stop", zap.Error(err))
	}
	if err := a.device.Close(); err != nil {
		a.logger.Debug("device close failed", zap.Error(err))
	}
}
