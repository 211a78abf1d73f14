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

// SensorsActor serializes reads against the home automation platform.
// Reads run as background tasks so a slow HTTP call never blocks the
// mailbox; requests arriving mid-read are stashed.
type SensorsActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	sensors  port.SensorReader
	forecast port.ForecastReader
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewSensorsActor(sensors port.SensorReader, forecast port.ForecastReader, timeout time.Duration, logger *zap.Logger) *SensorsActor {
	act := &SensorsActor{
		sensors:  sensors,
		forecast: forecast,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_SENSORS, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *SensorsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SensorsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sensors@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SENSORS,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetLiveSnapshotRequest:
		state.logger.Debug("sensors@default: GetLiveSnapshotRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readSnapshot),
			mapTaskResult[domain.GetLiveSnapshotResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetLiveSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingRead)
	case domain.GetPriceForecastRequest:
		state.logger.Debug("sensors@default: GetPriceForecastRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readForecast),
			mapTaskResult[domain.GetPriceForecastResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetPriceForecastResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingRead)
	default:
		state.logger.Debug("sensors@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SensorsActor) WaitingRead(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("sensors@waitingRead backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("sensors@waitingRead stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *SensorsActor) readSnapshot() (*domain.GetLiveSnapshotResponse, error) {
	rctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	snapshot, err := a.sensors.ReadSnapshot(rctx)
	if err != nil {
		a.logger.Error("snapshot read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetLiveSnapshotResponse{
		Snapshot: snapshot,
	}, nil
}

func (a *SensorsActor) readForecast() (*domain.GetPriceForecastResponse, error) {
	rctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	raw, err := a.forecast.ReadPriceForecast(rctx)
	if err != nil {
		a.logger.Error("forecast read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetPriceForecastResponse{
		Raw: raw,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
