package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/plenticharge/internal/config"
	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/events"
	"github.com/berfenger/plenticharge/internal/core/service"
	"github.com/berfenger/plenticharge/internal/storage"
	. "github.com/berfenger/plenticharge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ChargeControlActor owns the control loop. The fast tick reads a sensor
// snapshot and applies the decision rules; the slow tick refetches prices
// and rebuilds the charging plan. Mode changes are pushed to the device
// actor before they are committed.
type ChargeControlActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	stash        *Stash
	sensorsActor *actor.PID
	deviceActor  *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream
	consumption  *storage.ConsumptionRepository

	seriesBuilder *service.PriceSeriesBuilder
	planBuilder   *service.ChargePlanBuilder
	engine        *service.DecisionEngine

	fastInterval   time.Duration
	slowInterval   time.Duration
	requestTimeout time.Duration

	automationEnabled bool
	manualCharge      bool
	targetSoC         uint
	mode              domain.Mode
	appliedPowerWatt  uint32
	plan              *domain.ChargingPlan
	lastSnapshot      *domain.LiveSnapshot
	lastDecision      *domain.Decision
	lastSensorErr     error

	pendingPlanReply *actor.PID

	// consumption accounting between snapshots
	lastSampleAt time.Time
	hourStart    time.Time
	accumKWh     float64

	logger *zap.Logger
}

type fastTick struct {
}

type slowTick struct {
}

func NewChargeControlActor(config *config.Config, sensorsActor, deviceActor *actor.PID,
	eventStream *eventstream.EventStream, consumption *storage.ConsumptionRepository,
	logger *zap.Logger) *ChargeControlActor {

	auto := config.AutomationConfig
	actLogger := ActorLogger(domain.ACTOR_ID_CONTROL, logger)

	trend := &service.TrendAnalyzer{
		Threshold1h: auto.TrendThreshold1h,
		Threshold3h: auto.TrendThreshold3h,
		Logger:      actLogger,
	}

	act := &ChargeControlActor{
		config:       config,
		sensorsActor: sensorsActor,
		deviceActor:  deviceActor,
		eventStream:  eventStream,
		consumption:  consumption,
		stash:        &Stash{},
		logger:       actLogger,
		seriesBuilder: &service.PriceSeriesBuilder{
			Logger: actLogger,
		},
		planBuilder: &service.ChargePlanBuilder{
			Trend:           trend,
			MinutesPer10Pct: auto.ChargeMinutesPer10Pct,
			Logger:          actLogger,
		},
		engine: &service.DecisionEngine{
			SafetySoC:       auto.SafetySoC,
			ChargeBelowSoC:  auto.ChargeBelowSoC,
			PVThresholdKWh:  auto.PVThresholdKWh,
			ChargePowerWatt: auto.ChargePowerWatt,
			Logger:          actLogger,
		},
		fastInterval:      time.Duration(auto.FastIntervalMillis) * time.Millisecond,
		slowInterval:      time.Duration(auto.SlowIntervalMillis) * time.Millisecond,
		requestTimeout:    time.Duration(config.HomeAssistant.TimeoutMillis+500) * time.Millisecond,
		automationEnabled: auto.EnabledOnStart,
		targetSoC:         uint(auto.TargetSoC),
		mode:              domain.ModeStandby,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CCStartingState{
		actor: act,
	})
	return act
}

func (state *ChargeControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CCStartingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCStartingState) Name() string {
	return "starting"
}

func (state CCStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("charge_control@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		// snapshot first, the boot plan is sized from the live SOC
		ctx.Send(ctx.Self(), fastTick{})
		ctx.Send(ctx.Self(), slowTick{})

		state.actor.publishControlState()
		state.actor.Become(CCRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charge_control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CCRunningState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCRunningState) Name() string {
	return "running"
}

func (state CCRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROL,
			Healthy: true,
			State:   state.Name(),
		})
	case fastTick:
		state.actor.logger.Debug("charge_control@running fastTick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.sensorsActor,
			domain.GetLiveSnapshotRequest{}, state.actor.requestTimeout),
			func(err error) any {
				return domain.GetLiveSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		state.actor.BecomeStacked(CCAwaitSnapshotState{
			actor: state.actor,
		})
	case slowTick:
		state.actor.logger.Debug("charge_control@running slowTick")
		state.requestForecast(ctx)
	case domain.RecalculatePlanRequest:
		state.actor.logger.Debug("charge_control@running RecalculatePlanRequest")
		state.actor.pendingPlanReply = ForRequest(msg).ReplyTo(ctx)
		state.requestForecast(ctx)
	case domain.GetControlStatusRequest:
		state.actor.logger.Debug("charge_control@running GetControlStatusRequest")
		ForRequest(msg).Respond(ctx, domain.GetControlStatusResponse{
			Mode:              state.actor.mode,
			AutomationEnabled: state.actor.automationEnabled,
			Plan:              state.actor.plan,
			Snapshot:          state.actor.lastSnapshot,
			Decision:          state.actor.lastDecision,
			SensorError:       state.actor.sensorErrString(),
		})
	case domain.GetPlanRequest:
		state.actor.logger.Debug("charge_control@running GetPlanRequest")
		ForRequest(msg).Respond(ctx, domain.GetPlanResponse{
			Plan: state.actor.plan,
		})
	case domain.GetExplanationRequest:
		state.actor.logger.Debug("charge_control@running GetExplanationRequest")
		ForRequest(msg).Respond(ctx, state.actor.explanationResponse())
	case domain.ChargeControlRequest:
		state.handleCommand(ctx, msg)
	case domain.SetChargeControlResponse:
		// late device response after an await timeout, nothing to do
	default:
		state.actor.logger.Debug("charge_control@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state CCRunningState) requestForecast(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.sensorsActor,
		domain.GetPriceForecastRequest{}, state.actor.requestTimeout),
		func(err error) any {
			return domain.GetPriceForecastResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	state.actor.BecomeStacked(CCAwaitForecastState{
		actor: state.actor,
	})
}

func (state CCRunningState) handleCommand(ctx actor.Context, msg domain.ChargeControlRequest) {
	switch cmd := msg.(type) {
	case domain.ToggleAutomationRequest:
		state.actor.logger.Sugar().Debugf("charge_control@running: cmd automation %t", cmd.Enable)
		changed := state.actor.automationEnabled != cmd.Enable
		state.actor.automationEnabled = cmd.Enable
		state.actor.publish(events.AutomationSwitchUpdateEvent(cmd.Enable))
		if ctx.Sender() != nil {
			ctx.Respond(domain.ToggleAutomationResponse{Changed: changed})
		}
	case domain.ManualChargeRequest:
		state.actor.logger.Sugar().Debugf("charge_control@running: cmd manual charge %t", cmd.Enable)
		changed := state.actor.manualCharge != cmd.Enable
		state.actor.manualCharge = cmd.Enable
		state.actor.publish(events.ManualChargeSwitchUpdateEvent(cmd.Enable))
		if ctx.Sender() != nil {
			ctx.Respond(domain.ManualChargeResponse{Changed: changed})
		}
	case domain.SetTargetSoCRequest:
		state.actor.logger.Sugar().Debugf("charge_control@running: cmd setTargetSoC %d", cmd.TargetSoC)
		target := cmd.TargetSoC
		if target > 100 {
			target = 100
		}
		state.actor.targetSoC = target
		state.actor.publish(events.TargetSoCUpdateEvent(target))
		if ctx.Sender() != nil {
			ctx.Respond(domain.SetTargetSoCResponse{TargetSoC: target})
		}
	case domain.GetAutomationStateRequest:
		ctx.Respond(domain.GetAutomationStateResponse{State: state.actor.automationEnabled})
	case domain.GetManualChargeStateRequest:
		ctx.Respond(domain.GetManualChargeStateResponse{State: state.actor.manualCharge})
	}
}

// Await snapshot state

type CCAwaitSnapshotState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCAwaitSnapshotState) Name() string {
	return "awaitSnapshot"
}

func (state CCAwaitSnapshotState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetLiveSnapshotResponse:
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
		if msg.HasResponseError() {
			// hold the previous mode, the device was not touched
			state.actor.logger.Error("charge_control@awaitSnapshot: snapshot error", zap.Error(msg.GetResponseError()))
			state.actor.lastSensorErr = msg.GetResponseError()
			state.actor.scheduleFastTick(ctx)
			return
		}
		state.actor.handleSnapshot(ctx, msg.Snapshot)
	default:
		state.actor.logger.Debug("charge_control@awaitSnapshot: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Await forecast state

type CCAwaitForecastState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCAwaitForecastState) Name() string {
	return "awaitForecast"
}

func (state CCAwaitForecastState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetPriceForecastResponse:
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
		state.actor.handleForecast(ctx, msg)
		state.actor.scheduler.RequestOnce(state.actor.slowInterval, ctx.Self(), slowTick{})
	default:
		state.actor.logger.Debug("charge_control@awaitForecast: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Await device state

type CCAwaitDeviceState struct {
	ActorState
	actor   *ChargeControlActor
	pending domain.Decision
}

func (state CCAwaitDeviceState) Name() string {
	return "awaitDevice"
}

func (state CCAwaitDeviceState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SetChargeControlResponse:
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
		if msg.HasResponseError() {
			// command did not reach the device, keep the previous mode
			state.actor.logger.Error("charge_control@awaitDevice: device error", zap.Error(msg.GetResponseError()))
		} else {
			state.actor.commitMode(state.pending)
		}
		state.actor.scheduleFastTick(ctx)
	default:
		state.actor.logger.Debug("charge_control@awaitDevice: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Actor helpers

func (state *ChargeControlActor) handleSnapshot(ctx actor.Context, snapshot *domain.LiveSnapshot) {
	now := time.Now()
	snapshot.Time = now
	state.lastSnapshot = snapshot
	state.lastSensorErr = nil
	state.trackConsumption(snapshot, now)

	// the MQTT manual charge switch acts like the manual override entity
	effective := *snapshot
	effective.ManualOverride = snapshot.ManualOverride || state.manualCharge

	decision := state.engine.Decide(effective, state.plan, state.automationEnabled, now)
	state.lastDecision = &decision

	for _, ev := range events.SnapshotToUpdateEvents(snapshot) {
		state.publish(ev)
	}
	for _, ev := range events.DecisionToUpdateEvents(&decision) {
		state.publish(ev)
	}

	if decision.Mode == state.mode && decision.ChargePowerWatt == state.appliedPowerWatt {
		state.scheduleFastTick(ctx)
		return
	}

	charging := decision.Mode != domain.ModeStandby
	state.logger.Info("charge_control: mode transition",
		zap.String("from", string(state.mode)),
		zap.String("to", string(decision.Mode)),
		zap.String("summary", decision.Summary))
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.SetChargeControlRequest{
		Enable:    charging,
		PowerWatt: decision.ChargePowerWatt,
	}, state.requestTimeout), func(err error) any {
		return domain.SetChargeControlResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.BecomeStacked(CCAwaitDeviceState{
		actor:   state,
		pending: decision,
	})
}

func (state *ChargeControlActor) handleForecast(ctx actor.Context, msg domain.GetPriceForecastResponse) {
	now := time.Now()

	if msg.HasResponseError() {
		state.logger.Error("charge_control: forecast read error", zap.Error(msg.GetResponseError()))
		if state.plan == nil {
			state.plan = &domain.ChargingPlan{ComputedAt: now, Reason: domain.PlanNoData}
		}
		state.finishPlanCycle(ctx)
		return
	}

	series, err := state.seriesBuilder.Build(msg.Raw)
	if err != nil {
		state.logger.Warn("charge_control: invalid price data", zap.Error(err))
		state.plan = &domain.ChargingPlan{ComputedAt: now, Reason: domain.PlanNoData}
		state.finishPlanCycle(ctx)
		return
	}

	if state.lastSnapshot == nil {
		// the window duration depends on the current SOC
		state.logger.Warn("charge_control: plan deferred, no sensor snapshot yet")
		state.plan = &domain.ChargingPlan{ComputedAt: now, Reason: domain.PlanNoData}
		state.finishPlanCycle(ctx)
		return
	}
	plan := state.planBuilder.BuildPlan(series, now, state.lastSnapshot.SOC, float64(state.targetSoC))
	state.plan = &plan
	state.logger.Info("charge_control: plan recomputed", zap.String("plan", plan.Summary()))
	state.finishPlanCycle(ctx)
}

func (state *ChargeControlActor) finishPlanCycle(ctx actor.Context) {
	for _, ev := range events.PlanToUpdateEvents(state.plan) {
		state.publish(ev)
	}
	if state.pendingPlanReply != nil {
		ctx.Send(state.pendingPlanReply, domain.RecalculatePlanResponse{
			Plan: state.plan,
		})
		state.pendingPlanReply = nil
	}
}

func (state *ChargeControlActor) commitMode(decision domain.Decision) {
	state.mode = decision.Mode
	state.appliedPowerWatt = decision.ChargePowerWatt
}

func (state *ChargeControlActor) scheduleFastTick(ctx actor.Context) {
	state.scheduler.RequestOnce(state.fastInterval, ctx.Self(), fastTick{})
}

func (state *ChargeControlActor) explanationResponse() domain.GetExplanationResponse {
	resp := domain.GetExplanationResponse{
		Summary: "no decision evaluated yet",
	}
	if state.lastDecision != nil {
		resp.Summary = state.lastDecision.Summary
		resp.Conditions = state.lastDecision.Conditions
		resp.Rendered = service.RenderExplanation(*state.lastDecision)
	}
	// a stale decision must not read as current while sensors are down
	if state.lastSensorErr != nil {
		resp.SensorError = state.lastSensorErr.Error()
		resp.Summary = fmt.Sprintf("sensor read failing (%s), last evaluation: %s",
			state.lastSensorErr, resp.Summary)
	}
	return resp
}

func (state *ChargeControlActor) sensorErrString() string {
	if state.lastSensorErr == nil {
		return ""
	}
	return state.lastSensorErr.Error()
}

func (state *ChargeControlActor) publishControlState() {
	state.publish(events.AutomationSwitchUpdateEvent(state.automationEnabled))
	state.publish(events.ManualChargeSwitchUpdateEvent(state.manualCharge))
	state.publish(events.TargetSoCUpdateEvent(state.targetSoC))
}

func (state *ChargeControlActor) publish(event any) {
	if state.eventStream != nil {
		state.eventStream.Publish(event)
	}
}

// trackConsumption integrates battery discharge power into hourly energy
// records used by the consumption profile.
func (state *ChargeControlActor) trackConsumption(snapshot *domain.LiveSnapshot, now time.Time) {
	if state.consumption == nil {
		return
	}
	hour := now.Truncate(time.Hour)
	if state.hourStart.IsZero() {
		state.hourStart = hour
		state.lastSampleAt = now
		return
	}
	elapsed := now.Sub(state.lastSampleAt).Hours()
	state.lastSampleAt = now
	// negative battery power is discharge covering household load
	if snapshot.BatteryPowerWatt < 0 && elapsed > 0 {
		state.accumKWh += -snapshot.BatteryPowerWatt / 1000 * elapsed
	}
	if hour.After(state.hourStart) {
		if err := state.consumption.Record(state.hourStart, state.accumKWh); err != nil {
			state.logger.Warn("charge_control: could not record consumption", zap.Error(err))
		}
		state.hourStart = hour
		state.accumKWh = 0
	}
}
