package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_SENSORS      = "sensors"
	ACTOR_ID_DEVICE       = "device"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_CONTROL      = "charge_control"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Sensor adapter messages

type GetLiveSnapshotRequest struct {
	ActorRequestMixIn
}

type GetLiveSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot *LiveSnapshot
}

type GetPriceForecastRequest struct {
	ActorRequestMixIn
}

type GetPriceForecastResponse struct {
	ActorResponseMixIn
	Raw *RawPriceData
}

// Device adapter messages

type SetChargeControlRequest struct {
	ActorRequestMixIn
	Enable    bool
	PowerWatt uint32
}

type SetChargeControlResponse struct {
	ActorResponseMixIn
}

type GetDeviceStateRequest struct {
	ActorRequestMixIn
}

type GetDeviceStateResponse struct {
	ActorResponseMixIn
	ExternControl bool
	SetpointWatt  uint32
}

// Control actor messages

type GetControlStatusRequest struct {
	ActorRequestMixIn
}

type GetControlStatusResponse struct {
	ActorResponseMixIn
	Mode              Mode
	AutomationEnabled bool
	Plan              *ChargingPlan
	Snapshot          *LiveSnapshot
	Decision          *Decision
	// SensorError is set while snapshot reads are failing; Snapshot and
	// Decision then hold the last successful read.
	SensorError string
}

type GetPlanRequest struct {
	ActorRequestMixIn
}

type GetPlanResponse struct {
	ActorResponseMixIn
	Plan *ChargingPlan
}

type GetExplanationRequest struct {
	ActorRequestMixIn
}

type GetExplanationResponse struct {
	ActorResponseMixIn
	Summary     string
	Conditions  []Condition
	Rendered    string
	SensorError string
}

type RecalculatePlanRequest struct {
	ActorRequestMixIn
}

type RecalculatePlanResponse struct {
	ActorResponseMixIn
	Plan *ChargingPlan
}

// MQTT messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
