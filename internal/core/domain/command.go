package domain

import "fmt"

// ChargeControlRequest

type ChargeControlRequest interface {
	ActorRequest
	ChargeControlCommand() string
}

type ChargeControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ChargeControlRequestMixIn) ChargeControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ChargeControlResponse

type ChargeControlResponse interface {
	ActorResponse
	ChargeControlResponse() string
}

type ChargeControlResponseMixIn struct {
	ActorResponse
}

func (r ChargeControlResponseMixIn) ChargeControlResponse() string {
	return fmt.Sprintf("%T", r)
}

// ChargeControl commands

type ToggleAutomationRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

type ToggleAutomationResponse struct {
	ChargeControlResponseMixIn
	Changed bool
}

type ManualChargeRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

type ManualChargeResponse struct {
	ChargeControlResponseMixIn
	Changed bool
}

type SetTargetSoCRequest struct {
	ChargeControlRequestMixIn
	TargetSoC uint
}

type SetTargetSoCResponse struct {
	ChargeControlResponseMixIn
	TargetSoC uint
}

type GetAutomationStateRequest struct {
	ChargeControlRequestMixIn
}

type GetAutomationStateResponse struct {
	ChargeControlResponseMixIn
	State bool
}

type GetManualChargeStateRequest struct {
	ChargeControlRequestMixIn
}

type GetManualChargeStateResponse struct {
	ChargeControlResponseMixIn
	State bool
}

// ensure interface compliance
var _ ChargeControlRequest = (*ToggleAutomationRequest)(nil)
