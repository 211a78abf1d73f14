package server

import (
	"net/http"
	"time"

	"github.com/berfenger/plenticharge/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type statusResponse struct {
	Mode              domain.Mode          `json:"mode"`
	AutomationEnabled bool                 `json:"automation_enabled"`
	Plan              *domain.ChargingPlan `json:"plan,omitempty"`
	Snapshot          *domain.LiveSnapshot `json:"snapshot,omitempty"`
	Decision          *domain.Decision     `json:"decision,omitempty"`
	SensorError       string               `json:"sensor_error,omitempty"`
}

type planResponse struct {
	Summary string               `json:"summary"`
	Plan    *domain.ChargingPlan `json:"plan,omitempty"`
}

type explanationResponse struct {
	Summary     string             `json:"summary"`
	Conditions  []domain.Condition `json:"conditions"`
	Rendered    string             `json:"rendered"`
	SensorError string             `json:"sensor_error,omitempty"`
}

type controlRequest struct {
	Automation   *bool `json:"automation,omitempty"`
	ManualCharge *bool `json:"manual_charge,omitempty"`
	TargetSoC    *uint `json:"target_soc,omitempty"`
}

type consumptionResponse struct {
	HourlyProfileKWh map[int]float64 `json:"hourly_profile_kwh"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/status", s.StatusHandler)
	e.GET("/api/plan", s.PlanHandler)
	e.POST("/api/plan/recalculate", s.RecalculatePlanHandler)
	e.GET("/api/explanation", s.ExplanationHandler)
	e.GET("/api/consumption", s.ConsumptionHandler)
	e.POST("/api/control", s.ControlHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetControlStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	status, ok := res.(domain.GetControlStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, statusResponse{
		Mode:              status.Mode,
		AutomationEnabled: status.AutomationEnabled,
		Plan:              status.Plan,
		Snapshot:          status.Snapshot,
		Decision:          status.Decision,
		SensorError:       status.SensorError,
	})
}

func (s *Server) PlanHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetPlanRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.GetPlanResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	out := planResponse{Plan: resp.Plan}
	if resp.Plan != nil {
		out.Summary = resp.Plan.Summary()
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) RecalculatePlanHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RecalculatePlanRequest{}, 15*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.RecalculatePlanResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	out := planResponse{Plan: resp.Plan}
	if resp.Plan != nil {
		out.Summary = resp.Plan.Summary()
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) ExplanationHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetExplanationRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.GetExplanationResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, explanationResponse{
		Summary:     resp.Summary,
		Conditions:  resp.Conditions,
		Rendered:    resp.Rendered,
		SensorError: resp.SensorError,
	})
}

func (s *Server) ConsumptionHandler(c echo.Context) error {
	if s.consumption == nil {
		return echo.NewHTTPError(http.StatusNotFound, "consumption tracking disabled")
	}
	profile, err := s.consumption.HourlyProfile()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, consumptionResponse{HourlyProfileKWh: profile})
}

func (s *Server) ControlHandler(c echo.Context) error {
	var req controlRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Automation == nil && req.ManualCharge == nil && req.TargetSoC == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no control field given")
	}
	if req.Automation != nil {
		_, err := s.rootContext.RequestFuture(s.masterActor, domain.ToggleAutomationRequest{
			Enable: *req.Automation,
		}, 5*time.Second).Result()
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
	}
	if req.ManualCharge != nil {
		_, err := s.rootContext.RequestFuture(s.masterActor, domain.ManualChargeRequest{
			Enable: *req.ManualCharge,
		}, 5*time.Second).Result()
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
	}
	if req.TargetSoC != nil {
		_, err := s.rootContext.RequestFuture(s.masterActor, domain.SetTargetSoCRequest{
			TargetSoC: *req.TargetSoC,
		}, 5*time.Second).Result()
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
	}
	return s.StatusHandler(c)
}
