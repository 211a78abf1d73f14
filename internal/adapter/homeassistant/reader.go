package homeassistant

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/config"
	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/core/port"
)

// StateReader assembles a LiveSnapshot and the price forecast from
// configured Home Assistant entities.
type StateReader struct {
	client *Client
	cfg    config.HomeAssistantConfig
	logger *zap.Logger
}

func NewStateReader(client *Client, cfg config.HomeAssistantConfig, logger *zap.Logger) *StateReader {
	return &StateReader{client: client, cfg: cfg, logger: logger}
}

// priceAttributes is the attribute payload of the Tibber price entity.
type priceAttributes struct {
	Today    []domain.RawPricePoint `json:"today"`
	Tomorrow []domain.RawPricePoint `json:"tomorrow"`
	Level    string                 `json:"price_level"`
}

// ReadSnapshot builds the per-tick sensor snapshot. SOC and the PV forecast
// gate the decision rules, so their failure fails the whole read. Battery
// power and price degrade to unset values with a log line.
func (r *StateReader) ReadSnapshot(ctx context.Context) (*domain.LiveSnapshot, error) {
	snapshot := &domain.LiveSnapshot{PriceLevel: domain.PriceLevelUnknown}

	soc, err := r.client.GetFloatState(ctx, r.cfg.BatterySoCEntity)
	if err != nil {
		return nil, err
	}
	snapshot.SOC = soc

	pvToday, err := r.client.GetFloatState(ctx, r.cfg.PVForecastTodayEntity)
	if err != nil {
		return nil, err
	}
	snapshot.PVForecastTodayKWh = pvToday

	if power, err := r.client.GetFloatState(ctx, r.cfg.BatteryPowerEntity); err == nil {
		// the entity mirrors the inverter register, positive while
		// discharging; the snapshot carries positive while charging
		snapshot.BatteryPowerWatt = -power
	} else {
		r.logger.Debug("battery power unavailable", zap.Error(err))
	}

	if pvTomorrow, err := r.client.GetFloatState(ctx, r.cfg.PVForecastTomorrEntity); err == nil {
		snapshot.PVForecastTomorrowKWh = pvTomorrow
	} else {
		r.logger.Debug("tomorrow PV forecast unavailable", zap.Error(err))
	}

	var attrs priceAttributes
	if state, err := r.client.GetStateWithAttributes(ctx, r.cfg.PriceEntity, &attrs); err == nil {
		if price, perr := strconv.ParseFloat(state, 64); perr == nil {
			snapshot.CurrentPrice = decimal.NewFromFloat(price)
		}
		snapshot.PriceLevel = domain.ParsePriceLevel(attrs.Level)
	} else {
		r.logger.Debug("price entity unavailable", zap.Error(err))
	}

	if r.cfg.ManualOverrideEntity != "" {
		override, err := r.client.GetBoolState(ctx, r.cfg.ManualOverrideEntity)
		if err != nil {
			return nil, err
		}
		snapshot.ManualOverride = override
	}

	return snapshot, nil
}

// ReadPriceForecast pulls the raw day-ahead arrays from the price entity
// attributes. Validation happens later in the plan cycle.
func (r *StateReader) ReadPriceForecast(ctx context.Context) (*domain.RawPriceData, error) {
	var attrs priceAttributes
	if _, err := r.client.GetStateWithAttributes(ctx, r.cfg.PriceEntity, &attrs); err != nil {
		return nil, err
	}
	return &domain.RawPriceData{
		Today:    attrs.Today,
		Tomorrow: attrs.Tomorrow,
	}, nil
}

// ensure interface compliance
var _ port.SensorReader = (*StateReader)(nil)
var _ port.ForecastReader = (*StateReader)(nil)
