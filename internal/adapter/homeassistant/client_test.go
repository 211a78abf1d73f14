package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/config"
	"github.com/berfenger/plenticharge/internal/core/domain"
)

const testToken = "test-token"

func fakeHA(t *testing.T, states map[string]EntityState) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		entityId := r.URL.Path[len("/api/states/"):]
		es, ok := states[entityId]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(es); err != nil {
			t.Errorf("encode state: %v", err)
		}
	}))
}

func testStates() map[string]EntityState {
	attrs, _ := json.Marshal(map[string]any{
		"price_level": "CHEAP",
		"today": []map[string]any{
			{"startsAt": "2026-01-05T10:00:00+01:00", "total": 0.20},
			{"startsAt": "2026-01-05T11:00:00+01:00", "total": 0.22},
		},
		"tomorrow": []map[string]any{},
	})
	return map[string]EntityState{
		"sensor.battery_soc":         {State: "57.5"},
		"sensor.battery_power":       {State: "-1200"},
		"sensor.pv_forecast_today":   {State: "8.4"},
		"sensor.pv_forecast_tomorr":  {State: "3.1"},
		"sensor.electricity_price":   {State: "0.21", Attributes: attrs},
		"input_boolean.manual_force": {State: "off"},
		"sensor.broken":              {State: "unavailable"},
	}
}

func testHAConfig() config.HomeAssistantConfig {
	return config.HomeAssistantConfig{
		BatterySoCEntity:       "sensor.battery_soc",
		BatteryPowerEntity:     "sensor.battery_power",
		PVForecastTodayEntity:  "sensor.pv_forecast_today",
		PVForecastTomorrEntity: "sensor.pv_forecast_tomorr",
		PriceEntity:            "sensor.electricity_price",
		ManualOverrideEntity:   "input_boolean.manual_force",
	}
}

func TestGetFloatState(t *testing.T) {
	require := require.New(t)

	srv := fakeHA(t, testStates())
	defer srv.Close()
	client := NewClient(srv.URL, testToken, 2*time.Second, zap.Must(zap.NewDevelopment()))

	soc, err := client.GetFloatState(context.Background(), "sensor.battery_soc")
	require.NoError(err)
	assert.EqualValues(t, 57.5, soc)
}

func TestUnavailableStateIsSensorError(t *testing.T) {
	require := require.New(t)

	srv := fakeHA(t, testStates())
	defer srv.Close()
	client := NewClient(srv.URL, testToken, 2*time.Second, zap.Must(zap.NewDevelopment()))

	_, err := client.GetState(context.Background(), "sensor.broken")
	var sensorErr domain.SensorUnavailableError
	require.ErrorAs(err, &sensorErr)
	assert.Equal(t, "sensor.broken", sensorErr.Entity)

	_, err = client.GetState(context.Background(), "sensor.missing")
	require.ErrorAs(err, &sensorErr)
}

func TestReadSnapshot(t *testing.T) {
	require := require.New(t)

	srv := fakeHA(t, testStates())
	defer srv.Close()
	logger := zap.Must(zap.NewDevelopment())
	reader := NewStateReader(NewClient(srv.URL, testToken, 2*time.Second, logger), testHAConfig(), logger)

	snapshot, err := reader.ReadSnapshot(context.Background())
	require.NoError(err)
	assert.EqualValues(t, 57.5, snapshot.SOC)
	// entity reads -1200 while charging, the snapshot flips the sign
	assert.EqualValues(t, 1200, snapshot.BatteryPowerWatt)
	assert.EqualValues(t, 8.4, snapshot.PVForecastTodayKWh)
	assert.Equal(t, domain.PriceLevelCheap, snapshot.PriceLevel)
	assert.False(t, snapshot.ManualOverride)
	assert.Equal(t, "0.21", snapshot.CurrentPrice.String())
}

func TestReadSnapshotNormalizesBatteryPowerSign(t *testing.T) {
	require := require.New(t)

	states := testStates()
	// the entity follows the inverter register, positive while discharging
	states["sensor.battery_power"] = EntityState{State: "850"}
	srv := fakeHA(t, states)
	defer srv.Close()
	logger := zap.Must(zap.NewDevelopment())
	reader := NewStateReader(NewClient(srv.URL, testToken, 2*time.Second, logger), testHAConfig(), logger)

	snapshot, err := reader.ReadSnapshot(context.Background())
	require.NoError(err)
	assert.EqualValues(t, -850, snapshot.BatteryPowerWatt)
}

func TestReadSnapshotFailsWithoutSoC(t *testing.T) {
	require := require.New(t)

	states := testStates()
	delete(states, "sensor.battery_soc")
	srv := fakeHA(t, states)
	defer srv.Close()
	logger := zap.Must(zap.NewDevelopment())
	reader := NewStateReader(NewClient(srv.URL, testToken, 2*time.Second, logger), testHAConfig(), logger)

	_, err := reader.ReadSnapshot(context.Background())
	var sensorErr domain.SensorUnavailableError
	require.ErrorAs(err, &sensorErr)
}

func TestReadPriceForecast(t *testing.T) {
	require := require.New(t)

	srv := fakeHA(t, testStates())
	defer srv.Close()
	logger := zap.Must(zap.NewDevelopment())
	reader := NewStateReader(NewClient(srv.URL, testToken, 2*time.Second, logger), testHAConfig(), logger)

	raw, err := reader.ReadPriceForecast(context.Background())
	require.NoError(err)
	require.Len(raw.Today, 2)
	assert.Equal(t, "2026-01-05T10:00:00+01:00", raw.Today[0].StartsAt)
	assert.EqualValues(t, 0.20, raw.Today[0].Total)
	assert.Empty(t, raw.Tomorrow)
}
