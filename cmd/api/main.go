package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/plenticharge/internal/adapter/actor"
	"github.com/berfenger/plenticharge/internal/adapter/homeassistant"
	"github.com/berfenger/plenticharge/internal/adapter/inverter"
	"github.com/berfenger/plenticharge/internal/config"
	"github.com/berfenger/plenticharge/internal/core/actor"
	"github.com/berfenger/plenticharge/internal/core/domain"
	"github.com/berfenger/plenticharge/internal/server"
	"github.com/berfenger/plenticharge/internal/storage"
	"github.com/berfenger/plenticharge/internal/util/actorutil"
	"github.com/berfenger/plenticharge/pkg/kostal"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// consumption profile storage
	var consumption *storage.ConsumptionRepository
	if cfg.AutomationConfig.ConsumptionTrackEnable {
		consumption, err = storage.NewConsumptionRepository(cfg.DatabaseConfig.Path, 28, logger)
		if err != nil {
			panic(err)
		}
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, sensorsActorProvider(cfg, logger),
			deviceActorProvider(cfg, logger), mqttActorProvider(cfg, logger), consumption, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// day-ahead prices for tomorrow publish around 13:00, refresh the plan
	// shortly after
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched := quartz.NewStdScheduler()
	sched.Start(schedCtx)
	planTrigger, err := quartz.NewCronTrigger("0 5 13 * * *")
	if err != nil {
		panic(err)
	}
	refreshJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		ctx.Send(pid, domain.RecalculatePlanRequest{})
		return true, nil
	})
	err = sched.ScheduleJob(quartz.NewJobDetail(refreshJob, quartz.NewJobKey("daily_plan_refresh")), planTrigger)
	if err != nil {
		panic(err)
	}

	server := server.NewServer(*cfg, ctx, pid, consumption)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	sched.Stop()
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => PLENTICHARGE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("PLENTICHARGE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("plenticharge")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	auto := cfg.AutomationConfig
	if auto.FastIntervalMillis < 500 {
		return nil, errors.New("config param automation.fast_interval_millis should be >= 500ms")
	}
	if auto.SlowIntervalMillis < 30000 {
		return nil, errors.New("config param automation.slow_interval_millis should be >= 30000ms")
	}
	if auto.SafetySoC >= auto.ChargeBelowSoC {
		return nil, errors.New("config param automation.safety_soc must be < automation.charge_below_soc")
	}
	if auto.TargetSoC < auto.ChargeBelowSoC || auto.TargetSoC > 100 {
		return nil, errors.New("config param automation.target_soc must be in [charge_below_soc, 100]")
	}
	if auto.ChargeMinutesPer10Pct == 0 {
		return nil, errors.New("config param automation.charge_minutes_per_10_percent should be > 0")
	}
	if auto.ChargePowerWatt == 0 {
		return nil, errors.New("config param automation.charge_power_watt should be > 0")
	}
	if auto.TrendThreshold1h <= 0 || auto.TrendThreshold3h <= 0 {
		return nil, errors.New("config params automation.trend_threshold_1h/3h should be > 0")
	}
	if cfg.HomeAssistant.BaseURL == "" || cfg.HomeAssistant.Token == "" {
		return nil, errors.New("config params home_assistant.base_url and home_assistant.token are required")
	}
	if cfg.Inverter.Host == "" {
		return nil, errors.New("config param inverter.host is required")
	}

	return &cfg, nil
}

func sensorsActorProvider(cfg *config.Config, logger *zap.Logger) actor.SensorsActorProvider {
	timeout := time.Duration(cfg.HomeAssistant.TimeoutMillis) * time.Millisecond
	client := homeassistant.NewClient(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, timeout, logger)
	reader := homeassistant.NewStateReader(client, cfg.HomeAssistant, logger)
	return func() *adactor.SensorsActor {
		return adactor.NewSensorsActor(reader, reader, timeout, logger)
	}
}

func deviceActorProvider(cfg *config.Config, logger *zap.Logger) actor.DeviceActorProvider {
	timeout := time.Duration(cfg.Inverter.TimeoutMillis) * time.Millisecond
	rest := kostal.CreatePlenticoreRESTClient(cfg.Inverter.Host, cfg.Inverter.RESTPort,
		cfg.Inverter.InstallerPassword, cfg.Inverter.MasterPassword, timeout, logger)
	writer, err := kostal.CreatePlenticoreModbusWriter(cfg.Inverter.Host, cfg.Inverter.ModbusPort,
		uint8(cfg.Inverter.ModbusUnitId), timeout, logger)
	if err != nil {
		panic(err)
	}
	controller := inverter.NewController(rest, writer, logger)
	return func() *adactor.DeviceActor {
		return adactor.NewDeviceActor(controller, timeout, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "plenticharge")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("home_assistant.timeout_millis", 2000)
	viper.SetDefault("inverter.rest_port", 80)
	viper.SetDefault("inverter.modbus_port", 1502)
	viper.SetDefault("inverter.modbus_unit_id", 71)
	viper.SetDefault("inverter.timeout_millis", 2000)
	viper.SetDefault("automation.safety_soc", 10)
	viper.SetDefault("automation.charge_below_soc", 80)
	viper.SetDefault("automation.target_soc", 95)
	viper.SetDefault("automation.pv_threshold_kwh", 8)
	viper.SetDefault("automation.charge_minutes_per_10_percent", 18)
	viper.SetDefault("automation.trend_threshold_1h", 0.08)
	viper.SetDefault("automation.trend_threshold_3h", 0.08)
	viper.SetDefault("automation.charge_power_watt", 3000)
	viper.SetDefault("automation.fast_interval_millis", 2000)
	viper.SetDefault("automation.slow_interval_millis", 300000)
	viper.SetDefault("automation.enabled_on_start", true)
	viper.SetDefault("automation.consumption_track_enable", false)
	viper.SetDefault("database.path", "plenticharge.db")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.HomeAssistant.Token = "*redacted*"
	cfg.Inverter.InstallerPassword = "*redacted*"
	cfg.Inverter.MasterPassword = "*redacted*"
	slog.Info("Using", "config", cfg)
}
