// Command simulator boots the industrial protocol simulation engine: it
// loads a facility configuration, starts every enabled protocol's
// devices, and serves the HTTP inspection API, mirroring
// original_source/src/main.py's IndustrialFacilitySimulator lifecycle and
// iot_simulator/main.go's load-config/connect/block-forever shape.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/httpapi"
	"github.com/industrial-sim/protocol-sim-engine/internal/metrics"
	"github.com/industrial-sim/protocol-sim-engine/internal/orchestrator"
)

const metricsPollInterval = 5 * time.Second

type bootConfig struct {
	configPath string
	httpAddr   string
	logLevel   string
}

func loadBootConfig() bootConfig {
	_ = godotenv.Load()
	return bootConfig{
		configPath: getEnv("SIMENGINE_CONFIG", "facility_config.yaml"),
		httpAddr:   getEnv("SIMENGINE_HTTP_ADDR", ":8080"),
		logLevel:   getEnv("SIMENGINE_LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	boot := loadBootConfig()

	level, err := zerolog.ParseLevel(boot.logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg, err := config.LoadFile(boot.configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", boot.configPath).Msg("failed to load facility configuration")
	}
	log.Info().Str("facility", cfg.Facility.Name).Strs("enabled_protocols", cfg.EnabledProtocols()).
		Msg("facility configuration loaded")

	orch := orchestrator.New(cfg, clock.Real{})
	if err := orch.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation orchestrator")
	}
	if err := orch.StartAllDevices(); err != nil {
		log.Fatal().Err(err).Msg("failed to start simulated devices")
	}
	log.Info().Int("device_count", orch.DeviceCount()).Msg("simulation running")

	go orch.RunHealthMonitor()

	metricsReg := metrics.New()
	stopMetrics := make(chan struct{})
	go pollMetrics(orch, metricsReg, stopMetrics)

	server := httpapi.New(orch, metricsReg)
	stopBroadcast := make(chan struct{})
	go broadcastLoop(server, stopBroadcast)

	go func() {
		if err := server.Start(boot.httpAddr); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received, stopping simulation")
	close(stopMetrics)
	close(stopBroadcast)
	orch.StopHealthMonitor()
	orch.StopAllDevices()

	if err := server.Shutdown(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("simulation stopped")
}

func pollMetrics(orch *orchestrator.Orchestrator, reg *metrics.Registry, stop <-chan struct{}) {
	ticker := time.NewTicker(metricsPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			perf := orch.GetPerformanceMetrics()
			reg.SetHealthPercentage(perf.HealthyDevicePercentage)
			for protocol, util := range perf.PortUtilization {
				reg.SetPortUtilization(protocol, util.PercentUse)
			}
			for _, protocol := range orch.ActiveProtocols() {
				reg.SetDevicesRunning(protocol, len(orch.DevicesByProtocol(protocol)))
			}
		}
	}
}

func broadcastLoop(server *httpapi.Server, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			server.Broadcast()
		}
	}
}
