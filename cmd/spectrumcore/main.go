package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	spectrum "github.com/nwpulei/spectrumcore"
)

func main() {
	configPath := pflag.StringP("config", "c", "spectrumcore.yaml", "Path to the YAML config file.")
	audioDevice := pflag.StringP("audio-device", "d", "", "Capture device name substring (default: system default).")
	replayFile := pflag.StringP("replay", "r", "", "WAV file to replay instead of live capture.")
	wsAddr := pflag.StringP("websocket-addr", "w", "", "Listen address for the reference WebSocket display sink.")
	metricsAddr := pflag.StringP("metrics-addr", "m", "", "Listen address for Prometheus /metrics.")
	mqttURL := pflag.StringP("mqtt-broker", "q", "", "Optional MQTT broker URL for telemetry publishing.")
	logLevel := pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, error.")
	desiredFps := pflag.Uint32P("fps", "f", 0, "Override the configured desired frame rate.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		os.Stderr.WriteString("spectrumcore: concurrent audio spectrum analysis engine\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}

	cfg, err := spectrum.LoadConfig(*configPath)
	if err != nil {
		spectrum.Logger.Warn("using defaults, could not load config", "path", *configPath, "err", err)
		cfg = spectrum.DefaultConfig()
	}
	cfg.ApplyFlags(*audioDevice, *wsAddr, *metricsAddr, *mqttURL, *logLevel, *desiredFps)
	spectrum.SetLogLevel(cfg.LogLevel)

	var source spectrum.SampleSource
	if *replayFile != "" {
		source, err = spectrum.NewWavReplay(*replayFile)
		if err != nil {
			spectrum.Logger.Fatal("failed to open replay file", "path", *replayFile, "err", err)
		}
	} else {
		source = spectrum.NewLiveCapture(cfg.AudioDeviceName)
	}

	wsListenAddr := cfg.WebSocketListenAddr
	if wsListenAddr == "" {
		wsListenAddr = ":8090"
	}
	sink := spectrum.NewWebSocketSink(wsListenAddr)

	obs := spectrum.NewMultiObserver(
		spectrum.NewMemoryObserver(10*time.Second),
		spectrum.NewPrometheusObserver(prometheus.DefaultRegisterer),
	)

	if cfg.MetricsListenAddr != "" {
		go func() {
			if err := spectrum.ServeMetrics(cfg.MetricsListenAddr); err != nil {
				spectrum.Logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	health, err := spectrum.NewHealthReporter(prometheus.DefaultRegisterer)
	if err != nil {
		spectrum.Logger.Warn("health reporter unavailable", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if health != nil {
		go health.Run(ctx, 5*time.Second)
	}

	var telemetry *spectrum.MQTTTelemetryPublisher
	pipeline := spectrum.NewPipeline(cfg, source, sink, obs)

	if cfg.MqttBrokerURL != "" {
		telemetry, err = spectrum.NewMQTTTelemetryPublisher(cfg.MqttBrokerURL, "spectrumcore", pipeline.RawQueue(), pipeline.DispQueue(), obs)
		if err != nil {
			spectrum.Logger.Warn("mqtt telemetry unavailable", "err", err)
		} else {
			go telemetry.Run(ctx)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		spectrum.Logger.Info("shutting down")
		pipeline.Stop()
		cancel()
	}()

	if err := pipeline.Run(ctx); err != nil {
		spectrum.Logger.Fatal("pipeline exited with error", "err", err)
	}
}
