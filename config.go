package spectrum

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// supportedConfigVersions bounds the ConfigVersion values this build
// knows how to interpret. A file from an incompatible rewrite should
// fail loudly at load time rather than parse into silently-wrong
// defaults.
var supportedConfigVersions = version.MustConstraints(version.NewConstraint(">= 1.0.0, < 2.0.0"))

// Config is the closed set of analysis parameters plus the ambient
// settings (device selection, network listen addresses, logging) this
// rewrite adds around them. It is populated once at startup from YAML
// and command-line flags and never mutated afterward. The Welch overlap
// is not a field: its initial value is derived from DesiredFrameRate
// (initialOverlap) and the live value travels through Q_ctrl.
type Config struct {
	ConfigVersion string `yaml:"configVersion"`

	SamplingRate     uint32 `yaml:"samplingRate"`
	NumberOfSamples  uint32 `yaml:"numberOfSamples"`
	DesiredFrameRate uint32 `yaml:"desiredFrameRate"`

	NumberOfSignalsForAveraging uint32  `yaml:"numberOfSignalsForAveraging"`
	NumberOfSignalsForMaxHold  uint32  `yaml:"numberOfSignalsForMaxHold"`
	AlphaFactor                float32 `yaml:"alphaFactor"`

	MaxQueueSize uint32 `yaml:"maxQueueSize"`

	ScalingFactor float32   `yaml:"scalingFactor"`
	OffsetFactor  float32   `yaml:"offsetFactor"`
	SignalWindow  []float32 `yaml:"signalWindow"`
	Freqs         []float32 `yaml:"freqs"`

	DynamicMaxHoldSpeedOfFalling             float32 `yaml:"dynamicMaxHoldSpeedOfFalling"`
	DynamicMaxHoldAccelerationStateOfFalling bool    `yaml:"dynamicMaxHoldAccelerationStateOfFalling"`

	AudioDeviceName      string `yaml:"audioDeviceName"`
	WebSocketListenAddr  string `yaml:"webSocketListenAddr"`
	MetricsListenAddr    string `yaml:"metricsListenAddr"`
	MqttBrokerURL        string `yaml:"mqttBrokerUrl"`
	LogLevel             string `yaml:"logLevel"`
}

// DefaultConfig returns the documented defaults for every kind; a
// loaded YAML file only needs to override the ones it cares about.
func DefaultConfig() Config {
	return Config{
		ConfigVersion:    "1.0.0",
		SamplingRate:     44100,
		NumberOfSamples:  4096,
		DesiredFrameRate: 60,

		NumberOfSignalsForAveraging: 1,
		NumberOfSignalsForMaxHold:   5,
		AlphaFactor:                 0.25,

		MaxQueueSize: 20,

		ScalingFactor: 0, // 0 means "derive from SignalWindow at load time"
		OffsetFactor:  0,
		SignalWindow:  nil, // nil means "Hann of length NumberOfSamples"
		Freqs:         defaultFreqs(),

		DynamicMaxHoldSpeedOfFalling:             900,
		DynamicMaxHoldAccelerationStateOfFalling: true,

		LogLevel: "info",
	}
}

func defaultFreqs() []float32 {
	freqs := make([]float32, 0, 64)
	for f := float32(20); f <= 8000; f *= 1.1 {
		freqs = append(freqs, f)
	}
	return freqs
}

// LoadConfig reads and validates a YAML config file, filling in any
// field the file omits from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validateVersion(); err != nil {
		return cfg, err
	}

	cfg.fillDerivedDefaults()
	return cfg, nil
}

func (c *Config) validateVersion() error {
	v, err := version.NewVersion(c.ConfigVersion)
	if err != nil {
		return fmt.Errorf("config: invalid configVersion %q: %w", c.ConfigVersion, err)
	}
	if !supportedConfigVersions.Check(v) {
		return fmt.Errorf("config: configVersion %s does not satisfy %s", v, supportedConfigVersions)
	}
	return nil
}

func (c *Config) fillDerivedDefaults() {
	if c.SignalWindow == nil {
		c.SignalWindow = HannWindow(int(c.NumberOfSamples))
	}
	if c.ScalingFactor == 0 {
		c.ScalingFactor = WindowAmplitudeCorrection(c.SignalWindow)
	}
}

// ApplyFlags overrides cfg fields with any of the named command-line
// flag values that are non-empty (or, for desiredFps, non-zero); an
// empty string or zero leaves the configured value in place.
func (c *Config) ApplyFlags(audioDevice, wsAddr, metricsAddr, mqttURL, logLevel string, desiredFps uint32) {
	if audioDevice != "" {
		c.AudioDeviceName = audioDevice
	}
	if wsAddr != "" {
		c.WebSocketListenAddr = wsAddr
	}
	if metricsAddr != "" {
		c.MetricsListenAddr = metricsAddr
	}
	if mqttURL != "" {
		c.MqttBrokerURL = mqttURL
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if desiredFps != 0 {
		c.DesiredFrameRate = desiredFps
	}
}
