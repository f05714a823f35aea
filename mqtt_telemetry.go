package spectrum

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TelemetryPayload is the once-per-second diagnostic snapshot
// published to MQTT, the same two counters the structured logger
// writes to stderr.
type TelemetryPayload struct {
	Timestamp        int64 `json:"timestamp"`
	SamplesPerSecond int   `json:"samplesPerSecond"`
	RawQueueSize     int   `json:"rawQueueSize"`
	FramesPerSecond  int   `json:"framesPerSecond"`
	DisplayQueueSize int   `json:"displayQueueSize"`
}

// MQTTTelemetryPublisher is an optional sink for the pipeline's own
// health counters, for operators who already have an MQTT broker
// wired into their monitoring rather than scraping Prometheus.
type MQTTTelemetryPublisher struct {
	client    mqtt.Client
	topic     string
	qos       byte
	rawQueue  *Queue[[]float32]
	dispQueue *Queue[[]float32]
	obs       Observer
}

func generateMqttClientID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "spectrumcore_" + hex.EncodeToString(buf)
}

// NewMQTTTelemetryPublisher connects to brokerURL and prepares to
// publish diagnostic counters under topicPrefix + "/telemetry".
func NewMQTTTelemetryPublisher(brokerURL, topicPrefix string, rawQueue, dispQueue *Queue[[]float32], obs Observer) (*MQTTTelemetryPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(generateMqttClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		Logger.Info("mqtt telemetry connected", "broker", brokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		Logger.Warn("mqtt telemetry connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt telemetry: connect to %s: %w", brokerURL, token.Error())
	}

	return &MQTTTelemetryPublisher{
		client:    client,
		topic:     topicPrefix + "/telemetry",
		qos:       0,
		rawQueue:  rawQueue,
		dispQueue: dispQueue,
		obs:       obs,
	}, nil
}

// Run publishes one TelemetryPayload per second until ctx is cancelled.
func (p *MQTTTelemetryPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

func (p *MQTTTelemetryPublisher) publishOnce() {
	payload := TelemetryPayload{
		Timestamp:        time.Now().Unix(),
		SamplesPerSecond: p.obs.CallsInLast(StageAcquirer, time.Second),
		RawQueueSize:     p.rawQueue.Size(),
		FramesPerSecond:  p.obs.CallsInLast(StageRenderer, time.Second),
		DisplayQueueSize: p.dispQueue.Size(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		Logger.Error("mqtt telemetry: marshal failed", "err", err)
		return
	}

	token := p.client.Publish(p.topic, p.qos, false, data)
	if token.Wait() && token.Error() != nil {
		Logger.Error("mqtt telemetry: publish failed", "topic", p.topic, "err", token.Error())
	}
}
