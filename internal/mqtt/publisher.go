package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"riverdash/internal/config"
	"riverdash/internal/logging"
	"riverdash/internal/modules/indoor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Telemetry is the JSON payload published for each logged indoor reading.
type Telemetry struct {
	StationID     string    `json:"station_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature_f"`
	Humidity      float64   `json:"humidity_pct"`
	Pressure      float64   `json:"pressure_inhg"`
	GasResistance *float64  `json:"gas_resistance_ohm,omitempty"`
	PM1           float64   `json:"pm1"`
	PM25          float64   `json:"pm25"`
	PM10          float64   `json:"pm10"`
	Sequence      int64     `json:"sequence"`
}

// Topic returns the telemetry topic for a station.
func Topic(stationID string) string {
	return fmt.Sprintf("stations/%s/telemetry", stationID)
}

type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	seq       atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, cfg config.Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: logging.Component(logger, "mqtt"),
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// PublishReading sends r to the configured station topic at QoS 1.
func (p *Publisher) PublishReading(r indoor.Reading) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	stationID := p.cfg.MQTTStationID
	topic := Topic(stationID)
	data, err := json.Marshal(newTelemetry(stationID, r, p.seq.Add(1)))
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	p.logger.Debug("published telemetry", "topic", topic, "station_id", stationID)
	return nil
}

func newTelemetry(stationID string, r indoor.Reading, seq int64) Telemetry {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Telemetry{
		StationID:     stationID,
		Timestamp:     ts.UTC(),
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		Pressure:      r.Pressure,
		GasResistance: r.GasResistance,
		PM1:           r.PM1,
		PM25:          r.PM25,
		PM10:          r.PM10,
		Sequence:      seq,
	}
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns an error.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
