package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/inmapper/kiosk-server/internal/config"
	"github.com/inmapper/kiosk-server/internal/events"
	"github.com/inmapper/kiosk-server/internal/models"
)

const mqttPublishTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the forwarder uses
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// ForwarderService copies published kiosk events to external webhooks and
// an MQTT broker
type ForwarderService struct {
	nc     *nats.Conn
	prefix string
	cfg    config.IntegrationsConfig

	mqtt       mqttClient
	httpClient *http.Client

	// mu guards mqtt and closed; inflight.Add only happens under it
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewForwarderService creates the forwarder; Start connects MQTT and subscribes
func NewForwarderService(nc *nats.Conn, prefix string, cfg config.IntegrationsConfig) *ForwarderService {
	if prefix == "" {
		prefix = events.DefaultSubjectPrefix
	}
	return &ForwarderService{
		nc:         nc,
		prefix:     prefix,
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Start subscribes to <prefix>.> and blocks until ctx is done
func (s *ForwarderService) Start(ctx context.Context) error {
	if s.cfg.MQTT.BrokerURL != "" {
		client, err := connectMQTT(s.cfg.MQTT)
		if err != nil {
			// Webhooks still run without the broker
			log.Error().Err(err).Str("broker", s.cfg.MQTT.BrokerURL).Msg("Failed to connect MQTT client")
		} else {
			s.mqtt = client
		}
	}

	sub, err := s.nc.Subscribe(s.prefix+".>", s.handleEvent)
	if err != nil {
		s.stop()
		return fmt.Errorf("subscribe kiosk events: %w", err)
	}

	log.Info().
		Int("webhooks", len(s.cfg.Webhooks)).
		Bool("mqtt", s.mqtt != nil).
		Msg("Integration forwarder service started")

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		log.Warn().Err(err).Msg("Failed to drain forwarder subscription")
	}
	s.stop()

	return ctx.Err()
}

// stop rejects further events, waits for deliveries in flight and closes MQTT
func (s *ForwarderService) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()
	s.closeMQTT()
}

func (s *ForwarderService) handleEvent(msg *nats.Msg) {
	s.forward(context.Background(), msg.Data)
}

// forward fans one event payload out to every matching target
func (s *ForwarderService) forward(ctx context.Context, data []byte) {
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Error().Err(err).Msg("Failed to parse kiosk event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		log.Debug().Str("type", string(event.Type)).Msg("Forwarder stopped, event dropped")
		return
	}

	for _, hook := range s.cfg.Webhooks {
		if !wantsEvent(hook.Types, event.Type) {
			continue
		}
		hook := hook
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			if err := s.forwardToHTTP(ctx, hook, &event, data); err != nil {
				log.Error().
					Err(err).
					Str("endpoint", hook.URL).
					Str("type", string(event.Type)).
					Msg("Failed to forward event to HTTP")
			}
		}()
	}

	if client := s.mqtt; client != nil {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			if err := s.forwardToMQTT(client, &event, data); err != nil {
				log.Error().
					Err(err).
					Str("type", string(event.Type)).
					Msg("Failed to forward event to MQTT")
			}
		}()
	}
}

// forwardToHTTP POSTs the event payload to hook
func (s *ForwarderService) forwardToHTTP(ctx context.Context, hook config.WebhookConfig, event *models.Event, data []byte) error {
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Kiosk-Event", string(event.Type))
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	log.Debug().
		Str("endpoint", hook.URL).
		Str("type", string(event.Type)).
		Int("status", resp.StatusCode).
		Msg("Event forwarded to HTTP")
	return nil
}

// forwardToMQTT republishes the event payload on the configured topic
func (s *ForwarderService) forwardToMQTT(client mqttClient, event *models.Event, data []byte) error {
	if !client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := expandTopic(s.cfg.MQTT.TopicPattern, event)
	token := client.Publish(topic, s.cfg.MQTT.QoS, false, data)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	log.Debug().
		Str("topic", topic).
		Str("type", string(event.Type)).
		Msg("Event forwarded to MQTT")
	return nil
}

func (s *ForwarderService) closeMQTT() {
	s.mu.Lock()
	client := s.mqtt
	s.mqtt = nil
	s.mu.Unlock()

	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Disconnect(250)
	}
	log.Info().Msg("MQTT client disconnected")
}

// connectMQTT dials the broker, retrying in the background after the first attempt
func connectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", cfg.BrokerURL).Msg("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Str("broker", cfg.BrokerURL).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// expandTopic fills {type}, {device_id} and {landing_page_id} in pattern.
// Dots in the event type become topic levels.
func expandTopic(pattern string, event *models.Event) string {
	return strings.NewReplacer(
		"{type}", strings.ReplaceAll(string(event.Type), ".", "/"),
		"{device_id}", orDash(event.DeviceID),
		"{landing_page_id}", orDash(event.LandingPageID),
	).Replace(pattern)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func wantsEvent(types []string, t models.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == string(t) {
			return true
		}
	}
	return false
}
