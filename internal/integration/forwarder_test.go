package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmapper/kiosk-server/internal/config"
	"github.com/inmapper/kiosk-server/internal/models"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMQTT struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []published
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakeMQTT) Disconnect(uint) { f.connected = false }

type hookRecorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.requests = append(h.requests, r)
	h.bodies = append(h.bodies, body)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func eventPayload(t *testing.T, e models.Event) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return data
}

func TestForwardToWebhooks(t *testing.T) {
	all := &hookRecorder{}
	allSrv := httptest.NewServer(all)
	defer allSrv.Close()

	filtered := &hookRecorder{}
	filteredSrv := httptest.NewServer(filtered)
	defer filteredSrv.Close()

	s := NewForwarderService(nil, "", config.IntegrationsConfig{
		Webhooks: []config.WebhookConfig{
			{URL: allSrv.URL, Headers: map[string]string{"Authorization": "Bearer abc"}, Timeout: time.Second},
			{URL: filteredSrv.URL, Types: []string{string(models.EventTypeLandingPageCreated)}},
		},
	})

	data := eventPayload(t, models.Event{
		Type:       models.EventTypeDeviceRegistered,
		DeviceID:   "dev-1",
		OccurredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	s.forward(context.Background(), data)
	s.inflight.Wait()

	require.Len(t, all.requests, 1)
	req := all.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "device.registered", req.Header.Get("X-Kiosk-Event"))
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	assert.JSONEq(t, string(data), string(all.bodies[0]))

	assert.Empty(t, filtered.requests)
}

func TestForwardToHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewForwarderService(nil, "", config.IntegrationsConfig{})
	event := &models.Event{Type: models.EventTypeDeviceDeleted}

	err := s.forwardToHTTP(context.Background(), config.WebhookConfig{URL: srv.URL}, event, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestForwardToMQTT(t *testing.T) {
	client := &fakeMQTT{connected: true}
	s := NewForwarderService(nil, "", config.IntegrationsConfig{
		MQTT: config.MQTTConfig{
			BrokerURL:    "tcp://localhost:1883",
			TopicPattern: "fleet/{type}/{landing_page_id}",
			QoS:          1,
		},
	})
	s.mqtt = client

	data := eventPayload(t, models.Event{
		Type:          models.EventTypeLandingPageAssigned,
		LandingPageID: "page-1",
	})
	s.forward(context.Background(), data)
	s.inflight.Wait()

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "fleet/landing_page/assigned/page-1", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.Equal(t, data, msg.payload)
}

func TestForwardToMQTTFailures(t *testing.T) {
	s := NewForwarderService(nil, "", config.IntegrationsConfig{
		MQTT: config.MQTTConfig{TopicPattern: "kiosk/{type}"},
	})
	event := &models.Event{Type: models.EventTypeDeviceUpdated}

	assert.Error(t, s.forwardToMQTT(&fakeMQTT{connected: false}, event, []byte(`{}`)))

	err := s.forwardToMQTT(&fakeMQTT{connected: true, err: errors.New("not authorized")}, event, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kiosk/device/updated")
}

func TestForwardIgnoresMalformedPayload(t *testing.T) {
	rec := &hookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := NewForwarderService(nil, "", config.IntegrationsConfig{
		Webhooks: []config.WebhookConfig{{URL: srv.URL}},
	})
	s.forward(context.Background(), []byte("not json"))
	s.inflight.Wait()

	assert.Empty(t, rec.requests)
}

func TestExpandTopic(t *testing.T) {
	event := &models.Event{Type: models.EventTypeDeviceRegistered, DeviceID: "dev-1"}

	assert.Equal(t, "kiosk/device/registered", expandTopic("kiosk/{type}", event))
	assert.Equal(t, "devices/dev-1/-", expandTopic("devices/{device_id}/{landing_page_id}", event))
}

func TestStopWaitsForDeliveriesAndDropsLateEvents(t *testing.T) {
	release := make(chan struct{})
	rec := &hookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		rec.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := &fakeMQTT{connected: true}
	s := NewForwarderService(nil, "", config.IntegrationsConfig{
		Webhooks: []config.WebhookConfig{{URL: srv.URL, Timeout: 5 * time.Second}},
		MQTT:     config.MQTTConfig{TopicPattern: "kiosk/{type}"},
	})
	s.mqtt = client

	data := eventPayload(t, models.Event{Type: models.EventTypeDeviceUpdated, DeviceID: "dev-1"})
	s.forward(context.Background(), data)

	stopped := make(chan struct{})
	go func() {
		s.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned before the webhook delivery finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}

	assert.Len(t, rec.requests, 1)
	assert.Len(t, client.messages, 1)
	assert.False(t, client.connected)
	assert.Nil(t, s.mqtt)

	// Callbacks still queued after the subscription drained are dropped
	s.forward(context.Background(), data)
	s.inflight.Wait()
	assert.Len(t, rec.requests, 1)
	assert.Len(t, client.messages, 1)
}
