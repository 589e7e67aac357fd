package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}

	m := Multi(a, nil, b)
	m.Publish(Event{Type: EventTierChange, Message: "test"})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestNopAndLogSinksAcceptEvents(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Publish(Event{Type: EventTierChange})
		NewLogSink().Publish(Event{
			Type:    EventEmergencyThrottle,
			Message: "thermal emergency",
			Fields:  map[string]interface{}{"tier": "emergency"},
		})
		NewLogSink().Publish(Event{Type: EventSLAChange, Message: "level change"})
	})
}

func TestWebhookDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token", r.Header.Get("Authorization"))

		var e Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
	}))
	defer srv.Close()

	ws := NewWebhookSink(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "token"},
		Timeout: time.Second,
	})

	ws.Publish(Event{
		Type:      EventTierChange,
		Message:   "tier changed",
		Fields:    map[string]interface{}{"to": "balanced"},
		Timestamp: time.Now(),
	})

	select {
	case e := <-received:
		assert.Equal(t, EventTierChange, e.Type)
		assert.Equal(t, "tier changed", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}

	require.Eventually(t, ws.IsHealthy, time.Second, 10*time.Millisecond)
	assert.NoError(t, ws.LastError())
}

func TestWebhookTracksFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := NewWebhookSink(WebhookConfig{URL: srv.URL, Timeout: time.Second})
	ws.Publish(Event{Type: EventSLAChange, Message: "level change"})

	require.Eventually(t, func() bool {
		return !ws.IsHealthy()
	}, time.Second, 10*time.Millisecond)
	assert.Error(t, ws.LastError())
}

func TestWebhookRecoversHealth(t *testing.T) {
	var fail bool
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	ws := NewWebhookSink(WebhookConfig{URL: srv.URL, Timeout: time.Second})

	mu.Lock()
	fail = true
	mu.Unlock()
	ws.Publish(Event{Type: EventSLAWarning})
	require.Eventually(t, func() bool { return !ws.IsHealthy() }, time.Second, 10*time.Millisecond)

	mu.Lock()
	fail = false
	mu.Unlock()
	ws.Publish(Event{Type: EventSLAWarning})
	require.Eventually(t, ws.IsHealthy, time.Second, 10*time.Millisecond)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTier(2)
		m.ObserveEmergency()
		m.ObserveSLALevel(1)
		m.ObserveAchievement(0.95)
	})
}

func TestMetricsRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTier(3)
	m.ObserveEmergency()
	m.ObserveSLALevel(2)
	m.ObserveAchievement(0.9)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"adaptivegov_optimization_tier",
		"adaptivegov_tier_transitions_total",
		"adaptivegov_emergency_activations_total",
		"adaptivegov_sla_level",
		"adaptivegov_sla_rolling_achievement",
		"adaptivegov_sla_adjustments_total",
	} {
		assert.True(t, names[expected], "metric %s should be registered", expected)
	}
}
