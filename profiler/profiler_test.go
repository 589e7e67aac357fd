package profiler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu  sync.Mutex
	sig Signals
	err error
}

func (s *stubProvider) ReadSignals(ctx context.Context) (Signals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sig, s.err
}

func (s *stubProvider) set(sig Signals, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sig = sig
	s.err = err
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		memory   int64
		expected PerformanceClass
	}{
		{"high end", 3.0, 6_000_000_000, ClassHigh},
		{"fast cpu small memory", 3.0, 3_000_000_000, ClassMedium},
		{"mid range", 2.0, 3_000_000_000, ClassMedium},
		{"slow cpu", 1.2, 8_000_000_000, ClassLow},
		{"tiny memory", 3.0, 1_000_000_000, ClassLow},
		{"boundary speed not high", 2.5, 6_000_000_000, ClassMedium},
		{"boundary memory not medium", 2.0, 2_000_000_000, ClassLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DeviceProfile{SpeedClass: tt.speed, MemoryBytes: tt.memory}
			assert.Equal(t, tt.expected, p.Class())
		})
	}
}

func TestThrottled(t *testing.T) {
	tests := []struct {
		name      string
		profile   DeviceProfile
		throttled bool
	}{
		{"nominal", DeviceProfile{Thermal: ThermalNominal, BatteryLevel: 0.9}, false},
		{"fair thermal", DeviceProfile{Thermal: ThermalFair, BatteryLevel: 0.9}, false},
		{"serious thermal", DeviceProfile{Thermal: ThermalSerious, BatteryLevel: 0.9}, true},
		{"critical thermal", DeviceProfile{Thermal: ThermalCritical, BatteryLevel: 0.9}, true},
		{"low power mode", DeviceProfile{BatteryLevel: 0.9, LowPowerMode: true}, true},
		{"low battery", DeviceProfile{BatteryLevel: 0.15}, true},
		{"battery at threshold", DeviceProfile{BatteryLevel: 0.2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.throttled, tt.profile.Throttled())
		})
	}
}

func TestProfileFromSignals(t *testing.T) {
	prov := &stubProvider{sig: Signals{
		Model:        "test-device",
		SpeedClass:   3.0,
		MemoryBytes:  6_000_000_000,
		Thermal:      ThermalNominal,
		BatteryLevel: 0.9,
	}}
	pr := NewProfiler(prov)

	p, err := pr.ProfileChecked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-device", p.Model)
	assert.Equal(t, ClassHigh, p.Class())
	assert.False(t, p.Throttled())
	assert.False(t, p.CapturedAt.IsZero())

	last, ok := pr.Last()
	require.True(t, ok)
	assert.Equal(t, p, last)
}

func TestProfileClampsSignals(t *testing.T) {
	prov := &stubProvider{sig: Signals{
		SpeedClass:   -1.0,
		MemoryBytes:  -5,
		BatteryLevel: 1.4,
	}}
	pr := NewProfiler(prov)

	p := pr.Profile(context.Background())
	assert.Equal(t, "unknown", p.Model)
	assert.Equal(t, 0.0, p.SpeedClass)
	assert.Equal(t, int64(0), p.MemoryBytes)
	assert.Equal(t, 1.0, p.BatteryLevel)
}

func TestProfileFallsBackToDefault(t *testing.T) {
	prov := &stubProvider{err: errors.New("sensor unavailable")}
	pr := NewProfiler(prov)

	// No successful sample yet: conservative default, error reported.
	p, err := pr.ProfileChecked(context.Background())
	require.Error(t, err)
	assert.Equal(t, ClassLow, p.Class())
	assert.False(t, p.Throttled())

	_, ok := pr.Last()
	assert.False(t, ok)
}

func TestProfileFallsBackToLastKnown(t *testing.T) {
	prov := &stubProvider{sig: Signals{
		Model:        "test-device",
		SpeedClass:   2.0,
		MemoryBytes:  3_000_000_000,
		BatteryLevel: 0.8,
	}}
	pr := NewProfiler(prov)

	good := pr.Profile(context.Background())
	require.Equal(t, ClassMedium, good.Class())

	prov.set(Signals{}, errors.New("sensor flake"))

	p, err := pr.ProfileChecked(context.Background())
	require.Error(t, err)
	assert.Equal(t, good, p, "degraded read should return the last known profile")

	// Profile (unchecked) never surfaces the error.
	assert.Equal(t, good, pr.Profile(context.Background()))
}

func TestSignalHistoryBoundAndTrend(t *testing.T) {
	h := NewSignalHistory(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		h.Add(base.Add(time.Duration(i)*time.Second), float64(i))
	}
	assert.Equal(t, 3, h.Len())

	direction, slope := h.Trend()
	assert.Equal(t, "increasing", direction)
	assert.Greater(t, slope, 0.0)

	h2 := NewSignalHistory(10)
	for i := 0; i < 5; i++ {
		h2.Add(base.Add(time.Duration(i)*time.Second), 1.0-float64(i)*0.1)
	}
	direction, slope = h2.Trend()
	assert.Equal(t, "decreasing", direction)
	assert.Less(t, slope, 0.0)

	h3 := NewSignalHistory(10)
	h3.Add(base, 0.5)
	direction, _ = h3.Trend()
	assert.Equal(t, "stable", direction)
}

func TestBatteryTrend(t *testing.T) {
	prov := &stubProvider{}
	pr := NewProfiler(prov)

	for i := 0; i < 5; i++ {
		prov.set(Signals{
			SpeedClass:   2.0,
			MemoryBytes:  3_000_000_000,
			BatteryLevel: 0.9 - float64(i)*0.1,
		}, nil)
		pr.Profile(context.Background())
	}

	direction, _ := pr.BatteryTrend()
	assert.Equal(t, "decreasing", direction)
}
