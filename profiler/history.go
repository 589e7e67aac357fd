package profiler

import (
	"math"
	"time"
)

// SignalHistory stores a bounded window of scalar telemetry samples and
// derives a trend from them.
type SignalHistory struct {
	timestamps []time.Time
	values     []float64
	maxSize    int
}

// NewSignalHistory creates a history keeping at most maxSize samples.
func NewSignalHistory(maxSize int) *SignalHistory {
	if maxSize < 1 {
		maxSize = 1
	}
	return &SignalHistory{
		timestamps: make([]time.Time, 0, maxSize),
		values:     make([]float64, 0, maxSize),
		maxSize:    maxSize,
	}
}

// Add appends a sample, dropping the oldest one when the window is full.
func (h *SignalHistory) Add(ts time.Time, value float64) {
	h.timestamps = append(h.timestamps, ts)
	h.values = append(h.values, value)

	if len(h.values) > h.maxSize {
		h.timestamps = h.timestamps[1:]
		h.values = h.values[1:]
	}
}

// Len returns the number of retained samples.
func (h *SignalHistory) Len() int {
	return len(h.values)
}

// Trend calculates the trend direction and slope over the retained window
// using a simple linear regression.
func (h *SignalHistory) Trend() (direction string, slope float64) {
	if len(h.values) < 2 {
		return "stable", 0.0
	}

	n := float64(len(h.values))
	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0

	for i, value := range h.values {
		x := float64(i)
		sumX += x
		sumY += value
		sumXY += x * value
		sumX2 += x * x
	}

	slope = (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)

	if math.Abs(slope) < 0.001 {
		direction = "stable"
	} else if slope > 0 {
		direction = "increasing"
	} else {
		direction = "decreasing"
	}

	return direction, slope
}
