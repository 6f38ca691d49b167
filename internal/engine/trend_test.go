package engine

import (
	"math"
	"testing"

	"github.com/amiyaDev/perfguard/internal/rules"
)

func TestSlope(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single value", []float64{5}, 0},
		{"flat", []float64{3, 3, 3, 3}, 0},
		{"rising by two", []float64{10, 12, 14, 16, 18}, 2},
		{"falling by one", []float64{5, 4, 3, 2, 1}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slope(tt.values)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Slope(%v) = %v, want %v", tt.values, got, tt.expected)
			}
		})
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	if got := Mean([]float64{1, 2, 3, 6}); got != 3 {
		t.Errorf("Mean() = %v, want 3", got)
	}
}

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name              string
		values            []float64
		expectedDirection rules.Direction
		expectedChange    float64
	}{
		{
			name:              "too short",
			values:            []float64{1, 2, 3, 4},
			expectedDirection: rules.DirectionStable,
		},
		{
			name:              "zero mean",
			values:            []float64{0, 0, 0, 0, 0},
			expectedDirection: rules.DirectionStable,
		},
		{
			name:              "flat",
			values:            []float64{7, 7, 7, 7, 7},
			expectedDirection: rules.DirectionStable,
		},
		{
			name:              "increasing",
			values:            []float64{10, 12, 14, 16, 18},
			expectedDirection: rules.DirectionIncreasing,
			expectedChange:    2.0 * 5 / 14 * 100,
		},
		{
			name:              "decreasing",
			values:            []float64{18, 16, 14, 12, 10},
			expectedDirection: rules.DirectionDecreasing,
			expectedChange:    2.0 * 5 / 14 * 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTrend(tt.values)
			if got.Direction != tt.expectedDirection {
				t.Errorf("expected direction %s, got %s", tt.expectedDirection, got.Direction)
			}
			if math.Abs(got.Change-tt.expectedChange) > 1e-9 {
				t.Errorf("expected change %v, got %v", tt.expectedChange, got.Change)
			}
		})
	}
}
