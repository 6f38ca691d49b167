package engine

import (
	"math"

	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// Slope fits an ordinary least-squares line of values against their index
// and returns its slope.
// slope = (n*Σxy - Σx*Σy) / (n*Σx² - (Σx)²)
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Mean returns the arithmetic mean, 0 for an empty series
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// DetectTrend classifies the direction of a series and its percentage change
// change = |slope * n / mean * 100|
// Series shorter than MinTrendHistory, or with a zero mean, are stable.
func DetectTrend(values []float64) TrendResult {
	stable := TrendResult{Direction: rules.DirectionStable}
	if len(values) < MinTrendHistory {
		return stable
	}

	mean := Mean(values)
	if mean == 0 {
		return stable
	}

	slope := Slope(values)
	pct := slope * float64(len(values)) / mean * 100

	result := TrendResult{Direction: rules.DirectionStable, Change: math.Abs(pct)}
	switch {
	case slope > 0:
		result.Direction = rules.DirectionIncreasing
	case slope < 0:
		result.Direction = rules.DirectionDecreasing
	}
	return result
}

// fieldSeries extracts a field from each snapshot. ok is false when any
// snapshot lacks the field.
func fieldSeries(snaps []model.Snapshot, field rules.Field) ([]float64, bool) {
	values := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		v, ok := s.Value(field)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}
