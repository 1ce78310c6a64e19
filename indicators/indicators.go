package indicators

import "math"

// EMA calculates the exponential moving average series over src. The first
// value seeds the series; k = 2/(period+1).
func EMA(src []float64, period int) []float64 {
	if len(src) == 0 || period <= 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(src))
	out[0] = src[0]
	for i := 1; i < len(src); i++ {
		out[i] = src[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Tracker maintains one EMA incrementally. Seed once from a backfill of
// historical closes, then Append one value per new bar. The trailing value
// always equals recomputing EMA from scratch over the same inputs.
type Tracker struct {
	period int
	k      float64
	values []float64
}

// NewTracker creates a tracker for the given period.
func NewTracker(period int) *Tracker {
	return &Tracker{
		period: period,
		k:      2.0 / float64(period+1),
	}
}

// Seed initializes the series from a full history of closes. Calling Seed
// on a warm tracker restarts it.
func (t *Tracker) Seed(closes []float64) {
	t.values = EMA(closes, t.period)
}

// Append folds one new close into the series.
func (t *Tracker) Append(price float64) {
	if len(t.values) == 0 {
		t.values = []float64{price}
		return
	}
	last := t.values[len(t.values)-1]
	t.values = append(t.values, price*t.k+last*(1-t.k))
}

// Len returns the number of values consumed so far.
func (t *Tracker) Len() int { return len(t.values) }

// Last returns the most recent EMA value.
func (t *Tracker) Last() float64 {
	if len(t.values) == 0 {
		return 0
	}
	return t.values[len(t.values)-1]
}

// At returns the EMA value i bars back from the end (At(0) == Last).
func (t *Tracker) At(back int) float64 {
	idx := len(t.values) - 1 - back
	if idx < 0 {
		return 0
	}
	return t.values[idx]
}

// Values returns the underlying series. Callers must not mutate it.
func (t *Tracker) Values() []float64 { return t.values }

// SlopeAngle approximates the slope of the series end as an angle in
// degrees, treating one bar as one unit on the x axis:
// angle = atan((v[t] - v[t-lookback]) / lookback).
func SlopeAngle(values []float64, lookback int) float64 {
	if lookback <= 0 || len(values) < lookback+1 {
		return 0
	}
	recent := values[len(values)-1]
	past := values[len(values)-1-lookback]
	return math.Atan((recent-past)/float64(lookback)) * 180 / math.Pi
}

// AngleIsUp reports a strong upward slope: angle >= minDegrees.
func AngleIsUp(values []float64, lookback int, minDegrees float64) bool {
	if len(values) < lookback+1 {
		return false
	}
	return SlopeAngle(values, lookback) >= minDegrees
}

// AngleIsDown reports a strong downward slope: angle <= -minDegrees.
func AngleIsDown(values []float64, lookback int, minDegrees float64) bool {
	if len(values) < lookback+1 {
		return false
	}
	return SlopeAngle(values, lookback) <= -minDegrees
}
