package strategy

import (
	"time"

	"ema-rejection/config"
	"ema-rejection/indicators"
	"ema-rejection/logging"
	"ema-rejection/models"
)

// EntryIntent is the entry policy's output: direction, the bar that produced
// the signal, and the initial protective stop derived from it.
type EntryIntent struct {
	Direction string
	Bar       models.Bar
	StopLoss  float64
}

// EntryPolicy decides whether a closed bar becomes a trade. It gates, in
// order: entry cutoff, an already-open trade, the daily stop-loss cap, a bar
// already evaluated, and finally trend plus rejection pattern.
type EntryPolicy struct {
	Config *config.Config
	Logger logging.LoggerInterface
}

// NewEntryPolicy creates an entry policy over the shared configuration.
func NewEntryPolicy(cfg *config.Config, logger logging.LoggerInterface) *EntryPolicy {
	return &EntryPolicy{Config: cfg, Logger: logger}
}

// Params bundles the classifier thresholds from the configuration.
func (p *EntryPolicy) Params() RejectionParams {
	return RejectionParams{
		MinBodyPoints:      p.Config.MinBodyPoints,
		ProximityTolerance: p.Config.ProximityTolerance,
		ShortWickMax:       p.Config.ShortWickMax,
		LongWickMin:        p.Config.LongWickMin,
		MaxBodyWickRatio:   p.Config.MaxBodyWickRatio,
	}
}

// TrendUp reports whether the EMA pair confirms an uptrend at the end of the
// given series: the fast EMA slope clears the angle threshold, and when the
// strict gate is on the fast EMA must sit above the slow one by at least the
// configured separation.
func (p *EntryPolicy) TrendUp(fastVals, slowVals []float64) bool {
	if len(fastVals) == 0 || len(slowVals) == 0 {
		return false
	}
	if !indicators.AngleIsUp(fastVals, p.Config.AngleLookback, p.Config.AngleDegrees) {
		return false
	}
	fast := fastVals[len(fastVals)-1]
	slow := slowVals[len(slowVals)-1]
	if p.Config.StrictTrendGate && fast <= slow {
		return false
	}
	if p.Config.MinTrendSeparation > 0 && fast-slow < p.Config.MinTrendSeparation {
		return false
	}
	return true
}

// TrendDown is the mirror of TrendUp.
func (p *EntryPolicy) TrendDown(fastVals, slowVals []float64) bool {
	if len(fastVals) == 0 || len(slowVals) == 0 {
		return false
	}
	if !indicators.AngleIsDown(fastVals, p.Config.AngleLookback, p.Config.AngleDegrees) {
		return false
	}
	fast := fastVals[len(fastVals)-1]
	slow := slowVals[len(slowVals)-1]
	if p.Config.StrictTrendGate && fast >= slow {
		return false
	}
	if p.Config.MinTrendSeparation > 0 && slow-fast < p.Config.MinTrendSeparation {
		return false
	}
	return true
}

// Evaluate runs the gates against the most recent closed bar. prev is the bar
// before it, used only to widen the protective stop. Returns nil when no
// entry should be taken. A non-nil intent also marks the bar as consumed on
// the session state, so re-polling the same bar cannot double-enter.
func (p *EntryPolicy) Evaluate(
	bar, prev models.Bar,
	fast, slow *indicators.Tracker,
	session *models.SessionState,
	hasOpenTrade bool,
	now time.Time,
) *EntryIntent {
	if p.Config.AfterEntryCutoff(now) {
		return nil
	}
	if hasOpenTrade {
		return nil
	}
	if session.StopLossCount >= p.Config.MaxStopLossDay {
		p.Logger.Debug("Entry blocked: %d stop losses hit today", session.StopLossCount)
		return nil
	}
	if !bar.Time.After(session.LastBarTime) {
		return nil
	}
	session.LastBarTime = bar.Time

	if !bar.Valid() {
		p.Logger.Warning("Skipping malformed bar at %s", bar.Time.Format(time.RFC3339))
		return nil
	}

	params := p.Params()
	switch {
	case p.TrendUp(fast.Values(), slow.Values()) && IsBullishRejection(bar, fast.Last(), slow.Last(), params):
		return &EntryIntent{
			Direction: models.Long,
			Bar:       bar,
			StopLoss:  p.LongStop(bar, prev),
		}
	case p.TrendDown(fast.Values(), slow.Values()) && IsBearishRejection(bar, fast.Last(), slow.Last(), params):
		return &EntryIntent{
			Direction: models.Short,
			Bar:       bar,
			StopLoss:  p.ShortStop(bar, prev),
		}
	}
	return nil
}

// LongStop returns the protective stop for a long entry: the signal bar low,
// widened to the previous bar low when configured.
func (p *EntryPolicy) LongStop(bar, prev models.Bar) float64 {
	stop := bar.Low
	if p.Config.UsePrevBarStop && prev.Valid() && prev.Low < stop {
		stop = prev.Low
	}
	return stop
}

// ShortStop is the mirror of LongStop.
func (p *EntryPolicy) ShortStop(bar, prev models.Bar) float64 {
	stop := bar.High
	if p.Config.UsePrevBarStop && prev.Valid() && prev.High > stop {
		stop = prev.High
	}
	return stop
}
