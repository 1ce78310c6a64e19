package models

import (
	"fmt"
	"sync"
	"time"
)

// Trade directions.
const (
	Long  = "LONG"
	Short = "SHORT"
)

// Position statuses. OPEN is the only non-terminal one.
const (
	StatusOpen      = "OPEN"
	StatusTargetHit = "TARGET_HIT"
	StatusSLHit     = "SL_HIT"
	StatusForceExit = "FORCE_EXIT"
	StatusEODExit   = "EOD_EXIT"
)

// Bar is one OHLC observation for a fixed interval. Immutable once produced.
type Bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Body returns the absolute candle body size in points.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// IsGreen reports whether the bar closed above its open.
func (b Bar) IsGreen() bool {
	return b.Close > b.Open
}

// Valid checks basic OHLC geometry. A bar failing this is malformed and
// must not be fed to the classifier or the replay engine.
func (b Bar) Valid() bool {
	if b.Time.IsZero() {
		return false
	}
	if b.High < b.Low {
		return false
	}
	if b.Open > b.High || b.Open < b.Low {
		return false
	}
	if b.Close > b.High || b.Close < b.Low {
		return false
	}
	return true
}

// Signal is the instantaneous classification of one closed bar.
type Signal struct {
	Direction string // LONG, SHORT or ""
	BarTime   time.Time
	Close     float64
}

// Position is one trade from entry to terminal status. It is created by the
// entry policy, mutated only by the trade lifecycle, and becomes immutable
// once Status leaves OPEN.
type Position struct {
	ID        string
	Symbol    string
	Qty       int
	Direction string
	Entry     float64
	StopLoss  float64
	Target    float64
	EntryTime time.Time
	Status    string
}

// String implements fmt.Stringer for log lines.
func (p Position) String() string {
	return fmt.Sprintf("%s %s x%d entry=%.2f sl=%.2f target=%.2f status=%s",
		p.Direction, p.Symbol, p.Qty, p.Entry, p.StopLoss, p.Target, p.Status)
}

// TradeRecord is one row of the append-only trade journal.
type TradeRecord struct {
	ID        string
	Symbol    string
	Direction string
	Qty       int
	EntryTime time.Time
	ExitTime  time.Time
	Entry     float64
	StopLoss  float64
	Target    float64
	ExitPrice float64
	Outcome   string
	PnL       float64
}

// InstrumentInfo holds instrument metadata from the gateway.
type InstrumentInfo struct {
	Token         int
	TradingSymbol string
	Exchange      string
	LotSize       int
	TickSize      float64
	Expiry        time.Time
	Strike        float64
	Type          string // FUT, CE or PE
}

// SessionState carries the per-trading-day risk counters and the
// last-processed-bar marker. It is owned by a single engine instance and
// reset deterministically when the trading day changes.
type SessionState struct {
	TradingDay    time.Time
	StopLossCount int
	LastBarTime   time.Time
}

// Roll resets the counters when day falls on a different calendar date than
// the current trading day.
func (s *SessionState) Roll(day time.Time) {
	if !s.TradingDay.IsZero() && SameDay(s.TradingDay, day) {
		return
	}
	s.TradingDay = day
	s.StopLossCount = 0
	s.LastBarTime = time.Time{}
}

// SameDay reports whether two timestamps share a calendar date.
func SameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SignalSnapshot holds the latest evaluated signal for status reporting.
type SignalSnapshot struct {
	Direction string    `json:"direction"`
	BarTime   time.Time `json:"barTime"`
	Close     float64   `json:"close"`
	Bullish   bool      `json:"bullish"`
	Bearish   bool      `json:"bearish"`
	Trend     string    `json:"trend"`
}

// IndicatorSnapshot holds the latest indicator values for status reporting.
type IndicatorSnapshot struct {
	Time    time.Time `json:"time"`
	Close   float64   `json:"close"`
	FastEMA float64   `json:"fastEMA"`
	SlowEMA float64   `json:"slowEMA"`
	Trend   string    `json:"trend"`
}

// PositionSnapshot holds the last known open position for status reporting.
type PositionSnapshot struct {
	Symbol    string    `json:"symbol"`
	Direction string    `json:"direction"`
	Qty       int       `json:"qty"`
	Entry     float64   `json:"entry"`
	StopLoss  float64   `json:"stopLoss"`
	Target    float64   `json:"target"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusBoard is the mutex-protected snapshot store read by the status
// server. Engines write snapshots; the server only reads.
type StatusBoard struct {
	mu         sync.RWMutex
	signal     SignalSnapshot
	indicators IndicatorSnapshot
	position   PositionSnapshot
	slCount    int
}

// SetSignal stores the latest signal snapshot.
func (sb *StatusBoard) SetSignal(s SignalSnapshot) {
	sb.mu.Lock()
	sb.signal = s
	sb.mu.Unlock()
}

// SetIndicators stores the latest indicator snapshot.
func (sb *StatusBoard) SetIndicators(s IndicatorSnapshot) {
	sb.mu.Lock()
	sb.indicators = s
	sb.mu.Unlock()
}

// SetPosition stores the last known position snapshot.
func (sb *StatusBoard) SetPosition(p PositionSnapshot) {
	sb.mu.Lock()
	sb.position = p
	sb.mu.Unlock()
}

// SetStopLossCount stores the session stop-loss counter.
func (sb *StatusBoard) SetStopLossCount(n int) {
	sb.mu.Lock()
	sb.slCount = n
	sb.mu.Unlock()
}

// Snapshot returns a consistent copy of all snapshots.
func (sb *StatusBoard) Snapshot() (SignalSnapshot, IndicatorSnapshot, PositionSnapshot, int) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.signal, sb.indicators, sb.position, sb.slCount
}
