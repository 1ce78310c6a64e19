package trade

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ema-rejection/api"
	"ema-rejection/config"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/tradelog"
)

// ErrInvalidGeometry means the entry and stop prices produce zero or
// negative risk, so no target can be computed. The signal is skipped.
var ErrInvalidGeometry = errors.New("invalid trade geometry")

// Manager owns the one open position and its lifecycle: entry, monitoring
// against target and stop, and the forced square-off at session end. At most
// one position is open at a time.
type Manager struct {
	Gateway interfaces.Gateway
	Config  *config.Config
	Logger  logging.LoggerInterface
	Journal *tradelog.Journal
	Board   *models.StatusBoard
	Session *models.SessionState

	mu       sync.Mutex
	position *models.Position
}

// NewManager creates a trade manager.
func NewManager(gw interfaces.Gateway, cfg *config.Config, logger logging.LoggerInterface,
	journal *tradelog.Journal, board *models.StatusBoard, session *models.SessionState) *Manager {
	return &Manager{
		Gateway: gw,
		Config:  cfg,
		Logger:  logger,
		Journal: journal,
		Board:   board,
		Session: session,
	}
}

// HasOpenTrade reports whether a position is currently open.
func (m *Manager) HasOpenTrade() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position != nil
}

// Open returns a copy of the open position, or nil.
func (m *Manager) Open() *models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == nil {
		return nil
	}
	cp := *m.position
	return &cp
}

// EnterTrade places the entry order and registers the position. Risk is the
// distance from entry to stop; the target sits the configured reward
// multiple beyond the entry. A rejected order leaves no position behind.
func (m *Manager) EnterTrade(symbol string, qty int, direction string, entry, stop float64, now time.Time) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position != nil {
		return nil, fmt.Errorf("position %s already open", m.position.ID)
	}

	var risk float64
	side := "BUY"
	if direction == models.Long {
		risk = entry - stop
	} else {
		risk = stop - entry
		side = "SELL"
	}
	if risk <= 0 {
		return nil, fmt.Errorf("%w: entry=%.2f stop=%.2f", ErrInvalidGeometry, entry, stop)
	}

	target := entry + m.Config.RewardMultiple*risk
	if direction == models.Short {
		target = entry - m.Config.RewardMultiple*risk
	}

	if _, err := m.Gateway.SubmitOrder(symbol, qty, side); err != nil {
		return nil, fmt.Errorf("entry order for %s failed: %w", symbol, err)
	}

	m.position = &models.Position{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Qty:       qty,
		Direction: direction,
		Entry:     entry,
		StopLoss:  stop,
		Target:    target,
		EntryTime: now,
		Status:    models.StatusOpen,
	}
	m.Logger.Info("Entered trade: %s", m.position)
	m.publish(now)
	cp := *m.position
	return &cp, nil
}

// MonitorTrades checks the open position against its target and stop using
// the last traded price. The target is checked before the stop. A missing
// quote skips the cycle.
func (m *Manager) MonitorTrades(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return nil
	}

	price, err := m.Gateway.GetLastPrice(m.position.Symbol)
	if err != nil {
		if errors.Is(err, api.ErrQuoteUnavailable) {
			m.Logger.Warning("Quote unavailable for %s, skipping monitor cycle: %v", m.position.Symbol, err)
			return nil
		}
		return fmt.Errorf("monitor failed for %s: %w", m.position.Symbol, err)
	}

	p := m.position
	switch p.Direction {
	case models.Long:
		if price >= p.Target {
			return m.closeLocked(price, models.StatusTargetHit, now)
		}
		if price <= p.StopLoss {
			return m.closeLocked(price, models.StatusSLHit, now)
		}
	case models.Short:
		if price <= p.Target {
			return m.closeLocked(price, models.StatusTargetHit, now)
		}
		if price >= p.StopLoss {
			return m.closeLocked(price, models.StatusSLHit, now)
		}
	}
	return nil
}

// ForceSquareOffAll exits the open position, if any, at the last traded
// price with the given terminal status.
func (m *Manager) ForceSquareOffAll(now time.Time, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return nil
	}
	price, err := m.Gateway.GetLastPrice(m.position.Symbol)
	if err != nil {
		m.Logger.Warning("Quote unavailable for square-off of %s, exiting at entry price: %v",
			m.position.Symbol, err)
		price = m.position.Entry
	}
	return m.closeLocked(price, status, now)
}

// closeLocked exits the position at price with the given status. Caller
// holds the lock. The exit order must succeed before the position is
// released; a failed order leaves it open for the next cycle.
func (m *Manager) closeLocked(price float64, status string, now time.Time) error {
	p := m.position

	side := "SELL"
	if p.Direction == models.Short {
		side = "BUY"
	}
	if _, err := m.Gateway.SubmitOrder(p.Symbol, p.Qty, side); err != nil {
		return fmt.Errorf("exit order for %s failed: %w", p.Symbol, err)
	}

	pnl := (price - p.Entry) * float64(p.Qty)
	if p.Direction == models.Short {
		pnl = (p.Entry - price) * float64(p.Qty)
	}

	p.Status = status
	rec := models.TradeRecord{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Direction: p.Direction,
		Qty:       p.Qty,
		EntryTime: p.EntryTime,
		ExitTime:  now,
		Entry:     p.Entry,
		StopLoss:  p.StopLoss,
		Target:    p.Target,
		ExitPrice: price,
		Outcome:   status,
		PnL:       pnl,
	}
	if err := m.Journal.Append(rec); err != nil {
		m.Logger.Error("Failed to journal trade %s: %v", p.ID, err)
	}

	if status == models.StatusSLHit {
		m.Session.StopLossCount++
		m.Board.SetStopLossCount(m.Session.StopLossCount)
	}

	m.Logger.Info("Closed trade %s at %.2f (%s) pnl=%.2f", p.ID, price, status, pnl)
	m.position = nil
	m.publish(now)
	return nil
}

// publish pushes the current position state onto the status board. Caller
// holds the lock.
func (m *Manager) publish(now time.Time) {
	snap := models.PositionSnapshot{UpdatedAt: now}
	if m.position != nil {
		snap = models.PositionSnapshot{
			Symbol:    m.position.Symbol,
			Direction: m.position.Direction,
			Qty:       m.position.Qty,
			Entry:     m.position.Entry,
			StopLoss:  m.position.StopLoss,
			Target:    m.position.Target,
			UpdatedAt: now,
		}
	}
	m.Board.SetPosition(snap)
}
