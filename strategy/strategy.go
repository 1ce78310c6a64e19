package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ema-rejection/api"
	"ema-rejection/config"
	"ema-rejection/indicators"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/trade"
)

// Trader is the live polling engine. Every cycle it fetches recent bars,
// folds any newly closed bar into the EMA trackers, evaluates the entry
// policy on the last closed bar and monitors the open position.
type Trader struct {
	Gateway interfaces.Gateway
	Clock   interfaces.Clock
	Config  *config.Config
	Logger  logging.LoggerInterface
	Manager *trade.Manager
	Policy  *EntryPolicy
	Board   *models.StatusBoard
	Session *models.SessionState

	fast, slow  *indicators.Tracker
	lastBarSeen time.Time
}

// NewTrader wires a live engine from the shared components.
func NewTrader(gw interfaces.Gateway, clock interfaces.Clock, cfg *config.Config,
	logger logging.LoggerInterface, mgr *trade.Manager, board *models.StatusBoard,
	session *models.SessionState) *Trader {
	return &Trader{
		Gateway: gw,
		Clock:   clock,
		Config:  cfg,
		Logger:  logger,
		Manager: mgr,
		Policy:  NewEntryPolicy(cfg, logger),
		Board:   board,
		Session: session,
		fast:    indicators.NewTracker(cfg.FastPeriod),
		slow:    indicators.NewTracker(cfg.SlowPeriod),
	}
}

// Run polls until the context is cancelled. Individual cycle failures are
// logged and retried on the next poll; only a cancelled context stops the
// loop.
func (t *Trader) Run(ctx context.Context) error {
	loc, err := t.Config.Location()
	if err != nil {
		return fmt.Errorf("failed to load session timezone: %w", err)
	}
	t.Logger.Info("Live engine started: token=%d interval=%s poll=%ds",
		t.Config.UnderlyingToken, t.Config.Interval, t.Config.PollSeconds)

	for {
		select {
		case <-ctx.Done():
			t.Logger.Info("Live engine stopping: %v", ctx.Err())
			return ctx.Err()
		default:
		}

		now := t.Clock.Now().In(loc)
		if err := t.cycle(now); err != nil {
			t.Logger.Error("Cycle failed: %v", err)
		}
		t.Clock.Sleep(time.Duration(t.Config.PollSeconds) * time.Second)
	}
}

// cycle runs one poll iteration at the given wall-clock time.
func (t *Trader) cycle(now time.Time) error {
	t.rollDay(now)

	if t.Config.BeforeSessionOpen(now) {
		t.Logger.Debug("Before session open, idling")
		return nil
	}
	if t.Config.ForceExitDue(now) {
		return t.Manager.ForceSquareOffAll(now, models.StatusForceExit)
	}

	bars, err := t.closedBars(now)
	if err != nil {
		if errors.Is(err, api.ErrDataUnavailable) {
			t.Logger.Warning("Bar data unavailable, skipping cycle: %v", err)
			return nil
		}
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	t.updateTrackers(bars)
	if t.fast.Len() < t.Config.WarmupBars {
		t.Logger.Debug("Warming up: %d/%d bars", t.fast.Len(), t.Config.WarmupBars)
		return nil
	}

	last := bars[len(bars)-1]
	var prev models.Bar
	if len(bars) >= 2 {
		prev = bars[len(bars)-2]
	}
	t.publishIndicators(last)

	intent := t.Policy.Evaluate(last, prev, t.fast, t.slow,
		t.Session, t.Manager.HasOpenTrade(), now)
	t.publishSignal(last, intent)

	if intent != nil {
		if err := t.enter(intent, now); err != nil {
			switch {
			case errors.Is(err, trade.ErrInvalidGeometry):
				t.Logger.Warning("Skipping signal with invalid geometry: %v", err)
			case errors.Is(err, api.ErrOrderRejected):
				t.Logger.Error("Entry order rejected: %v", err)
			default:
				return err
			}
		}
	}

	return t.Manager.MonitorTrades(now)
}

// rollDay resets the per-day state when the calendar date changes. The EMA
// trackers restart so they reseed from fresh history.
func (t *Trader) rollDay(now time.Time) {
	if !t.Session.TradingDay.IsZero() && models.SameDay(t.Session.TradingDay, now) {
		return
	}
	t.Session.Roll(now)
	t.fast = indicators.NewTracker(t.Config.FastPeriod)
	t.slow = indicators.NewTracker(t.Config.SlowPeriod)
	t.lastBarSeen = time.Time{}
	t.Board.SetStopLossCount(0)
	t.Logger.Info("Trading day rolled to %s", now.Format("2006-01-02"))
}

// closedBars fetches recent bars and drops the still-forming one. A bar is
// closed once its full interval has elapsed on the clock.
func (t *Trader) closedBars(now time.Time) ([]models.Bar, error) {
	from := now.AddDate(0, 0, -4)
	bars, err := t.Gateway.GetBars(t.Config.UnderlyingToken, from, now, t.Config.Interval)
	if err != nil {
		return nil, err
	}
	for len(bars) > 0 {
		last := bars[len(bars)-1]
		if !last.Time.Add(t.Config.BarInterval()).After(now) {
			break
		}
		bars = bars[:len(bars)-1]
	}
	return bars, nil
}

// updateTrackers folds unseen bars into the EMA trackers. On the first call
// of a day the whole history seeds the trackers in one shot.
func (t *Trader) updateTrackers(bars []models.Bar) {
	if t.fast.Len() == 0 {
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		t.fast.Seed(closes)
		t.slow.Seed(closes)
		t.lastBarSeen = bars[len(bars)-1].Time
		return
	}
	for _, b := range bars {
		if !b.Time.After(t.lastBarSeen) {
			continue
		}
		t.fast.Append(b.Close)
		t.slow.Append(b.Close)
		t.lastBarSeen = b.Time
	}
}

// enter executes an entry intent on either the option leg or the underlying.
func (t *Trader) enter(intent *EntryIntent, now time.Time) error {
	if t.Config.OptionLeg {
		return t.enterOption(intent, now)
	}

	symbol := t.Config.FutSymbol
	if symbol == "" {
		symbol = t.Config.UnderlyingName
	}
	_, err := t.Manager.EnterTrade(symbol, t.Config.Quantity, intent.Direction,
		intent.Bar.Close, intent.StopLoss, now)
	return err
}

// enterOption buys the at-the-money option for the signal direction. The
// stop comes from the option's own trigger bar low and the target projects
// the reward multiple of that span above its close. The option position is
// always long; premium decay is capped by the session square-off.
func (t *Trader) enterOption(intent *EntryIntent, now time.Time) error {
	contract, err := t.Gateway.ResolveOptionContract(intent.Bar.Close, intent.Direction, now)
	if err != nil {
		return fmt.Errorf("failed to resolve option contract: %w", err)
	}

	optBars, err := t.Gateway.GetBars(contract.Token, now.AddDate(0, 0, -1), now, t.Config.Interval)
	if err != nil {
		return fmt.Errorf("failed to fetch option bars for %s: %w", contract.TradingSymbol, err)
	}
	if len(optBars) < 2 {
		return fmt.Errorf("%w: not enough option bars for %s", api.ErrDataUnavailable, contract.TradingSymbol)
	}
	trigger := optBars[len(optBars)-2]

	entry, err := t.Gateway.GetLastPrice(contract.TradingSymbol)
	if err != nil {
		return fmt.Errorf("failed to quote %s: %w", contract.TradingSymbol, err)
	}

	qty := t.Config.Quantity
	if contract.LotSize > 0 {
		qty = contract.LotSize
	}
	_, err = t.Manager.EnterTrade(contract.TradingSymbol, qty, models.Long, entry, trigger.Low, now)
	return err
}

func (t *Trader) publishIndicators(bar models.Bar) {
	trend := "FLAT"
	if t.Policy.TrendUp(t.fast.Values(), t.slow.Values()) {
		trend = "UP"
	} else if t.Policy.TrendDown(t.fast.Values(), t.slow.Values()) {
		trend = "DOWN"
	}
	t.Board.SetIndicators(models.IndicatorSnapshot{
		Time:    bar.Time,
		Close:   bar.Close,
		FastEMA: t.fast.Last(),
		SlowEMA: t.slow.Last(),
		Trend:   trend,
	})
}

func (t *Trader) publishSignal(bar models.Bar, intent *EntryIntent) {
	params := t.Policy.Params()
	snap := models.SignalSnapshot{
		BarTime: bar.Time,
		Close:   bar.Close,
		Bullish: IsBullishRejection(bar, t.fast.Last(), t.slow.Last(), params),
		Bearish: IsBearishRejection(bar, t.fast.Last(), t.slow.Last(), params),
	}
	if intent != nil {
		snap.Direction = intent.Direction
	}
	if t.Policy.TrendUp(t.fast.Values(), t.slow.Values()) {
		snap.Trend = "UP"
	} else if t.Policy.TrendDown(t.fast.Values(), t.slow.Values()) {
		snap.Trend = "DOWN"
	} else {
		snap.Trend = "FLAT"
	}
	t.Board.SetSignal(snap)
}
