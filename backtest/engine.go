package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ema-rejection/config"
	"ema-rejection/indicators"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/strategy"
	"ema-rejection/tradelog"
)

// maxMalformedPerDay caps how many bad bars a session may contain before its
// remaining bars are considered untrustworthy and skipped for entries.
const maxMalformedPerDay = 5

// Engine replays historical bars through the same classifier, trend gates
// and lifecycle rules as the live engine. Trades are simulated bar by bar
// against highs and lows, never on information from the future.
type Engine struct {
	Gateway       interfaces.Gateway
	Config        *config.Config
	Logger        logging.LoggerInterface
	Policy        *strategy.EntryPolicy
	Journal       *tradelog.Journal
	OptionJournal *tradelog.Journal
}

// Result aggregates one replay run.
type Result struct {
	Bars         int
	Trades       tradelog.Summary
	OptionTrades tradelog.Summary
}

// exit is the outcome of one simulated forward scan.
type exit struct {
	price   float64
	status  string
	barIdx  int
	barTime time.Time
}

// New wires a replay engine.
func New(gw interfaces.Gateway, cfg *config.Config, logger logging.LoggerInterface,
	journal, optionJournal *tradelog.Journal) *Engine {
	return &Engine{
		Gateway:       gw,
		Config:        cfg,
		Logger:        logger,
		Policy:        strategy.NewEntryPolicy(cfg, logger),
		Journal:       journal,
		OptionJournal: optionJournal,
	}
}

// Run replays the window [from, to]. The first WarmupBars bars only seed the
// EMAs; entries start after them.
func (e *Engine) Run(from, to time.Time) (*Result, error) {
	bars, err := e.Gateway.GetBars(e.Config.UnderlyingToken, from, to, e.Config.Interval)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replay bars: %w", err)
	}
	bars = e.filterMalformed(bars)
	if len(bars) <= e.Config.WarmupBars {
		return nil, fmt.Errorf("not enough bars to replay: have %d, need more than %d warm-up bars",
			len(bars), e.Config.WarmupBars)
	}
	e.Logger.Info("Replaying %d bars from %s to %s",
		len(bars), bars[0].Time.Format("2006-01-02"), bars[len(bars)-1].Time.Format("2006-01-02"))

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	fastSeries := indicators.EMA(closes, e.Config.FastPeriod)
	slowSeries := indicators.EMA(closes, e.Config.SlowPeriod)

	params := e.Policy.Params()
	var (
		day         time.Time
		slCount     int
		activeUntil = -1
	)

	for i := e.Config.WarmupBars; i < len(bars); i++ {
		bar := bars[i]
		if day.IsZero() || !models.SameDay(day, bar.Time) {
			day = bar.Time
			slCount = 0
		}
		if i <= activeUntil {
			continue
		}
		if slCount >= e.Config.MaxStopLossDay {
			continue
		}
		if e.Config.AfterEntryCutoff(bar.Time) {
			continue
		}

		fastVals := fastSeries[:i+1]
		slowVals := slowSeries[:i+1]

		var direction string
		switch {
		case e.Policy.TrendUp(fastVals, slowVals) &&
			strategy.IsBullishRejection(bar, fastSeries[i], slowSeries[i], params):
			direction = models.Long
		case e.Policy.TrendDown(fastVals, slowVals) &&
			strategy.IsBearishRejection(bar, fastSeries[i], slowSeries[i], params):
			direction = models.Short
		default:
			continue
		}

		entry := bar.Close
		stop := e.Policy.LongStop(bar, bars[i-1])
		risk := entry - stop
		if direction == models.Short {
			stop = e.Policy.ShortStop(bar, bars[i-1])
			risk = stop - entry
		}
		if risk <= 0 {
			e.Logger.Warning("Skipping %s signal at %s: invalid geometry entry=%.2f stop=%.2f",
				direction, bar.Time.Format(time.RFC3339), entry, stop)
			continue
		}
		target := entry + e.Config.RewardMultiple*risk
		if direction == models.Short {
			target = entry - e.Config.RewardMultiple*risk
		}

		ex := e.scanForward(bars, i, direction, stop, target)
		e.record(e.Journal, e.underlyingSymbol(), e.Config.Quantity, direction,
			bar.Time, entry, stop, target, ex)
		if ex.status == models.StatusSLHit {
			slCount++
		}
		activeUntil = ex.barIdx

		if e.Config.OptionLeg {
			e.simulateOptionLeg(bar, direction)
		}
	}

	result := &Result{
		Bars:         len(bars),
		Trades:       e.Journal.Summarize(),
		OptionTrades: e.OptionJournal.Summarize(),
	}
	e.Logger.Info("Replay finished: index %s", result.Trades)
	if e.Config.OptionLeg {
		e.Logger.Info("Replay finished: options %s", result.OptionTrades)
	}
	return result, nil
}

func (e *Engine) underlyingSymbol() string {
	if e.Config.FutSymbol != "" {
		return e.Config.FutSymbol
	}
	return e.Config.UnderlyingName
}

// filterMalformed drops bars with broken OHLC geometry. A session producing
// too many of them stops contributing bars entirely.
func (e *Engine) filterMalformed(bars []models.Bar) []models.Bar {
	out := bars[:0:0]
	var (
		day     time.Time
		badBars int
	)
	for _, b := range bars {
		if day.IsZero() || !models.SameDay(day, b.Time) {
			day = b.Time
			badBars = 0
		}
		if badBars > maxMalformedPerDay {
			continue
		}
		if !b.Valid() {
			badBars++
			e.Logger.Warning("Dropping malformed bar at %s (%d bad this session)",
				b.Time.Format(time.RFC3339), badBars)
			if badBars > maxMalformedPerDay {
				e.Logger.Error("Session %s exceeded malformed bar tolerance, ignoring its remaining bars",
					day.Format("2006-01-02"))
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// scanForward walks bars after the signal until the trade resolves. The
// target is checked before the stop on the same bar. Leaving the signal's
// calendar day exits at the previous bar close; running out of bars exits at
// the last bar close.
func (e *Engine) scanForward(bars []models.Bar, signalIdx int, direction string, stop, target float64) exit {
	signalDay := bars[signalIdx].Time
	last := signalIdx

	for j := signalIdx + 1; j < len(bars); j++ {
		b := bars[j]
		if !models.SameDay(signalDay, b.Time) {
			return exit{price: bars[last].Close, status: models.StatusEODExit, barIdx: last, barTime: bars[last].Time}
		}
		if e.Config.ForceExitDue(b.Time) {
			return exit{price: b.Close, status: models.StatusForceExit, barIdx: j, barTime: b.Time}
		}
		if direction == models.Long {
			if b.High >= target {
				return exit{price: target, status: models.StatusTargetHit, barIdx: j, barTime: b.Time}
			}
			if b.Low <= stop {
				return exit{price: stop, status: models.StatusSLHit, barIdx: j, barTime: b.Time}
			}
		} else {
			if b.Low <= target {
				return exit{price: target, status: models.StatusTargetHit, barIdx: j, barTime: b.Time}
			}
			if b.High >= stop {
				return exit{price: stop, status: models.StatusSLHit, barIdx: j, barTime: b.Time}
			}
		}
		last = j
	}
	return exit{price: bars[last].Close, status: models.StatusEODExit, barIdx: last, barTime: bars[last].Time}
}

func (e *Engine) record(journal *tradelog.Journal, symbol string, qty int, direction string,
	entryTime time.Time, entry, stop, target float64, ex exit) {
	pnl := (ex.price - entry) * float64(qty)
	if direction == models.Short {
		pnl = (entry - ex.price) * float64(qty)
	}
	rec := models.TradeRecord{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Direction: direction,
		Qty:       qty,
		EntryTime: entryTime,
		ExitTime:  ex.barTime,
		Entry:     entry,
		StopLoss:  stop,
		Target:    target,
		ExitPrice: ex.price,
		Outcome:   ex.status,
		PnL:       pnl,
	}
	if err := journal.Append(rec); err != nil {
		e.Logger.Error("Failed to journal replay trade: %v", err)
	}
	e.Logger.Debug("Replay trade: %s %s entry=%.2f exit=%.2f (%s) pnl=%.2f",
		direction, symbol, entry, ex.price, ex.status, pnl)
}

// simulateOptionLeg replays the same signal on the at-the-money option. The
// option is always bought: CE for longs, PE for shorts. Entry is the first
// option bar close at or after the signal, the stop its low, and the target
// the reward multiple of that span above the close. Failures here only skip
// the leg; the index replay continues.
func (e *Engine) simulateOptionLeg(signal models.Bar, direction string) {
	contract, err := e.Gateway.ResolveOptionContract(signal.Close, direction, signal.Time)
	if err != nil {
		e.Logger.Warning("Option leg skipped at %s: %v", signal.Time.Format(time.RFC3339), err)
		return
	}

	until := signal.Time.Add(time.Duration(e.Config.OptionScanHours) * time.Hour)
	optBars, err := e.Gateway.GetBars(contract.Token, signal.Time, until, e.Config.Interval)
	if err != nil {
		e.Logger.Warning("Option leg skipped for %s: %v", contract.TradingSymbol, err)
		return
	}
	optBars = e.filterMalformed(optBars)

	trimmed := optBars[:0:0]
	for _, b := range optBars {
		if !b.Time.Before(signal.Time) {
			trimmed = append(trimmed, b)
		}
	}
	if len(trimmed) == 0 {
		e.Logger.Warning("No option bars for %s at %s", contract.TradingSymbol, signal.Time.Format(time.RFC3339))
		return
	}

	first := trimmed[0]
	entry := first.Close
	stop := first.Low
	risk := entry - stop
	if risk <= 0 {
		e.Logger.Warning("Option leg skipped for %s: invalid geometry entry=%.2f stop=%.2f",
			contract.TradingSymbol, entry, stop)
		return
	}
	target := entry + e.Config.RewardMultiple*risk

	qty := e.Config.Quantity
	if contract.LotSize > 0 {
		qty = contract.LotSize
	}

	ex := e.scanForward(trimmed, 0, models.Long, stop, target)
	e.record(e.OptionJournal, contract.TradingSymbol, qty, models.Long,
		first.Time, entry, stop, target, ex)
}
