package strategy

import (
	"fmt"
	"testing"
	"time"

	"ema-rejection/config"
	"ema-rejection/indicators"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/trade"
	"ema-rejection/tradelog"
)

type fakeGateway struct {
	barsByToken map[int][]models.Bar
	lastPrice   float64
	contract    *models.InstrumentInfo
	orders      []string
}

func (f *fakeGateway) GetBars(token int, _, _ time.Time, _ string) ([]models.Bar, error) {
	return f.barsByToken[token], nil
}

func (f *fakeGateway) GetLastPrice(string) (float64, error) {
	return f.lastPrice, nil
}

func (f *fakeGateway) SubmitOrder(symbol string, qty int, side string) (string, error) {
	f.orders = append(f.orders, fmt.Sprintf("%s %s x%d", side, symbol, qty))
	return fmt.Sprintf("order-%d", len(f.orders)), nil
}

func (f *fakeGateway) ResolveOptionContract(float64, string, time.Time) (*models.InstrumentInfo, error) {
	return f.contract, nil
}

func traderConfig() *config.Config {
	cfg := testConfig()
	cfg.UnderlyingToken = 1
	cfg.UnderlyingName = "NIFTY"
	cfg.Interval = "5minute"
	cfg.BarMinutes = 5
	cfg.Quantity = 75
	cfg.FastPeriod = 2
	cfg.SlowPeriod = 3
	cfg.AngleLookback = 2
	cfg.MinTrendSeparation = 0
	cfg.WarmupBars = 5
	cfg.PollSeconds = 1
	return cfg
}

func newTestTrader(cfg *config.Config, gw *fakeGateway) *Trader {
	session := &models.SessionState{}
	board := &models.StatusBoard{}
	manager := trade.NewManager(gw, cfg, logging.Nop{}, tradelog.NewMemoryJournal(), board, session)
	return NewTrader(gw, interfaces.SystemClock{}, cfg, logging.Nop{}, manager, board, session)
}

// rampBars builds a rising series of plain bars ending in a bullish body
// rejection bar solved against the fast EMA recurrence.
func rampBars(cfg *config.Config, start time.Time, total int) []models.Bar {
	closes := make([]float64, 0, total)
	bars := make([]models.Bar, 0, total)
	for i := 0; i < total; i++ {
		at := start.Add(time.Duration(i) * 5 * time.Minute)
		c := 24000 + 20*float64(i)
		if i == total-1 {
			series := indicators.EMA(closes, cfg.FastPeriod)
			fprev := series[len(series)-1]
			k := 2.0 / float64(cfg.FastPeriod+1)
			fast := fprev + 16*k/(1-k)
			c = fast + 16
			bars = append(bars, models.Bar{Time: at, Open: fast + 1, High: c + 2, Low: fast, Close: c})
		} else {
			bars = append(bars, models.Bar{Time: at, Open: c - 5, High: c + 2, Low: c - 7, Close: c})
		}
		closes = append(closes, c)
	}
	return bars
}

func TestCycleEntersUnderlyingTrade(t *testing.T) {
	cfg := traderConfig()
	start := time.Date(2025, 9, 1, 9, 20, 0, 0, time.UTC)
	bars := rampBars(cfg, start, 8)
	gw := &fakeGateway{
		barsByToken: map[int][]models.Bar{1: bars},
		lastPrice:   bars[len(bars)-1].Close, // between stop and target
	}
	tr := newTestTrader(cfg, gw)

	now := bars[len(bars)-1].Time.Add(cfg.BarInterval() + time.Minute)
	if err := tr.cycle(now); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if !tr.Manager.HasOpenTrade() {
		t.Fatal("expected an open trade after the signal bar")
	}
	pos := tr.Manager.Open()
	if pos.Direction != models.Long || pos.Symbol != "NIFTY" || pos.Qty != 75 {
		t.Fatalf("unexpected position: %+v", pos)
	}
	if len(gw.orders) != 1 || gw.orders[0] != "BUY NIFTY x75" {
		t.Fatalf("unexpected orders: %v", gw.orders)
	}

	// Re-polling the same bar must not enter again.
	if err := tr.cycle(now.Add(time.Second)); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(gw.orders) != 1 {
		t.Fatalf("duplicate bar produced extra orders: %v", gw.orders)
	}
}

func TestCycleEntersOptionLeg(t *testing.T) {
	cfg := traderConfig()
	cfg.OptionLeg = true
	start := time.Date(2025, 9, 1, 9, 20, 0, 0, time.UTC)
	bars := rampBars(cfg, start, 8)

	optStart := bars[len(bars)-1].Time.Add(-10 * time.Minute)
	optBars := []models.Bar{
		{Time: optStart, Open: 140, High: 148, Low: 138, Close: 146},
		{Time: optStart.Add(5 * time.Minute), Open: 146, High: 152, Low: 141, Close: 150},
		{Time: optStart.Add(10 * time.Minute), Open: 150, High: 156, Low: 149, Close: 155},
	}
	gw := &fakeGateway{
		barsByToken: map[int][]models.Bar{1: bars, 99: optBars},
		lastPrice:   151,
		contract: &models.InstrumentInfo{
			Token:         99,
			TradingSymbol: "NIFTY25NOV24000CE",
			LotSize:       75,
			Type:          "CE",
		},
	}
	tr := newTestTrader(cfg, gw)

	now := bars[len(bars)-1].Time.Add(cfg.BarInterval() + time.Minute)
	if err := tr.cycle(now); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	pos := tr.Manager.Open()
	if pos == nil {
		t.Fatal("expected an open option trade")
	}
	if pos.Symbol != "NIFTY25NOV24000CE" || pos.Direction != models.Long {
		t.Fatalf("unexpected position: %+v", pos)
	}
	// Entry at the option quote, stop at the trigger bar low.
	if pos.Entry != 151 || pos.StopLoss != 141 {
		t.Fatalf("unexpected levels: %+v", pos)
	}
}

func TestCycleWaitsForWarmup(t *testing.T) {
	cfg := traderConfig()
	start := time.Date(2025, 9, 1, 9, 20, 0, 0, time.UTC)
	bars := rampBars(cfg, start, 4) // below WarmupBars
	gw := &fakeGateway{barsByToken: map[int][]models.Bar{1: bars}}
	tr := newTestTrader(cfg, gw)

	now := bars[len(bars)-1].Time.Add(cfg.BarInterval() + time.Minute)
	if err := tr.cycle(now); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if tr.Manager.HasOpenTrade() {
		t.Fatal("no trade should be entered during warm-up")
	}
	if len(gw.orders) != 0 {
		t.Fatalf("unexpected orders: %v", gw.orders)
	}
}

func TestCycleIgnoresFormingBar(t *testing.T) {
	cfg := traderConfig()
	start := time.Date(2025, 9, 1, 9, 20, 0, 0, time.UTC)
	bars := rampBars(cfg, start, 8)
	gw := &fakeGateway{barsByToken: map[int][]models.Bar{1: bars}}
	tr := newTestTrader(cfg, gw)

	// The signal bar's interval has not elapsed yet, so it must be ignored.
	now := bars[len(bars)-1].Time.Add(2 * time.Minute)
	if err := tr.cycle(now); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if tr.Manager.HasOpenTrade() {
		t.Fatal("a forming bar must not trigger an entry")
	}
}

func TestCycleForceExit(t *testing.T) {
	cfg := traderConfig()
	gw := &fakeGateway{lastPrice: 24010}
	tr := newTestTrader(cfg, gw)

	entryTime := time.Date(2025, 9, 1, 14, 30, 0, 0, time.UTC)
	if _, err := tr.Manager.EnterTrade("NIFTY", 75, models.Long, 24000, 23980, entryTime); err != nil {
		t.Fatal(err)
	}
	tr.Session.Roll(entryTime)

	late := time.Date(2025, 9, 1, 15, 16, 0, 0, time.UTC)
	if err := tr.cycle(late); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if tr.Manager.HasOpenTrade() {
		t.Fatal("position must be squared off after the force exit time")
	}
	recs := tr.Manager.Journal.Records()
	if len(recs) != 1 || recs[0].Outcome != models.StatusForceExit {
		t.Fatalf("unexpected journal: %+v", recs)
	}
}

func TestCycleRollsTradingDay(t *testing.T) {
	cfg := traderConfig()
	gw := &fakeGateway{barsByToken: map[int][]models.Bar{}}
	tr := newTestTrader(cfg, gw)

	day1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	if err := tr.cycle(day1); err != nil {
		t.Fatal(err)
	}
	tr.Session.StopLossCount = 2

	day2 := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)
	if err := tr.cycle(day2); err != nil {
		t.Fatal(err)
	}
	if !models.SameDay(tr.Session.TradingDay, day2) {
		t.Fatal("trading day should roll forward")
	}
	if tr.Session.StopLossCount != 0 {
		t.Fatal("stop loss counter must reset on a new day")
	}
	if tr.fast.Len() != 0 {
		t.Fatal("EMA trackers must reseed on a new day")
	}
}
