package models

import (
	"testing"
	"time"
)

func TestBarValid(t *testing.T) {
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		bar  Bar
		want bool
	}{
		{"ordinary bar", Bar{Time: at, Open: 100, High: 105, Low: 98, Close: 103}, true},
		{"flat bar", Bar{Time: at, Open: 100, High: 100, Low: 100, Close: 100}, true},
		{"zero time", Bar{Open: 100, High: 105, Low: 98, Close: 103}, false},
		{"high below low", Bar{Time: at, Open: 100, High: 97, Low: 98, Close: 100}, false},
		{"open above high", Bar{Time: at, Open: 106, High: 105, Low: 98, Close: 103}, false},
		{"close below low", Bar{Time: at, Open: 100, High: 105, Low: 98, Close: 97}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.Valid(); got != tt.want {
				t.Fatalf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBarBodyAndColor(t *testing.T) {
	green := Bar{Open: 100, Close: 112}
	red := Bar{Open: 112, Close: 100}

	if green.Body() != 12 || red.Body() != 12 {
		t.Fatalf("body should be 12 both ways, got %.2f and %.2f", green.Body(), red.Body())
	}
	if !green.IsGreen() || red.IsGreen() {
		t.Fatal("color detection is wrong")
	}
}

func TestSessionStateRoll(t *testing.T) {
	s := &SessionState{}
	day1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	s.Roll(day1)
	s.StopLossCount = 2
	s.LastBarTime = day1

	// Same day: counters survive.
	s.Roll(day1.Add(3 * time.Hour))
	if s.StopLossCount != 2 || s.LastBarTime.IsZero() {
		t.Fatal("rolling within the same day must not reset state")
	}

	// New day: counters reset.
	s.Roll(day1.AddDate(0, 0, 1))
	if s.StopLossCount != 0 || !s.LastBarTime.IsZero() {
		t.Fatal("rolling to a new day must reset state")
	}
}

func TestStatusBoardSnapshot(t *testing.T) {
	board := &StatusBoard{}
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	board.SetSignal(SignalSnapshot{Direction: Long, BarTime: at})
	board.SetIndicators(IndicatorSnapshot{FastEMA: 24010, SlowEMA: 24000})
	board.SetPosition(PositionSnapshot{Symbol: "NIFTY", Entry: 24020})
	board.SetStopLossCount(1)

	sig, ind, pos, slCount := board.Snapshot()
	if sig.Direction != Long || !sig.BarTime.Equal(at) {
		t.Fatalf("unexpected signal snapshot: %+v", sig)
	}
	if ind.FastEMA != 24010 || ind.SlowEMA != 24000 {
		t.Fatalf("unexpected indicator snapshot: %+v", ind)
	}
	if pos.Symbol != "NIFTY" || pos.Entry != 24020 {
		t.Fatalf("unexpected position snapshot: %+v", pos)
	}
	if slCount != 1 {
		t.Fatalf("expected stop loss count 1, got %d", slCount)
	}
}
