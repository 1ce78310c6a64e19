package interfaces

import (
	"time"

	"ema-rejection/models"
)

// Gateway defines the market-data and broker operations the engines need.
// The REST client in the api package implements it; tests use fakes.
type Gateway interface {
	// GetBars returns bars for the instrument token, ordered by timestamp.
	GetBars(token int, from, to time.Time, interval string) ([]models.Bar, error)
	// GetLastPrice returns the last traded price for a tradingsymbol.
	GetLastPrice(symbol string) (float64, error)
	// SubmitOrder places a market order and returns the broker order id.
	SubmitOrder(symbol string, qty int, side string) (string, error)
	// ResolveOptionContract returns the tradeable option contract nearest the
	// money for the given spot and signal direction on the given day.
	ResolveOptionContract(spot float64, direction string, day time.Time) (*models.InstrumentInfo, error)
}

// Clock abstracts wall-clock time so the live loop can be driven bar-by-bar
// in tests without real delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real-time Clock used in production.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for the given duration.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
