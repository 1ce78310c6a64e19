package api

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ema-rejection/models"
)

// instrumentCache holds one day's instruments dump keyed by tradingsymbol.
// The dump is refreshed lazily on the first lookup of each calendar day.
type instrumentCache struct {
	mu       sync.Mutex
	day      string
	bySymbol map[string]models.InstrumentInfo
}

func newInstrumentCache() *instrumentCache {
	return &instrumentCache{bySymbol: map[string]models.InstrumentInfo{}}
}

// lookupInstrument resolves a tradingsymbol to its instrument metadata,
// refreshing the cached dump when the day has rolled over.
func (c *Client) lookupInstrument(symbol string, day time.Time) (*models.InstrumentInfo, error) {
	c.instruments.mu.Lock()
	defer c.instruments.mu.Unlock()

	key := day.Format("2006-01-02")
	if c.instruments.day != key {
		dump, err := c.fetchInstruments()
		if err != nil {
			return nil, err
		}
		c.instruments.day = key
		c.instruments.bySymbol = dump
		c.Logger.Info("Loaded %d instruments for %s", len(dump), c.Config.Exchange)
	}

	info, ok := c.instruments.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: instrument %s not found", ErrDataUnavailable, symbol)
	}
	return &info, nil
}

// fetchInstruments downloads and parses the CSV instruments dump for the
// configured exchange.
func (c *Client) fetchInstruments() (map[string]models.InstrumentInfo, error) {
	body, err := c.get("/instruments/"+c.Config.Exchange, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return parseInstrumentsCSV(string(body), c.Config.Exchange)
}

func parseInstrumentsCSV(raw, exchange string) (map[string]models.InstrumentInfo, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse instruments dump: %v", ErrDataUnavailable, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: empty instruments dump", ErrDataUnavailable)
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, required := range []string{"instrument_token", "tradingsymbol", "expiry", "strike", "lot_size", "instrument_type", "tick_size"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: instruments dump missing column %s", ErrDataUnavailable, required)
		}
	}

	out := make(map[string]models.InstrumentInfo, len(rows)-1)
	for _, row := range rows[1:] {
		token, err := strconv.Atoi(row[col["instrument_token"]])
		if err != nil {
			continue
		}
		lotSize, _ := strconv.Atoi(row[col["lot_size"]])
		strike, _ := strconv.ParseFloat(row[col["strike"]], 64)
		tickSize, _ := strconv.ParseFloat(row[col["tick_size"]], 64)
		expiry, _ := time.Parse("2006-01-02", row[col["expiry"]])

		symbol := row[col["tradingsymbol"]]
		out[symbol] = models.InstrumentInfo{
			Token:         token,
			TradingSymbol: symbol,
			Exchange:      exchange,
			LotSize:       lotSize,
			TickSize:      tickSize,
			Expiry:        expiry,
			Strike:        strike,
			Type:          row[col["instrument_type"]],
		}
	}
	return out, nil
}
