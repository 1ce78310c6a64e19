package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ema-rejection/models"
)

var csvHeader = []string{
	"id", "symbol", "direction", "qty",
	"entry_time", "exit_time",
	"entry", "stop_loss", "target", "exit_price",
	"outcome", "pnl",
}

// Journal is the append-only trade log. Every record is kept in memory for
// summaries and written through to a CSV file as it arrives, so a crash
// never loses a closed trade.
type Journal struct {
	mu      sync.Mutex
	path    string
	records []models.TradeRecord
	file    *os.File
	writer  *csv.Writer
}

// NewJournal opens (or creates) the CSV file at path and positions it for
// appending. The header is written only when the file is new.
func NewJournal(path string) (*Journal, error) {
	info, err := os.Stat(path)
	fresh := err != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade log %s: %w", path, err)
	}
	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write trade log header: %w", err)
		}
		writer.Flush()
	}
	return &Journal{path: path, file: file, writer: writer}, nil
}

// NewMemoryJournal creates a journal with no backing file; used by the
// replay engine when no output path is configured and by tests.
func NewMemoryJournal() *Journal {
	return &Journal{}
}

// Append records one closed trade.
func (j *Journal) Append(rec models.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	if j.writer == nil {
		return nil
	}
	if err := j.writer.Write(recordRow(rec)); err != nil {
		return fmt.Errorf("failed to write trade record: %w", err)
	}
	j.writer.Flush()
	return j.writer.Error()
}

// Records returns a copy of all recorded trades.
func (j *Journal) Records() []models.TradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.TradeRecord, len(j.records))
	copy(out, j.records)
	return out
}

// Close flushes and closes the backing file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.writer != nil {
		j.writer.Flush()
	}
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

func recordRow(rec models.TradeRecord) []string {
	return []string{
		rec.ID,
		rec.Symbol,
		rec.Direction,
		strconv.Itoa(rec.Qty),
		rec.EntryTime.Format(time.RFC3339),
		rec.ExitTime.Format(time.RFC3339),
		strconv.FormatFloat(rec.Entry, 'f', 2, 64),
		strconv.FormatFloat(rec.StopLoss, 'f', 2, 64),
		strconv.FormatFloat(rec.Target, 'f', 2, 64),
		strconv.FormatFloat(rec.ExitPrice, 'f', 2, 64),
		rec.Outcome,
		strconv.FormatFloat(rec.PnL, 'f', 2, 64),
	}
}

// Summary aggregates the journal. PnL is accumulated with decimals so the
// total does not drift over long replays.
type Summary struct {
	Trades     int
	Wins       int
	Losses     int
	ForceExits int
	EODExits   int
	NetPnL     decimal.Decimal
	GrossWin   decimal.Decimal
	GrossLoss  decimal.Decimal
	WinRate    float64
}

// Summarize computes the aggregate statistics over all recorded trades.
func (j *Journal) Summarize() Summary {
	var s Summary
	for _, rec := range j.Records() {
		s.Trades++
		pnl := decimal.NewFromFloat(rec.PnL)
		s.NetPnL = s.NetPnL.Add(pnl)
		if pnl.IsPositive() {
			s.Wins++
			s.GrossWin = s.GrossWin.Add(pnl)
		} else if pnl.IsNegative() {
			s.Losses++
			s.GrossLoss = s.GrossLoss.Add(pnl)
		}
		switch rec.Outcome {
		case models.StatusForceExit:
			s.ForceExits++
		case models.StatusEODExit:
			s.EODExits++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	return s
}

// String renders the summary as a small report block.
func (s Summary) String() string {
	return fmt.Sprintf(
		"trades=%d wins=%d losses=%d forceExits=%d eodExits=%d winRate=%.1f%% netPnL=%s",
		s.Trades, s.Wins, s.Losses, s.ForceExits, s.EODExits, s.WinRate, s.NetPnL.StringFixed(2),
	)
}
