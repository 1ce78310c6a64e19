package web_interface

import (
	"encoding/json"
	"net/http"
	"time"

	"ema-rejection/config"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/tradelog"
)

// WebUI exposes the engine's status board over HTTP and pushes live updates
// to websocket clients. It is read-only: nothing here mutates engine state.
type WebUI struct {
	Config  *config.Config
	Logger  logging.LoggerInterface
	Board   *models.StatusBoard
	Journal *tradelog.Journal

	hub *hub
}

// statusPayload is the JSON shape served on /api/status and broadcast on the
// websocket.
type statusPayload struct {
	Time          time.Time                `json:"time"`
	Signal        models.SignalSnapshot    `json:"signal"`
	Indicators    models.IndicatorSnapshot `json:"indicators"`
	Position      models.PositionSnapshot  `json:"position"`
	StopLossCount int                      `json:"stopLossCount"`
}

// NewWebUI creates the status server.
func NewWebUI(cfg *config.Config, logger logging.LoggerInterface,
	board *models.StatusBoard, journal *tradelog.Journal) *WebUI {
	return &WebUI{
		Config:  cfg,
		Logger:  logger,
		Board:   board,
		Journal: journal,
		hub:     newHub(logger),
	}
}

// Start serves on the configured address and begins the broadcast loop.
// It blocks; run it in its own goroutine.
func (w *WebUI) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", w.handleStatus)
	mux.HandleFunc("/api/trades", w.handleTrades)
	mux.HandleFunc("/api/summary", w.handleSummary)
	mux.HandleFunc("/ws", w.hub.handleWS)

	go w.broadcastLoop()

	w.Logger.Info("Status server listening on %s", w.Config.StatusAddr)
	return http.ListenAndServe(w.Config.StatusAddr, mux)
}

func (w *WebUI) snapshot() statusPayload {
	signal, ind, pos, slCount := w.Board.Snapshot()
	return statusPayload{
		Time:          time.Now(),
		Signal:        signal,
		Indicators:    ind,
		Position:      pos,
		StopLossCount: slCount,
	}
}

func (w *WebUI) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, w.snapshot(), w.Logger)
}

func (w *WebUI) handleTrades(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, w.Journal.Records(), w.Logger)
}

func (w *WebUI) handleSummary(rw http.ResponseWriter, _ *http.Request) {
	s := w.Journal.Summarize()
	writeJSON(rw, map[string]interface{}{
		"trades":     s.Trades,
		"wins":       s.Wins,
		"losses":     s.Losses,
		"forceExits": s.ForceExits,
		"eodExits":   s.EODExits,
		"winRate":    s.WinRate,
		"netPnL":     s.NetPnL.StringFixed(2),
	}, w.Logger)
}

func writeJSON(rw http.ResponseWriter, v interface{}, logger logging.LoggerInterface) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// broadcastLoop pushes the status snapshot to all websocket clients on a
// fixed cadence.
func (w *WebUI) broadcastLoop() {
	interval := time.Duration(w.Config.PollSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		w.hub.broadcast(w.snapshot())
	}
}
