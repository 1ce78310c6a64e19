package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ema-rejection/api"
	"ema-rejection/backtest"
	"ema-rejection/config"
	"ema-rejection/daemon"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
	"ema-rejection/strategy"
	"ema-rejection/trade"
	"ema-rejection/tradelog"
	"ema-rejection/web_interface"
)

func main() {
	var (
		backtestMode  = flag.Bool("backtest", false, "replay historical bars instead of trading live")
		fromArg       = flag.String("from", "", "replay start date (YYYY-MM-DD)")
		toArg         = flag.String("to", "", "replay end date (YYYY-MM-DD)")
		debug         = flag.Bool("debug", false, "enable debug logging")
		startDaemon   = flag.Bool("start-daemon", false, "start the live engine as a background process")
		stopDaemon    = flag.Bool("stop-daemon", false, "stop the background process")
		restartDaemon = flag.Bool("restart-daemon", false, "restart the background process")
	)
	flag.Parse()

	switch {
	case *stopDaemon:
		if err := daemon.StopDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stop daemon: %v\n", err)
			os.Exit(1)
		}
		return
	case *startDaemon:
		if err := daemon.StartDaemon(daemonArgs()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		return
	case *restartDaemon:
		if err := daemon.RestartDaemon(daemonArgs()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to restart daemon: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.LoadConfig()
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = int(logging.DEBUG)
	}

	logger, err := logging.NewLogger(cfg.LogFile, cfg.LogMaxSize, cfg.LogMaxBackups,
		cfg.LogMaxAge, cfg.LogCompress, logging.LogLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	if cfg.DaemonMode && !daemon.IsDaemon() && !*backtestMode {
		if err := daemon.StartDaemon(os.Args[1:]); err != nil {
			logger.Fatal("Failed to start daemon: %v", err)
		}
		return
	}

	client := api.NewClient(cfg, logger)

	if *backtestMode {
		runBacktest(cfg, logger, client, *fromArg, *toArg)
		return
	}
	runLive(cfg, logger, client)
}

// daemonArgs returns the process arguments with the daemon control flags
// stripped, so the spawned copy runs the live engine directly.
func daemonArgs() []string {
	out := make([]string, 0, len(os.Args)-1)
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-start-daemon", "--start-daemon", "-restart-daemon", "--restart-daemon":
			continue
		}
		out = append(out, arg)
	}
	return out
}

func runLive(cfg *config.Config, logger *logging.Logger, client *api.Client) {
	journal, err := tradelog.NewJournal(cfg.TradeLogFile)
	if err != nil {
		logger.Fatal("Failed to open trade journal: %v", err)
	}
	defer journal.Close()

	board := &models.StatusBoard{}
	session := &models.SessionState{}
	manager := trade.NewManager(client, cfg, logger, journal, board, session)

	webui := web_interface.NewWebUI(cfg, logger, board, journal)
	go func() {
		if err := webui.Start(); err != nil {
			logger.Error("Status server stopped: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trader := strategy.NewTrader(client, interfaces.SystemClock{}, cfg, logger, manager, board, session)
	if err := trader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Live engine failed: %v", err)
	}

	// Do not leave a position open across a shutdown.
	if manager.HasOpenTrade() {
		if err := manager.ForceSquareOffAll(time.Now(), models.StatusForceExit); err != nil {
			logger.Error("Failed to square off on shutdown: %v", err)
		}
	}
	logger.Info("Shutdown complete")
}

func runBacktest(cfg *config.Config, logger *logging.Logger, client *api.Client, fromArg, toArg string) {
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid timezone: %v", err)
	}
	from, err := time.ParseInLocation("2006-01-02", fromArg, loc)
	if err != nil {
		logger.Fatal("Invalid -from date %q: %v", fromArg, err)
	}
	to, err := time.ParseInLocation("2006-01-02", toArg, loc)
	if err != nil {
		logger.Fatal("Invalid -to date %q: %v", toArg, err)
	}
	to = to.Add(24*time.Hour - time.Second)

	journal, err := tradelog.NewJournal(cfg.TradeLogFile)
	if err != nil {
		logger.Fatal("Failed to open trade journal: %v", err)
	}
	defer journal.Close()
	optionJournal, err := tradelog.NewJournal(cfg.OptionLogFile)
	if err != nil {
		logger.Fatal("Failed to open option trade journal: %v", err)
	}
	defer optionJournal.Close()

	engine := backtest.New(client, cfg, logger, journal, optionJournal)
	result, err := engine.Run(from, to)
	if err != nil {
		logger.Fatal("Replay failed: %v", err)
	}

	fmt.Printf("Replayed %d bars\n", result.Bars)
	fmt.Printf("Index trades:  %s\n", result.Trades)
	if cfg.OptionLeg {
		fmt.Printf("Option trades: %s\n", result.OptionTrades)
	}
}
