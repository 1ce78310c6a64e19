package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration. Every classifier and policy
// threshold is a named field so historical rule variants stay representable
// as configuration rather than code branches.
type Config struct {
	// Broker / market data
	APIKey          string
	AccessToken     string
	RESTHost        string
	Exchange        string // derivatives exchange for orders and options
	UnderlyingToken int    // instrument token of the index
	UnderlyingName  string // index name used to build option tradingsymbols
	Interval        string // bar interval, e.g. "5minute"
	BarMinutes      int    // bar interval in minutes, must match Interval

	// Instrument / sizing
	Quantity   int
	StrikeStep int  // strike spacing of the option chain
	OptionLeg  bool // trade the option contract instead of the future
	FutSymbol  string

	// Indicator parameters
	FastPeriod    int
	SlowPeriod    int
	AngleLookback int
	AngleDegrees  float64

	// Rejection classifier thresholds
	MinBodyPoints      float64
	ProximityTolerance float64
	ShortWickMax       float64
	LongWickMin        float64
	MaxBodyWickRatio   float64 // opposing wick cap for body rejections, fraction of body
	StrictTrendGate    bool
	MinTrendSeparation float64 // 0 disables the separation gate

	// Risk / lifecycle
	RewardMultiple  float64
	MaxStopLossDay  int
	UsePrevBarStop  bool
	WarmupBars      int
	PollSeconds     int
	SessionOpen     string // "HH:MM" local session time
	EntryCutoff     string
	ForceExit       string
	Timezone        string
	OptionScanHours int // how far ahead option bars are fetched in replay

	// Trade journal
	TradeLogFile  string
	OptionLogFile string

	// Logging
	LogFile       string
	LogMaxSize    int // megabytes
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool
	LogLevel      int // 0=DEBUG, 1=INFO, 2=WARNING, 3=ERROR
	Debug         bool

	// Status server
	StatusAddr string

	// Daemon
	DaemonMode bool

	loc *time.Location
}

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() *Config {
	return &Config{
		APIKey:          getEnv("BROKER_API_KEY", ""),
		AccessToken:     getEnv("BROKER_ACCESS_TOKEN", ""),
		RESTHost:        getEnv("BROKER_REST_HOST", "https://api.kite.trade"),
		Exchange:        getEnv("BROKER_EXCHANGE", "NFO"),
		UnderlyingToken: getEnvAsInt("UNDERLYING_TOKEN", 256265),
		UnderlyingName:  getEnv("UNDERLYING_NAME", "NIFTY"),
		Interval:        getEnv("BAR_INTERVAL", "5minute"),
		BarMinutes:      getEnvAsInt("BAR_MINUTES", 5),

		Quantity:   getEnvAsInt("TRADE_QTY", 75),
		StrikeStep: getEnvAsInt("STRIKE_STEP", 50),
		OptionLeg:  getEnvAsBool("OPTION_LEG", true),
		FutSymbol:  getEnv("FUT_SYMBOL", ""),

		FastPeriod:    getEnvAsInt("FAST_EMA_PERIOD", 15),
		SlowPeriod:    getEnvAsInt("SLOW_EMA_PERIOD", 21),
		AngleLookback: getEnvAsInt("ANGLE_LOOKBACK", 5),
		AngleDegrees:  getEnvAsFloat("ANGLE_DEGREES", 30),

		MinBodyPoints:      getEnvAsFloat("MIN_BODY_POINTS", 10),
		ProximityTolerance: getEnvAsFloat("PROXIMITY_TOLERANCE", 5),
		ShortWickMax:       getEnvAsFloat("SHORT_WICK_MAX", 4),
		LongWickMin:        getEnvAsFloat("LONG_WICK_MIN", 10),
		MaxBodyWickRatio:   getEnvAsFloat("MAX_BODY_WICK_RATIO", 0.3),
		StrictTrendGate:    getEnvAsBool("STRICT_TREND_GATE", true),
		MinTrendSeparation: getEnvAsFloat("MIN_TREND_SEPARATION", 3),

		RewardMultiple:  getEnvAsFloat("REWARD_MULTIPLE", 1.9),
		MaxStopLossDay:  getEnvAsInt("MAX_SL_PER_DAY", 2),
		UsePrevBarStop:  getEnvAsBool("USE_PREV_BAR_STOP", true),
		WarmupBars:      getEnvAsInt("WARMUP_BARS", 30),
		PollSeconds:     getEnvAsInt("POLL_SECONDS", 5),
		SessionOpen:     getEnv("SESSION_OPEN", "09:15"),
		EntryCutoff:     getEnv("ENTRY_CUTOFF", "15:00"),
		ForceExit:       getEnv("FORCE_EXIT", "15:15"),
		Timezone:        getEnv("SESSION_TZ", "Asia/Kolkata"),
		OptionScanHours: getEnvAsInt("OPTION_SCAN_HOURS", 4),

		TradeLogFile:  getEnv("TRADE_LOG_FILE", "trades.csv"),
		OptionLogFile: getEnv("OPTION_LOG_FILE", "option_trades.csv"),

		LogFile:       getEnv("LOG_FILE", "logs/ema_rejection.log"),
		LogMaxSize:    10,
		LogMaxBackups: 5,
		LogMaxAge:     30,
		LogCompress:   true,
		LogLevel:      1,

		StatusAddr: getEnv("STATUS_ADDR", "127.0.0.1:6061"),
		DaemonMode: getEnvAsBool("DAEMON_MODE", false),
	}
}

// Validate checks required fields before the engines start. A failure here
// is fatal: the loop must not start on a broken configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" || c.AccessToken == "" {
		return fmt.Errorf("missing broker credentials (BROKER_API_KEY / BROKER_ACCESS_TOKEN)")
	}
	if c.FastPeriod <= 0 || c.SlowPeriod <= 0 {
		return fmt.Errorf("EMA periods must be positive: fast=%d slow=%d", c.FastPeriod, c.SlowPeriod)
	}
	if c.FastPeriod >= c.SlowPeriod {
		return fmt.Errorf("fast EMA period %d must be shorter than slow %d", c.FastPeriod, c.SlowPeriod)
	}
	if c.AngleLookback <= 0 {
		return fmt.Errorf("angle lookback must be positive: %d", c.AngleLookback)
	}
	if c.RewardMultiple <= 0 {
		return fmt.Errorf("reward multiple must be positive: %f", c.RewardMultiple)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("trade quantity must be positive: %d", c.Quantity)
	}
	if c.BarMinutes <= 0 {
		return fmt.Errorf("bar minutes must be positive: %d", c.BarMinutes)
	}
	for _, clock := range []struct{ name, val string }{
		{"SESSION_OPEN", c.SessionOpen},
		{"ENTRY_CUTOFF", c.EntryCutoff},
		{"FORCE_EXIT", c.ForceExit},
	} {
		if _, err := clockMinutes(clock.val); err != nil {
			return fmt.Errorf("invalid %s %q: %w", clock.name, clock.val, err)
		}
	}
	open, _ := clockMinutes(c.SessionOpen)
	cutoff, _ := clockMinutes(c.EntryCutoff)
	exit, _ := clockMinutes(c.ForceExit)
	if !(open < cutoff && cutoff <= exit) {
		return fmt.Errorf("session times out of order: open=%s cutoff=%s exit=%s",
			c.SessionOpen, c.EntryCutoff, c.ForceExit)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid SESSION_TZ %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the session timezone, loading it once.
func (c *Config) Location() (*time.Location, error) {
	if c.loc != nil {
		return c.loc, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, err
	}
	c.loc = loc
	return loc, nil
}

// BarInterval returns the bar interval as a duration.
func (c *Config) BarInterval() time.Duration {
	return time.Duration(c.BarMinutes) * time.Minute
}

// BeforeSessionOpen reports whether now is before the session open time.
func (c *Config) BeforeSessionOpen(now time.Time) bool {
	return minutesOfDay(now) < mustClockMinutes(c.SessionOpen)
}

// AfterEntryCutoff reports whether new entries are no longer allowed.
func (c *Config) AfterEntryCutoff(now time.Time) bool {
	return minutesOfDay(now) >= mustClockMinutes(c.EntryCutoff)
}

// ForceExitDue reports whether all open positions must be squared off.
func (c *Config) ForceExitDue(now time.Time) bool {
	return minutesOfDay(now) >= mustClockMinutes(c.ForceExit)
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// mustClockMinutes assumes Validate already accepted the value.
func mustClockMinutes(s string) int {
	m, _ := clockMinutes(s)
	return m
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	switch value {
	case "true", "1", "yes", "on", "True", "TRUE":
		return true
	default:
		return false
	}
}
