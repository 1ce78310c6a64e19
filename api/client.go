package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ema-rejection/config"
	"ema-rejection/interfaces"
	"ema-rejection/logging"
	"ema-rejection/models"
)

const (
	kiteVersion    = "3"
	requestTimeout = 10 * time.Second
	orderTag       = "EMA_REJECTION_ALGO"
)

// Client talks to the broker's REST API: historical candles, last traded
// prices, market orders and the instruments dump.
type Client struct {
	Config     *config.Config
	Logger     logging.LoggerInterface
	HTTPClient *http.Client

	instruments *instrumentCache
}

var _ interfaces.Gateway = (*Client)(nil)

// NewClient creates an API client from the shared configuration.
func NewClient(cfg *config.Config, logger logging.LoggerInterface) *Client {
	return &Client{
		Config:      cfg,
		Logger:      logger,
		HTTPClient:  &http.Client{Timeout: requestTimeout},
		instruments: newInstrumentCache(),
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Authorization", "token "+c.Config.APIKey+":"+c.Config.AccessToken)
}

func (c *Client) get(path string, query url.Values) ([]byte, error) {
	u := c.Config.RESTHost + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

type candleResponse struct {
	Status string `json:"status"`
	Data   struct {
		Candles [][]interface{} `json:"candles"`
	} `json:"data"`
}

// GetBars fetches historical OHLC bars for an instrument token. Bars come
// back in ascending timestamp order. Malformed rows are skipped with a
// warning rather than failing the whole request.
func (c *Client) GetBars(token int, from, to time.Time, interval string) ([]models.Bar, error) {
	path := fmt.Sprintf("/instruments/historical/%d/%s", token, interval)
	query := url.Values{}
	query.Set("from", from.Format("2006-01-02 15:04:05"))
	query.Set("to", to.Format("2006-01-02 15:04:05"))

	body, err := c.get(path, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	var parsed candleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse candles: %v", ErrDataUnavailable, err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", ErrDataUnavailable, parsed.Status)
	}

	bars := make([]models.Bar, 0, len(parsed.Data.Candles))
	for _, row := range parsed.Data.Candles {
		bar, err := parseCandle(row)
		if err != nil {
			c.Logger.Warning("Skipping malformed candle row: %v", err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCandle(row []interface{}) (models.Bar, error) {
	if len(row) < 5 {
		return models.Bar{}, fmt.Errorf("candle row has %d fields", len(row))
	}
	ts, ok := row[0].(string)
	if !ok {
		return models.Bar{}, fmt.Errorf("candle timestamp is %T", row[0])
	}
	t, err := parseCandleTime(ts)
	if err != nil {
		return models.Bar{}, err
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		f, ok := row[i+1].(float64)
		if !ok {
			return models.Bar{}, fmt.Errorf("candle field %d is %T", i+1, row[i+1])
		}
		vals[i] = f
	}
	bar := models.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
	if !bar.Valid() {
		return models.Bar{}, fmt.Errorf("candle at %s has invalid geometry", ts)
	}
	return bar, nil
}

func parseCandleTime(ts string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized candle timestamp %q", ts)
}

type ltpResponse struct {
	Status string `json:"status"`
	Data   map[string]struct {
		InstrumentToken int     `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	} `json:"data"`
}

// GetLastPrice fetches the last traded price for a tradingsymbol on the
// configured exchange.
func (c *Client) GetLastPrice(symbol string) (float64, error) {
	key := c.Config.Exchange + ":" + symbol
	query := url.Values{}
	query.Set("i", key)

	body, err := c.get("/quote/ltp", query)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	var parsed ltpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: failed to parse quote: %v", ErrQuoteUnavailable, err)
	}
	quote, ok := parsed.Data[key]
	if !ok || parsed.Status != "success" {
		return 0, fmt.Errorf("%w: no quote for %s", ErrQuoteUnavailable, key)
	}
	return quote.LastPrice, nil
}

type orderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

// SubmitOrder places an intraday market order and returns the broker order
// id. side is BUY or SELL.
func (c *Client) SubmitOrder(symbol string, qty int, side string) (string, error) {
	form := url.Values{}
	form.Set("tradingsymbol", symbol)
	form.Set("exchange", c.Config.Exchange)
	form.Set("transaction_type", side)
	form.Set("order_type", "MARKET")
	form.Set("quantity", strconv.Itoa(qty))
	form.Set("product", "MIS")
	form.Set("validity", "DAY")
	form.Set("tag", orderTag)

	req, err := http.NewRequest(http.MethodPost, c.Config.RESTHost+"/orders/regular",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create order request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read order response: %v", ErrOrderRejected, err)
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to parse order response: %v", ErrOrderRejected, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Status != "success" {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrOrderRejected, resp.StatusCode, parsed.Message)
	}

	c.Logger.Info("Order placed: %s %s x%d id=%s", side, symbol, qty, parsed.Data.OrderID)
	return parsed.Data.OrderID, nil
}

// ResolveOptionContract picks the at-the-money option contract for the given
// spot and signal direction: CE for longs, PE for shorts, strike rounded to
// the chain step, nearest Tuesday expiry on or after day.
func (c *Client) ResolveOptionContract(spot float64, direction string, day time.Time) (*models.InstrumentInfo, error) {
	optType := "CE"
	if direction == models.Short {
		optType = "PE"
	}
	strike := NearestStrike(spot, c.Config.StrikeStep)
	symbol := fmt.Sprintf("%s%s%d%s", c.Config.UnderlyingName, ExpiryCode(day), strike, optType)

	info, err := c.lookupInstrument(symbol, day)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("Resolved option contract %s token=%d lot=%d", info.TradingSymbol, info.Token, info.LotSize)
	return info, nil
}
