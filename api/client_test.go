package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ema-rejection/config"
	"ema-rejection/logging"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		APIKey:          "key",
		AccessToken:     "token",
		RESTHost:        server.URL,
		Exchange:        "NFO",
		UnderlyingName:  "NIFTY",
		UnderlyingToken: 256265,
		StrikeStep:      50,
	}
	return NewClient(cfg, logging.Nop{})
}

func TestGetBars(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/instruments/historical/256265/5minute" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "token key:token" {
			t.Errorf("unexpected auth header %q", got)
		}
		rw.Write([]byte(`{"status":"success","data":{"candles":[
			["2025-09-01T09:15:00+0530",24000,24010,23995,24005,1000],
			["2025-09-01T09:20:00+0530",24005,24022,24003,24020,900],
			["bad-row"],
			["2025-09-01T09:25:00+0530",24020,24010,24030,24025,900]
		]}}`))
	}))

	bars, err := client.GetBars(256265, time.Now().Add(-time.Hour), time.Now(), "5minute")
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	// The short row and the row with high below low are skipped.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Open != 24000 || bars[0].Close != 24005 {
		t.Fatalf("unexpected first bar: %+v", bars[0])
	}
	if bars[1].High != 24022 {
		t.Fatalf("unexpected second bar: %+v", bars[1])
	}
}

func TestGetBarsUnavailable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	if _, err := client.GetBars(256265, time.Now(), time.Now(), "5minute"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestGetLastPrice(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if got := req.URL.Query().Get("i"); got != "NFO:NIFTY25NOV24000CE" {
			t.Errorf("unexpected instrument key %q", got)
		}
		rw.Write([]byte(`{"status":"success","data":{"NFO:NIFTY25NOV24000CE":{"instrument_token":99,"last_price":151.25}}}`))
	}))

	price, err := client.GetLastPrice("NIFTY25NOV24000CE")
	if err != nil {
		t.Fatalf("GetLastPrice failed: %v", err)
	}
	if price != 151.25 {
		t.Fatalf("expected 151.25, got %.2f", price)
	}
}

func TestGetLastPriceMissing(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Write([]byte(`{"status":"success","data":{}}`))
	}))
	if _, err := client.GetLastPrice("NIFTY"); !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestSubmitOrder(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != "/orders/regular" {
			t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if err := req.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if req.PostForm.Get("transaction_type") != "BUY" || req.PostForm.Get("quantity") != "75" {
			t.Errorf("unexpected form: %v", req.PostForm)
		}
		rw.Write([]byte(`{"status":"success","data":{"order_id":"order-1"}}`))
	}))

	id, err := client.SubmitOrder("NIFTY25NOV24000CE", 75, "BUY")
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if id != "order-1" {
		t.Fatalf("expected order-1, got %s", id)
	}
}

func TestSubmitOrderRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
		rw.Write([]byte(`{"status":"error","message":"insufficient margin"}`))
	}))
	if _, err := client.SubmitOrder("NIFTY", 75, "BUY"); !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
}

func TestResolveOptionContract(t *testing.T) {
	dump := "instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange\n" +
		"12345,48,NIFTY25NOV24000CE,NIFTY,0,2025-11-25,24000,0.05,75,CE,NFO-OPT,NFO\n" +
		"12346,49,NIFTY25NOV24000PE,NIFTY,0,2025-11-25,24000,0.05,75,PE,NFO-OPT,NFO\n"

	client := testClient(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/instruments/NFO" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		rw.Write([]byte(dump))
	}))

	// 2025-11-20 is a Thursday; the next Tuesday is the monthly expiry.
	at := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	info, err := client.ResolveOptionContract(24012.5, "LONG", at)
	if err != nil {
		t.Fatalf("ResolveOptionContract failed: %v", err)
	}
	if info.TradingSymbol != "NIFTY25NOV24000CE" || info.Token != 12345 || info.LotSize != 75 {
		t.Fatalf("unexpected contract: %+v", info)
	}

	info, err = client.ResolveOptionContract(24012.5, "SHORT", at)
	if err != nil {
		t.Fatalf("ResolveOptionContract failed: %v", err)
	}
	if info.TradingSymbol != "NIFTY25NOV24000PE" {
		t.Fatalf("expected the put contract, got %+v", info)
	}

	if _, err := client.ResolveOptionContract(25000, "LONG", at); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable for a missing strike, got %v", err)
	}
}
