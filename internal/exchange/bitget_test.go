package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, serverURL string) *BitgetClient {
	t.Helper()
	client, err := NewBitgetClient("key", "secret", "passphrase", nil, BitgetClientConfig{
		BaseURL:     serverURL,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBitgetClient() error: %v", err)
	}
	return client
}

func TestNewBitgetClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		secret     string
		passphrase string
	}{
		{"empty api key", "", "secret", "pass"},
		{"empty secret", "key", "", "pass"},
		{"empty passphrase", "key", "secret", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBitgetClient(tt.apiKey, tt.secret, tt.passphrase, nil, BitgetClientConfig{})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestGetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/mix/account/accounts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("productType") != "USDT-FUTURES" {
			t.Errorf("missing productType query param")
		}
		for _, header := range []string{"ACCESS-KEY", "ACCESS-SIGN", "ACCESS-TIMESTAMP", "ACCESS-PASSPHRASE"} {
			if r.Header.Get(header) == "" {
				t.Errorf("missing header %s", header)
			}
		}
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			{"marginCoin":"USDT","available":"1000.5","accountEquity":"1100.25","unrealizedPL":"-10.5"}
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	info, err := client.GetAccountInfo(context.Background())
	if err != nil {
		t.Fatalf("GetAccountInfo() error: %v", err)
	}

	if info.Available != 1000.5 {
		t.Errorf("Available = %v, want 1000.5", info.Available)
	}
	if info.Equity != 1100.25 {
		t.Errorf("Equity = %v, want 1100.25", info.Equity)
	}
	if info.UnrealizedPL != -10.5 {
		t.Errorf("UnrealizedPL = %v, want -10.5", info.UnrealizedPL)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"code":"40009","msg":"sign signature error","data":null}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.GetAccountInfo(context.Background())

	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("auth error was retried: %d requests, want 1", n)
	}
}

func TestRateLimitRetriedThenSucceeds(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.Write([]byte(`{"code":"429","msg":"too many requests","data":null}`))
			return
		}
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			{"marginCoin":"USDT","available":"500","accountEquity":"500","unrealizedPL":"0"}
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	info, err := client.GetAccountInfo(context.Background())
	if err != nil {
		t.Fatalf("GetAccountInfo() error after retry: %v", err)
	}

	if info.Available != 500 {
		t.Errorf("Available = %v, want 500", info.Available)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestAPIErrorExhaustsAttempts(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"code":"40762","msg":"insufficient balance","data":null}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.GetAccountInfo(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var berr *BitgetError
	if !errors.As(err, &berr) || berr.Kind != KindAPI {
		t.Errorf("expected api error, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("requests = %d, want 3 (MaxAttempts)", n)
	}
}

func TestGetPositionsFiltersEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			{"symbol":"BTCUSDT","holdSide":"long","total":"0.5","openPriceAvg":"50000","markPrice":"51000","leverage":"10","unrealizedPL":"500","uTime":"1700000000000"},
			{"symbol":"ETHUSDT","holdSide":"long","total":"0","openPriceAvg":"0","markPrice":"3000","leverage":"5","unrealizedPL":"0","uTime":"1700000000000"}
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	positions, err := client.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}

	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.Symbol != "BTCUSDT" || p.Side != "long" || p.Size != 0.5 {
		t.Errorf("unexpected position: %+v", p)
	}
	if p.EntryPrice != 50000 || p.Leverage != 10 {
		t.Errorf("unexpected entry/leverage: %+v", p)
	}
}

func TestGetSinglePositionFlat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			{"symbol":"BTCUSDT","holdSide":"long","total":"0","openPriceAvg":"0","markPrice":"50000","leverage":"10","unrealizedPL":"0","uTime":"1700000000000"}
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	pos, err := client.GetSinglePosition(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetSinglePosition() error: %v", err)
	}
	if pos != nil {
		t.Errorf("expected nil position for flat symbol, got %+v", pos)
	}
}

func TestPlaceOrderBody(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte(`{"code":"00000","msg":"success","data":{"orderId":"123456","clientOid":"tb-test"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	order, err := client.PlaceOrder(context.Background(), OrderRequest{
		Symbol:     "BTCUSDT",
		Side:       SideSell,
		OrderType:  OrderTypeMarket,
		Size:       0.001,
		ReduceOnly: true,
		ClientOID:  "tb-test",
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}

	if order.OrderID != "123456" {
		t.Errorf("OrderID = %q, want 123456", order.OrderID)
	}

	want := map[string]string{
		"symbol":      "BTCUSDT",
		"productType": "USDT-FUTURES",
		"marginMode":  "crossed",
		"marginCoin":  "USDT",
		"side":        "sell",
		"orderType":   "market",
		"size":        "0.001",
		"reduceOnly":  "YES",
		"clientOid":   "tb-test",
	}
	for k, v := range want {
		if gotBody[k] != v {
			t.Errorf("body[%q] = %q, want %q", k, gotBody[k], v)
		}
	}
	if _, ok := gotBody["price"]; ok {
		t.Error("market order body contains price")
	}
}

func TestGetTickerUnsigned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("ACCESS-SIGN") != "" {
			t.Error("public endpoint was signed")
		}
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			{"symbol":"BTCUSDT","lastPr":"50123.5","bidPr":"50123","askPr":"50124","ts":"1700000000000"}
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	ticker, err := client.GetTicker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetTicker() error: %v", err)
	}

	if ticker.LastPrice != 50123.5 {
		t.Errorf("LastPrice = %v, want 50123.5", ticker.LastPrice)
	}
	if ticker.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("Timestamp = %v", ticker.Timestamp)
	}
}

func TestRequestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"40762","msg":"insufficient balance","data":null}`))
	}))
	defer server.Close()

	client, err := NewBitgetClient("key", "secret", "passphrase", nil, BitgetClientConfig{
		BaseURL:     server.URL,
		MaxAttempts: 5,
		RetryDelay:  time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.GetAccountInfo(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("retry loop ignored context cancellation")
	}
}
