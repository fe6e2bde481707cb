package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGranularity(t *testing.T) {
	tests := []struct {
		timeframe string
		want      string
	}{
		{"1m", "1m"},
		{"5m", "5m"},
		{"15m", "15m"},
		{"30m", "30m"},
		{"1h", "1H"},
		{"4h", "4H"},
		{"12h", "12H"},
		{"1d", "1D"},
		{"1w", "1W"},
		{"7h", "7h"}, // неизвестный таймфрейм проходит как есть
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			if got := Granularity(tt.timeframe); got != tt.want {
				t.Errorf("Granularity(%q) = %q, want %q", tt.timeframe, got, tt.want)
			}
		})
	}
}

func TestGetCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("granularity") != "1H" {
			t.Errorf("granularity = %q, want 1H", q.Get("granularity"))
		}
		if q.Get("symbol") != "BTCUSDT" {
			t.Errorf("symbol = %q", q.Get("symbol"))
		}
		// Биржа отдаёт свечи от новых к старым
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			["1700003600000","50100","50200","50000","50150","12.5","626875"],
			["1700000000000","50000","50150","49900","50100","10.0","501000"]
		]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	candles, err := client.GetCandles(context.Background(), "BTCUSDT", "1h", time.Time{}, 100)
	if err != nil {
		t.Fatalf("GetCandles() error: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	// Результат отсортирован по возрастанию времени
	if !candles[0].Timestamp.Before(candles[1].Timestamp) {
		t.Error("candles are not in chronological order")
	}
	first := candles[0]
	if first.Open != 50000 || first.High != 50150 || first.Low != 49900 || first.Close != 50100 || first.Volume != 10.0 {
		t.Errorf("unexpected candle: %+v", first)
	}
}

func TestGetAllCandlesPagination(t *testing.T) {
	base := int64(1700000000000)
	hour := int64(3600000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endTime := r.URL.Query().Get("endTime")
		if endTime == "" {
			// Первая страница: две самые свежие свечи
			fmt.Fprintf(w, `{"code":"00000","msg":"success","data":[
				["%d","50200","50300","50100","50250","1","1"],
				["%d","50100","50200","50000","50150","1","1"]
			]}`, base+3*hour, base+2*hour)
			return
		}
		// Вторая страница: более старые свечи
		fmt.Fprintf(w, `{"code":"00000","msg":"success","data":[
			["%d","50000","50100","49900","50050","1","1"],
			["%d","49900","50000","49800","49950","1","1"]
		]}`, base+hour, base)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	start := time.UnixMilli(base + hour).UTC()

	candles, err := client.GetAllCandles(context.Background(), "BTCUSDT", "1h", start, 0)
	if err != nil {
		t.Fatalf("GetAllCandles() error: %v", err)
	}

	// Свеча на base отрезана границей start
	if len(candles) != 3 {
		t.Fatalf("len(candles) = %d, want 3", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Timestamp.Before(candles[i].Timestamp) {
			t.Fatal("candles are not strictly ascending")
		}
	}
	if candles[0].Timestamp.UnixMilli() != base+hour {
		t.Errorf("oldest candle ts = %d, want %d", candles[0].Timestamp.UnixMilli(), base+hour)
	}
}

func TestGetAllCandlesMaxCount(t *testing.T) {
	base := int64(1700000000000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":"00000","msg":"success","data":[
			["%d","3","3","3","3","1","1"],
			["%d","2","2","2","2","1","1"],
			["%d","1","1","1","1","1","1"]
		]}`, base+2000, base+1000, base)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	candles, err := client.GetAllCandles(context.Background(), "BTCUSDT", "1m", time.UnixMilli(base).UTC(), 2)
	if err != nil {
		t.Fatalf("GetAllCandles() error: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2 (maxCount)", len(candles))
	}
	// Остаются самые свежие свечи
	if candles[1].Close != 3 || candles[0].Close != 2 {
		t.Errorf("unexpected candles kept: %+v", candles)
	}
}
