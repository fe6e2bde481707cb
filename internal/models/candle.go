package models

import (
	"strings"
	"time"
)

// CandleWindowSize — ёмкость окна свечей по умолчанию
const CandleWindowSize = 200

// Candle представляет один OHLCV бар
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Tick представляет одно рыночное обновление цены для инструмента
//
// Производится внешним источником (WebSocket фид), потребляется
// циклами ботов через общую шину тиков.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// Candle строит бар из тика; нулевые OHLC поля заполняются ценой
func (t *Tick) Candle() Candle {
	c := Candle{
		Timestamp: t.Time,
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Volume:    t.Volume,
	}
	if c.Open <= 0 {
		c.Open = t.Price
	}
	if c.High <= 0 {
		c.High = t.Price
	}
	if c.Low <= 0 {
		c.Low = t.Price
	}
	if c.Close <= 0 {
		c.Close = t.Price
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	return c
}

// CandleWindow — ограниченное упорядоченное окно свечей
//
// Фиксированная ёмкость, FIFO-вытеснение: при переполнении удаляется
// самый старый бар. Окно принадлежит ровно одному циклу бота и не
// требует синхронизации.
type CandleWindow struct {
	candles  []Candle
	capacity int
}

// NewCandleWindow создаёт окно заданной ёмкости (<=0 — ёмкость по умолчанию)
func NewCandleWindow(capacity int) *CandleWindow {
	if capacity <= 0 {
		capacity = CandleWindowSize
	}
	return &CandleWindow{
		candles:  make([]Candle, 0, capacity),
		capacity: capacity,
	}
}

// Append добавляет бар в окно, вытесняя самый старый при переполнении
func (w *CandleWindow) Append(c Candle) {
	if len(w.candles) >= w.capacity {
		// Сдвигаем вместо реаллокации: окно маленькое, копия дешёвая
		copy(w.candles, w.candles[1:])
		w.candles[len(w.candles)-1] = c
		return
	}
	w.candles = append(w.candles, c)
}

// Seed заполняет окно историческими барами (старые вытесняются как обычно)
func (w *CandleWindow) Seed(candles []Candle) {
	for _, c := range candles {
		w.Append(c)
	}
}

// Len возвращает текущее количество баров в окне
func (w *CandleWindow) Len() int {
	return len(w.candles)
}

// Capacity возвращает ёмкость окна
func (w *CandleWindow) Capacity() int {
	return w.capacity
}

// Candles возвращает копию содержимого окна в хронологическом порядке
func (w *CandleWindow) Candles() []Candle {
	out := make([]Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

// Last возвращает последний бар окна (ok=false если окно пустое)
func (w *CandleWindow) Last() (Candle, bool) {
	if len(w.candles) == 0 {
		return Candle{}, false
	}
	return w.candles[len(w.candles)-1], true
}

// NormalizeSymbol приводит символ инструмента к канонической форме
//
// Убирает разделители "/" и "-" и переводит в верхний регистр:
// "btc/usdt", "BTC-USDT" и "BTCUSDT" считаются одним инструментом.
func NormalizeSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(strings.TrimSpace(s))
}

// SameSymbol сравнивает два символа без учёта регистра и разделителей
func SameSymbol(a, b string) bool {
	return NormalizeSymbol(a) == NormalizeSymbol(b)
}
