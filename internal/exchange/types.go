package exchange

import "time"

// Направления ордеров
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// Направления позиций (holdSide в терминах Bitget)
const (
	HoldSideLong  = "long"
	HoldSideShort = "short"
)

// Типы ордеров
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// AccountInfo содержит состояние фьючерсного аккаунта
type AccountInfo struct {
	MarginCoin   string  `json:"margin_coin"`
	Available    float64 `json:"available"`     // свободный баланс
	Equity       float64 `json:"equity"`        // общий equity
	UnrealizedPL float64 `json:"unrealized_pl"` // нереализованный PNL
}

// Ticker содержит информацию о текущей цене
type Ticker struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderBook представляет стакан ордеров
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // заявки на покупку, по убыванию цены
	Asks      []PriceLevel `json:"asks"` // заявки на продажу, по возрастанию цены
	Timestamp time.Time    `json:"timestamp"`
}

// PriceLevel представляет уровень цены в стакане
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Order представляет ордер на бирже
type Order struct {
	OrderID    string    `json:"order_id"`
	ClientOID  string    `json:"client_oid"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`       // "buy" или "sell"
	OrderType  string    `json:"order_type"` // "market" или "limit"
	Size       float64   `json:"size"`
	Price      float64   `json:"price"` // 0 для market
	Status     string    `json:"status"`
	ReduceOnly bool      `json:"reduce_only"`
	CreatedAt  time.Time `json:"created_at"`
}

// Position представляет открытую позицию на бирже
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // "long" или "short"
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	Leverage      int       `json:"leverage"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Candle представляет один OHLCV бар с биржи
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
