package models

import "time"

// TradeRecord представляет исполненную сделку
//
// Append-only запись: создаётся циклом бота после каждого исполнения ордера,
// читается риск-гейтом для агрегации дневного PNL.
type TradeRecord struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	StrategyID int64     `json:"strategy_id" db:"strategy_id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Side       string    `json:"side" db:"side"` // "buy" или "sell"
	Price      float64   `json:"price" db:"price"`
	Size       float64   `json:"size" db:"size"`
	Pnl        float64   `json:"pnl" db:"pnl"` // реализованный PNL, 0 для входа
	ExitReason *string   `json:"exit_reason,omitempty" db:"exit_reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EquityPoint представляет точечный замер equity аккаунта
//
// Пишется циклом бота best-effort на каждом тике; ошибки записи
// не влияют на торговлю.
type EquityPoint struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Equity    float64   `json:"equity" db:"equity"`
	Available float64   `json:"available" db:"available"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
