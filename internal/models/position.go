package models

import "time"

// Направления позиции
const (
	PositionLong  = "long"  // длинная позиция (ставка на рост)
	PositionShort = "short" // короткая позиция (ставка на падение)
)

// Position представляет открытую позицию, отслеживаемую циклом бота
//
// In-memory состояние: позиция принадлежит ровно одному циклу и никогда
// не читается другими задачами. При старте цикла сверяется с живыми
// позициями на бирже, чтобы после рестарта процесса не открыть дубль.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // "long" или "short"
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	Leverage   int       `json:"leverage"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Pnl возвращает реализованный PNL при закрытии позиции по цене exitPrice
//
// Long PNL = (P_exit - P_entry) × size, Short PNL = (P_entry - P_exit) × size
func (p *Position) Pnl(exitPrice float64) float64 {
	if p == nil || p.Size <= 0 {
		return 0
	}
	switch p.Side {
	case PositionShort:
		return (p.EntryPrice - exitPrice) * p.Size
	default:
		return (exitPrice - p.EntryPrice) * p.Size
	}
}
