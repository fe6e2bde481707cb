package models

import "time"

// RiskSettings представляет риск-лимиты пользователя
//
// Для торгового ядра запись доступна только на чтение.
// nil в любом поле означает "лимит не задан" (проверка проходит тривиально).
type RiskSettings struct {
	UserID         int64     `json:"user_id" db:"user_id"`
	DailyLossLimit *float64  `json:"daily_loss_limit" db:"daily_loss_limit"` // USDT, null = без лимита
	MaxPositions   *int      `json:"max_positions" db:"max_positions"`       // null = без лимита
	MaxLeverage    *int      `json:"max_leverage" db:"max_leverage"`         // null = без лимита
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
