package models

import "time"

// Notification представляет уведомление о событии бота
type Notification struct {
	ID        int64                  `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	UserID    int64                  `json:"user_id" db:"user_id"`
	Event     string                 `json:"event" db:"event"`       // bot_status, trade_filled, position_closed, risk_alert, price_update
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// События уведомлений
const (
	EventBotStatus      = "bot_status"      // started / stopped / error / warning
	EventTradeFilled    = "trade_filled"    // исполнен ордер входа
	EventPositionClosed = "position_closed" // закрыта позиция
	EventRiskAlert      = "risk_alert"      // вход заблокирован риск-гейтом
	EventPriceUpdate    = "price_update"    // информационное обновление цены
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
