package models

import "time"

// BotRecord представляет персистентное состояние торгового бота пользователя
//
// Запись создаётся при первом выборе стратегии, обновляется при каждом
// старте/остановке и никогда не удаляется торговым ядром.
// Флаг is_running носит рекомендательный характер: фактическая живость
// цикла определяется оркестратором, который при расхождении
// самовосстанавливает значение в БД.
type BotRecord struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	StrategyID int64     `json:"strategy_id" db:"strategy_id"`
	IsRunning  bool      `json:"is_running" db:"is_running"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
