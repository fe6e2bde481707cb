package models

import "time"

// StrategyRecord представляет выбранную пользователем стратегию
//
// Code ссылается на скомпилированную реализацию из реестра стратегий;
// Params хранятся как JSON в БД и передаются конструктору стратегии.
type StrategyRecord struct {
	ID        int64                  `json:"id" db:"id"`
	UserID    int64                  `json:"user_id" db:"user_id"`
	Code      string                 `json:"code" db:"code"` // instant_entry, ema_crossover, rsi_reversal
	Name      string                 `json:"name" db:"name"`
	Symbol    string                 `json:"symbol" db:"symbol"`
	Timeframe string                 `json:"timeframe" db:"timeframe"` // 1m, 5m, 1h, ...
	Params    map[string]interface{} `json:"params" db:"params"`       // JSON в БД
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// ParamFloat возвращает числовой параметр стратегии или значение по умолчанию
func (s *StrategyRecord) ParamFloat(key string, def float64) float64 {
	if s == nil || s.Params == nil {
		return def
	}
	switch v := s.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}
