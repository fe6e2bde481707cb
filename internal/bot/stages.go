package bot

import (
	"tradebot/internal/exchange"
)

// ============================================================
// Результаты стадий тикового конвейера
// ============================================================
//
// Каждая стадия возвращает типизированный результат вместо пары
// (значение, error): статус различает "вход заблокирован лимитом",
// "вход пропущен" и "стадия упала", и только последнее считается
// ошибкой итерации.

type stageStatus int

const (
	stageOK stageStatus = iota
	stageSkip
	stageBlock
	stageFail
)

// riskResult - итог проверки риск-лимитов
type riskResult struct {
	status stageStatus
	report *RiskReport
}

// sizingResult - итог расчета размера позиции
type sizingResult struct {
	status  stageStatus
	reason  string
	size    float64
	balance float64
	err     error
}

// orderResult - итог размещения ордера
type orderResult struct {
	status stageStatus
	order  *exchange.Order
	err    error
}
