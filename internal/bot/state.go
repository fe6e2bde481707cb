package bot

// ============================================================
// Состояния торгового цикла
// ============================================================

// Состояния жизненного цикла бота
const (
	StateInitializing = "initializing"
	StateRunning      = "running"
	StateDegraded     = "degraded"
	StateStopped      = "stopped"
)

// Причины остановки
const (
	StopReasonCancelled          = "cancelled"
	StopReasonTooManyErrors      = "too_many_errors"
	StopReasonStrategyLoadError  = "strategy_load_error"
	StopReasonInvalidCredentials = "invalid_credentials"
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[string][]string{
	StateInitializing: {StateRunning, StateStopped},
	StateRunning:      {StateDegraded, StateStopped},
	StateDegraded:     {StateRunning, StateStopped},
	StateStopped:      {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case StateInitializing:
		return "Бот запускается (загрузка стратегии и сверка позиции)"
	case StateRunning:
		return "Бот торгует"
	case StateDegraded:
		return "Бот работает с ошибками (повторяет попытки)"
	case StateStopped:
		return "Бот остановлен"
	default:
		return "Неизвестное состояние"
	}
}

// IsActive возвращает true если цикл жив
func IsActive(s string) bool {
	return s == StateInitializing || s == StateRunning || s == StateDegraded
}
