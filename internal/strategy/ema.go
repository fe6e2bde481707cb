package strategy

import (
	"tradebot/internal/models"
)

const (
	defaultEMAFast = 9
	defaultEMASlow = 21
)

// emaCrossover торгует пересечения быстрой и медленной EMA:
// вход в лонг когда быстрая пересекает медленную снизу вверх,
// закрытие позиции при обратном пересечении.
type emaCrossover struct {
	baseStrategy
	fastPeriod int
	slowPeriod int
}

func newEMACrossover(params map[string]interface{}) (Strategy, error) {
	rec := models.StrategyRecord{Params: params}
	s := &emaCrossover{
		baseStrategy: newBase(params),
		fastPeriod:   int(rec.ParamFloat("ema_fast", defaultEMAFast)),
		slowPeriod:   int(rec.ParamFloat("ema_slow", defaultEMASlow)),
	}
	if s.fastPeriod < 2 {
		s.fastPeriod = defaultEMAFast
	}
	if s.slowPeriod <= s.fastPeriod {
		s.slowPeriod = s.fastPeriod * 2
	}
	return s, nil
}

func (s *emaCrossover) Name() string { return "ema_crossover" }

func (s *emaCrossover) GenerateSignal(price float64, candles []models.Candle, position *models.Position) *Signal {
	if exit := s.checkExits(price, position); exit != nil {
		return exit
	}

	// +1 свеча, чтобы было предыдущее значение для детекции пересечения
	if len(candles) < s.slowPeriod+1 {
		return hold("warming up")
	}

	values := closes(candles)
	fast := ema(values, s.fastPeriod)
	slow := ema(values, s.slowPeriod)
	if len(fast) < 2 || len(slow) < 2 {
		return hold("warming up")
	}

	// Выравниваем хвосты рядов: последние значения соответствуют
	// последним свечам
	fastNow, fastPrev := fast[len(fast)-1], fast[len(fast)-2]
	slowNow, slowPrev := slow[len(slow)-1], slow[len(slow)-2]

	crossedUp := fastPrev <= slowPrev && fastNow > slowNow
	crossedDown := fastPrev >= slowPrev && fastNow < slowNow

	if position == nil {
		if crossedUp {
			return &Signal{Action: ActionBuy, Reason: "ema cross up", Confidence: 0.7}
		}
		return hold("no crossover")
	}

	if crossedDown {
		return &Signal{Action: ActionClose, Reason: "ema cross down", Confidence: 0.7}
	}
	return hold("trend intact")
}
