package strategy

import (
	"tradebot/internal/models"
)

// minWarmupCandles — минимум свечей перед первым входом
const minWarmupCandles = 5

// instantEntry входит в лонг сразу после прогрева окна.
// Используется для проверки торгового контура на живом аккаунте:
// один вход за время жизни стратегии, дальше только выходы по SL/TP.
type instantEntry struct {
	baseStrategy
	entered bool
}

func newInstantEntry(params map[string]interface{}) (Strategy, error) {
	return &instantEntry{baseStrategy: newBase(params)}, nil
}

func (s *instantEntry) Name() string { return "instant_entry" }

func (s *instantEntry) GenerateSignal(price float64, candles []models.Candle, position *models.Position) *Signal {
	if position != nil {
		if exit := s.checkExits(price, position); exit != nil {
			return exit
		}
		return hold("position open")
	}

	if s.entered {
		return hold("already entered")
	}
	if len(candles) < minWarmupCandles {
		return hold("warming up")
	}

	s.entered = true
	return &Signal{Action: ActionBuy, Reason: "instant entry", Confidence: 1}
}
