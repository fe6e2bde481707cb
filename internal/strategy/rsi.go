package strategy

import (
	"tradebot/internal/models"
)

const (
	defaultRSIPeriod     = 14
	defaultRSIOversold   = 30
	defaultRSIOverbought = 70
)

// rsiReversal торгует возврат к среднему: вход в лонг на перепроданности,
// закрытие на перекупленности.
type rsiReversal struct {
	baseStrategy
	period     int
	oversold   float64
	overbought float64
}

func newRSIReversal(params map[string]interface{}) (Strategy, error) {
	rec := models.StrategyRecord{Params: params}
	s := &rsiReversal{
		baseStrategy: newBase(params),
		period:       int(rec.ParamFloat("rsi_period", defaultRSIPeriod)),
		oversold:     rec.ParamFloat("rsi_oversold", defaultRSIOversold),
		overbought:   rec.ParamFloat("rsi_overbought", defaultRSIOverbought),
	}
	if s.period < 2 {
		s.period = defaultRSIPeriod
	}
	if s.oversold <= 0 || s.overbought >= 100 || s.oversold >= s.overbought {
		s.oversold = defaultRSIOversold
		s.overbought = defaultRSIOverbought
	}
	return s, nil
}

func (s *rsiReversal) Name() string { return "rsi_reversal" }

func (s *rsiReversal) GenerateSignal(price float64, candles []models.Candle, position *models.Position) *Signal {
	if exit := s.checkExits(price, position); exit != nil {
		return exit
	}

	value, ok := rsi(closes(candles), s.period)
	if !ok {
		return hold("warming up")
	}

	if position == nil {
		if value <= s.oversold {
			return &Signal{Action: ActionBuy, Reason: "rsi oversold", Confidence: 0.6}
		}
		return hold("rsi neutral")
	}

	if value >= s.overbought {
		return &Signal{Action: ActionClose, Reason: "rsi overbought", Confidence: 0.6}
	}
	return hold("rsi neutral")
}
