// Package strategy содержит торговые стратегии и их реестр.
//
// Стратегии компилируются вместе с приложением и выбираются по коду
// из записи стратегии пользователя. Динамической загрузки нет.
package strategy

import (
	"errors"
	"fmt"

	"tradebot/internal/models"
)

// ============================================================
// СИГНАЛЫ
// ============================================================

// Действия, которые стратегия может запросить у торгового цикла
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionClose = "close"
	ActionHold  = "hold"
)

// Signal представляет торговое решение стратегии на один тик
type Signal struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

func hold(reason string) *Signal {
	return &Signal{Action: ActionHold, Reason: reason}
}

// ============================================================
// ИНТЕРФЕЙС
// ============================================================

// Strategy генерирует торговые сигналы по потоку цен.
//
// GenerateSignal вызывается на каждый тик с текущей ценой, окном свечей
// и открытой позицией (nil если позиции нет). Реализации не обязаны быть
// потокобезопасными: каждый экземпляр принадлежит одному торговому циклу.
type Strategy interface {
	Name() string
	GenerateSignal(price float64, candles []models.Candle, position *models.Position) *Signal

	// Параметры сайзинга, используемые торговым циклом
	PositionPercent() float64
	Leverage() int
}

// ============================================================
// РЕЕСТР
// ============================================================

// ErrUnknownStrategy возвращается при неизвестном коде стратегии
var ErrUnknownStrategy = errors.New("unknown strategy code")

// Constructor создаёт экземпляр стратегии из параметров пользователя
type Constructor func(params map[string]interface{}) (Strategy, error)

var registry = map[string]Constructor{
	"instant_entry": newInstantEntry,
	"ema_crossover": newEMACrossover,
	"rsi_reversal":  newRSIReversal,
}

// New создаёт стратегию по её коду
func New(code string, params map[string]interface{}) (Strategy, error) {
	ctor, ok := registry[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, code)
	}
	return ctor(params)
}

// Codes возвращает коды всех зарегистрированных стратегий
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// ============================================================
// БАЗОВАЯ СТРАТЕГИЯ
// ============================================================

// Параметры по умолчанию
const (
	defaultPositionPercent = 0.1 // 10% свободного баланса
	defaultLeverage        = 5
	defaultStopLossPct     = 0.02 // 2%
	defaultTakeProfitPct   = 0.04 // 4%
)

// baseStrategy держит общие параметры сайзинга и выхода
type baseStrategy struct {
	positionPercent float64
	leverage        int
	stopLossPct     float64
	takeProfitPct   float64
}

func newBase(params map[string]interface{}) baseStrategy {
	rec := models.StrategyRecord{Params: params}
	b := baseStrategy{
		positionPercent: rec.ParamFloat("position_percent", defaultPositionPercent),
		leverage:        int(rec.ParamFloat("leverage", defaultLeverage)),
		stopLossPct:     rec.ParamFloat("stop_loss_pct", defaultStopLossPct),
		takeProfitPct:   rec.ParamFloat("take_profit_pct", defaultTakeProfitPct),
	}
	if b.positionPercent <= 0 || b.positionPercent > 1 {
		b.positionPercent = defaultPositionPercent
	}
	if b.leverage < 1 {
		b.leverage = defaultLeverage
	}
	return b
}

func (b baseStrategy) PositionPercent() float64 { return b.positionPercent }
func (b baseStrategy) Leverage() int            { return b.leverage }

// checkExits проверяет stop-loss и take-profit открытой позиции.
// Возвращает nil если выхода нет.
func (b baseStrategy) checkExits(price float64, position *models.Position) *Signal {
	if position == nil || position.EntryPrice <= 0 {
		return nil
	}

	var change float64
	switch position.Side {
	case models.PositionLong:
		change = (price - position.EntryPrice) / position.EntryPrice
	case models.PositionShort:
		change = (position.EntryPrice - price) / position.EntryPrice
	default:
		return nil
	}

	if b.stopLossPct > 0 && change <= -b.stopLossPct {
		return &Signal{Action: ActionClose, Reason: "stop_loss", Confidence: 1}
	}
	if b.takeProfitPct > 0 && change >= b.takeProfitPct {
		return &Signal{Action: ActionClose, Reason: "take_profit", Confidence: 1}
	}
	return nil
}
