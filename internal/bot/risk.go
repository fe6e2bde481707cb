package bot

import (
	"context"
	"fmt"
	"log"

	"tradebot/pkg/utils"
)

// ============================================================
// Риск-контроль
// ============================================================

// Причины блокировки входа
const (
	BlockReasonDailyLoss    = "daily_loss_limit"
	BlockReasonMaxPositions = "max_positions"
)

// DailyLossCheck - результат проверки дневного лимита убытка
type DailyLossCheck struct {
	Passed   bool     `json:"passed"`
	TodayPnl float64  `json:"today_pnl"`
	Limit    *float64 `json:"limit,omitempty"`
}

// PositionCheck - результат проверки лимита открытых позиций
type PositionCheck struct {
	Passed  bool `json:"passed"`
	Current int  `json:"current"`
	Max     *int `json:"max,omitempty"`
}

// LeverageCheck - результат проверки плеча.
// Проверка информационная: плечо ограничивается до Allowed, вход
// не блокируется. Passed = false означает, что запрошенное плечо
// было урезано.
type LeverageCheck struct {
	Passed    bool `json:"passed"`
	Requested int  `json:"requested"`
	Allowed   int  `json:"allowed"`
	Max       *int `json:"max,omitempty"`
}

// RiskReport - сводный результат всех проверок перед входом
type RiskReport struct {
	CanTrade       bool           `json:"can_trade"`
	BlockedReasons []string       `json:"blocked_reasons,omitempty"`
	DailyLoss      DailyLossCheck `json:"daily_loss"`
	Positions      PositionCheck  `json:"positions"`
	Leverage       LeverageCheck  `json:"leverage"`
}

// RiskGate проверяет риск-лимиты пользователя перед каждым входом.
//
// Все проверки fail-open: недоступность БД или биржи не блокирует
// торговлю, лимит просто не применяется на этой итерации.
type RiskGate struct {
	risks  RiskStore
	trades TradeStore
}

// NewRiskGate создает риск-контроль
func NewRiskGate(risks RiskStore, trades TradeStore) *RiskGate {
	return &RiskGate{risks: risks, trades: trades}
}

// Evaluate выполняет все проверки и возвращает отчет.
// requestedLeverage - плечо, запрошенное стратегией; фактически
// применяется Leverage.Allowed.
func (g *RiskGate) Evaluate(ctx context.Context, userID int64, api ExchangeAPI, requestedLeverage int) *RiskReport {
	report := &RiskReport{CanTrade: true}

	settings, err := g.risks.GetByUser(userID)
	if err != nil {
		// Без настроек лимитов нет: торгуем
		log.Printf("[WARN] risk: failed to load settings for user %d: %v", userID, err)
		report.DailyLoss = DailyLossCheck{Passed: true}
		report.Positions = PositionCheck{Passed: true}
		report.Leverage = LeverageCheck{Passed: true, Requested: requestedLeverage, Allowed: requestedLeverage}
		return report
	}

	report.DailyLoss = g.checkDailyLoss(userID, settings.DailyLossLimit)
	report.Positions = g.checkMaxPositions(ctx, api, settings.MaxPositions)
	report.Leverage = checkLeverage(requestedLeverage, settings.MaxLeverage)

	if !report.DailyLoss.Passed {
		report.CanTrade = false
		report.BlockedReasons = append(report.BlockedReasons, BlockReasonDailyLoss)
	}
	if !report.Positions.Passed {
		report.CanTrade = false
		report.BlockedReasons = append(report.BlockedReasons, BlockReasonMaxPositions)
	}
	if !report.Leverage.Passed {
		// Информационная запись: CanTrade не трогаем, но клэмп виден
		// потребителям отчета
		report.BlockedReasons = append(report.BlockedReasons,
			fmt.Sprintf("leverage limited (%dx -> %dx)", report.Leverage.Requested, report.Leverage.Allowed))
		log.Printf("[WARN] risk: user %d leverage limited, requested %dx, max allowed %dx",
			userID, report.Leverage.Requested, report.Leverage.Allowed)
	}

	return report
}

// checkDailyLoss сравнивает PnL с начала суток (UTC) с лимитом убытка
func (g *RiskGate) checkDailyLoss(userID int64, limit *float64) DailyLossCheck {
	check := DailyLossCheck{Passed: true, Limit: limit}
	if limit == nil || *limit <= 0 {
		return check
	}

	pnl, err := g.trades.SumPnlSince(userID, utils.GetDayStart())
	if err != nil {
		log.Printf("[WARN] risk: failed to sum daily pnl for user %d: %v", userID, err)
		return check
	}

	check.TodayPnl = pnl
	if pnl < 0 && -pnl >= *limit {
		check.Passed = false
	}
	return check
}

// checkMaxPositions считает открытые позиции на бирже
func (g *RiskGate) checkMaxPositions(ctx context.Context, api ExchangeAPI, max *int) PositionCheck {
	check := PositionCheck{Passed: true, Max: max}
	if max == nil || *max <= 0 {
		return check
	}

	positions, err := api.GetPositions(ctx)
	if err != nil {
		log.Printf("[WARN] risk: failed to fetch positions: %v", err)
		return check
	}

	check.Current = len(positions)
	if len(positions) >= *max {
		check.Passed = false
	}
	return check
}

// checkLeverage ограничивает запрошенное плечо максимумом пользователя
func checkLeverage(requested int, max *int) LeverageCheck {
	check := LeverageCheck{Passed: true, Requested: requested, Allowed: requested, Max: max}
	if requested < 1 {
		check.Allowed = 1
	}
	if max != nil && *max > 0 && check.Allowed > *max {
		check.Allowed = *max
		check.Passed = false
	}
	return check
}
