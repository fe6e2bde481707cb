package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
	"tradebot/pkg/retry"
	"tradebot/pkg/utils"
)

// ============================================================
// Торговый цикл
// ============================================================

// LoopConfig содержит настройки торгового цикла
type LoopConfig struct {
	TickTimeout          time.Duration      // максимум ожидания тика до предупреждения (default: 60s)
	CooldownDelay        time.Duration      // пауза после ошибки итерации (default: 1s)
	PostTickSleep        time.Duration      // пауза после успешной итерации (default: 100ms)
	MaxConsecutiveErrors int                // подряд идущих ошибок до остановки (default: 10)
	CandleWindowSize     int                // размер окна свечей (default: 200)
	MinOrderSizes        map[string]float64 // минимальный размер ордера по символам
	AssumeFlatForEntry   bool               // считать позицию плоской при недоступной сверке
}

// DefaultLoopConfig возвращает конфигурацию по умолчанию
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickTimeout:          60 * time.Second,
		CooldownDelay:        time.Second,
		PostTickSleep:        100 * time.Millisecond,
		MaxConsecutiveErrors: 10,
		CandleWindowSize:     models.CandleWindowSize,
		MinOrderSizes: map[string]float64{
			"BTCUSDT": 0.001,
			"ETHUSDT": 0.01,
		},
		AssumeFlatForEntry: false,
	}
}

// LoopParams - зависимости торгового цикла
type LoopParams struct {
	UserID   int64
	Record   *models.StrategyRecord
	Strategy strategy.Strategy
	API      ExchangeAPI
	Ticks    <-chan models.Tick
	Gate     *RiskGate
	Trades   TradeStore
	Equity   EquityStore
	Bots     BotStore
	Notifier Notifier
	Config   LoopConfig
}

// Loop - торговый цикл одного пользователя.
//
// Цикл читает тики своей подписки, прогоняет каждый через конвейер
// сигнал → риск → сайзинг → ордер и ведет учет сделок. Остановка:
// отмена контекста, закрытие канала тиков или порог подряд идущих
// ошибок.
type Loop struct {
	userID     int64
	strategyID int64
	symbol     string
	timeframe  string
	strat      strategy.Strategy
	api        ExchangeAPI
	ticks      <-chan models.Tick
	gate       *RiskGate
	trades     TradeStore
	equity     EquityStore
	bots       BotStore
	notifier   Notifier
	cfg        LoopConfig

	mu                sync.RWMutex
	state             string
	stopReason        string
	position          *models.Position
	flatConfirmed     bool
	consecutiveErrors int

	window *models.CandleWindow
}

// NewLoop создает торговый цикл
func NewLoop(p LoopParams) *Loop {
	cfg := p.Config
	if cfg.TickTimeout <= 0 {
		cfg = DefaultLoopConfig()
	}

	return &Loop{
		userID:     p.UserID,
		strategyID: p.Record.ID,
		symbol:     models.NormalizeSymbol(p.Record.Symbol),
		timeframe:  p.Record.Timeframe,
		strat:      p.Strategy,
		api:        p.API,
		ticks:      p.Ticks,
		gate:       p.Gate,
		trades:     p.Trades,
		equity:     p.Equity,
		bots:       p.Bots,
		notifier:   p.Notifier,
		cfg:        cfg,
		state:      StateInitializing,
		window:     models.NewCandleWindow(cfg.CandleWindowSize),
	}
}

// State возвращает текущее состояние цикла
func (l *Loop) State() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// StopReason возвращает причину остановки (пусто пока цикл жив)
func (l *Loop) StopReason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopReason
}

// Position возвращает копию открытой позиции или nil
func (l *Loop) Position() *models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.position == nil {
		return nil
	}
	p := *l.position
	return &p
}

func (l *Loop) setState(state string) {
	l.mu.Lock()
	if CanTransition(l.state, state) {
		l.state = state
	}
	l.mu.Unlock()
}

func (l *Loop) setStopReason(reason string) {
	l.mu.Lock()
	if l.stopReason == "" {
		l.stopReason = reason
	}
	l.mu.Unlock()
}

// ============================================================
// Жизненный цикл
// ============================================================

// Run выполняет торговый цикл до остановки. Блокирует вызывающего.
func (l *Loop) Run(ctx context.Context) {
	defer l.cleanup()

	// Сверка позиции до первого тика: после рестарта сервиса на бирже
	// могла остаться открытая позиция
	l.reconcilePosition(ctx)
	l.seedCandles(ctx)

	l.setState(StateRunning)
	l.notify(models.EventBotStatus, models.SeverityInfo, "bot started", nil)
	log.Printf("[INFO] loop: user %d started (%s %s %s)", l.userID, l.strat.Name(), l.symbol, l.timeframe)

	for {
		select {
		case <-ctx.Done():
			l.setStopReason(StopReasonCancelled)
			return

		case tick, ok := <-l.ticks:
			if !ok {
				l.setStopReason(StopReasonCancelled)
				return
			}
			if stop := l.handleTick(ctx, tick); stop {
				return
			}

		case <-time.After(l.cfg.TickTimeout):
			log.Printf("[WARN] loop: NO_MARKET_DATA for user %d symbol %s (%v without ticks)",
				l.userID, l.symbol, l.cfg.TickTimeout)
			l.notify(models.EventRiskAlert, models.SeverityWarn, "no market data", nil)
		}
	}
}

// handleTick обрабатывает один тик и возвращает true если цикл должен
// остановиться
func (l *Loop) handleTick(ctx context.Context, tick models.Tick) bool {
	err := l.processTick(ctx, tick)
	if err == nil {
		l.mu.Lock()
		if l.consecutiveErrors > 0 {
			l.consecutiveErrors = 0
		}
		l.mu.Unlock()
		l.setState(StateRunning)

		sleepCtx(ctx, l.cfg.PostTickSleep)
		return false
	}

	l.mu.Lock()
	l.consecutiveErrors++
	errCount := l.consecutiveErrors
	l.mu.Unlock()

	RecordLoopError("tick")
	l.setState(StateDegraded)
	log.Printf("[ERROR] loop: user %d tick failed (%d/%d): %v",
		l.userID, errCount, l.cfg.MaxConsecutiveErrors, err)

	if errCount >= l.cfg.MaxConsecutiveErrors {
		log.Printf("[ERROR] loop: user %d TOO_MANY_ERRORS, stopping", l.userID)
		l.setStopReason(StopReasonTooManyErrors)
		l.notify(models.EventBotStatus, models.SeverityError, "bot stopped: too many errors", nil)
		return true
	}

	sleepCtx(ctx, l.cfg.CooldownDelay)
	return false
}

func (l *Loop) cleanup() {
	l.setStopReason(StopReasonCancelled)
	l.mu.Lock()
	l.state = StateStopped
	reason := l.stopReason
	l.mu.Unlock()

	RecordLoopStop(reason)

	if err := l.bots.SetRunning(l.userID, false); err != nil {
		log.Printf("[WARN] loop: failed to clear is_running for user %d: %v", l.userID, err)
	}

	l.notify(models.EventBotStatus, models.SeverityInfo, "bot stopped", map[string]interface{}{
		"reason": reason,
	})
	log.Printf("[INFO] loop: user %d stopped (%s)", l.userID, reason)
}

// reconcilePosition сверяет локальное состояние с биржей.
// Возвращает true если сверка удалась.
func (l *Loop) reconcilePosition(ctx context.Context) bool {
	pos, err := l.api.GetSinglePosition(ctx, l.symbol)
	if err != nil {
		log.Printf("[WARN] loop: user %d position reconcile failed: %v", l.userID, err)
		if l.cfg.AssumeFlatForEntry {
			l.mu.Lock()
			l.flatConfirmed = true
			l.mu.Unlock()
		}
		return false
	}

	l.mu.Lock()
	l.flatConfirmed = true
	if pos != nil {
		l.position = &models.Position{
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			EntryPrice: pos.EntryPrice,
			Size:       pos.Size,
			Leverage:   pos.Leverage,
			OpenedAt:   pos.UpdatedAt,
		}
	} else {
		l.position = nil
	}
	recovered := l.position
	l.mu.Unlock()

	if recovered != nil {
		log.Printf("[INFO] loop: user %d recovered %s position %s size %.8f entry %.4f",
			l.userID, recovered.Side, recovered.Symbol, recovered.Size, recovered.EntryPrice)
	}
	return true
}

// seedCandles прогревает окно историей с биржи. Best-effort: без
// истории стратегия просто дольше прогревается на живых тиках.
func (l *Loop) seedCandles(ctx context.Context) {
	candles, err := l.api.GetAllCandles(ctx, l.symbol, l.timeframe, time.Time{}, l.cfg.CandleWindowSize)
	if err != nil {
		log.Printf("[WARN] loop: user %d candle warmup failed: %v", l.userID, err)
		return
	}

	seed := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		seed = append(seed, models.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	l.window.Seed(seed)
}

// ============================================================
// Тиковый конвейер
// ============================================================

func (l *Loop) processTick(ctx context.Context, tick models.Tick) error {
	if !models.SameSymbol(tick.Symbol, l.symbol) {
		RecordTickDiscarded("symbol_mismatch")
		return nil
	}
	if tick.Price <= 0 {
		RecordTickDiscarded("invalid_price")
		return nil
	}

	l.window.Append(tick.Candle())
	RecordTickProcessed(l.symbol)

	err := l.applySignal(ctx, tick)

	// Точка эквити пишется на каждом тике, был сигнал или нет
	l.sampleEquity(tick.Price)

	return err
}

// applySignal прогоняет тик через стратегию и выполняет ее решение
func (l *Loop) applySignal(ctx context.Context, tick models.Tick) error {
	sig := l.strat.GenerateSignal(tick.Price, l.window.Candles(), l.Position())
	if sig == nil {
		return nil
	}
	RecordSignal(l.strat.Name(), sig.Action)

	switch sig.Action {
	case strategy.ActionClose:
		if l.Position() == nil {
			return nil
		}
		return l.closePosition(ctx, sig.Reason, tick.Price)

	case strategy.ActionBuy, strategy.ActionSell:
		if l.Position() != nil {
			return nil
		}
		return l.enterPosition(ctx, sig, tick.Price)
	}

	return nil
}

// enterPosition выполняет стадии входа: сверка → риск → сайзинг → ордер
func (l *Loop) enterPosition(ctx context.Context, sig *strategy.Signal, price float64) error {
	l.mu.RLock()
	flatConfirmed := l.flatConfirmed
	l.mu.RUnlock()

	if !flatConfirmed {
		if !l.reconcilePosition(ctx) {
			return fmt.Errorf("position state unknown, entry skipped")
		}
		if l.Position() != nil {
			return nil
		}
	}

	risk := l.checkRisk(ctx)
	if risk.status == stageBlock {
		if !risk.report.DailyLoss.Passed {
			RecordRiskBlock(BlockReasonDailyLoss)
		}
		if !risk.report.Positions.Passed {
			RecordRiskBlock(BlockReasonMaxPositions)
		}
		l.notify(models.EventRiskAlert, models.SeverityWarn, "entry blocked by risk limits", map[string]interface{}{
			"reasons":   risk.report.BlockedReasons,
			"today_pnl": risk.report.DailyLoss.TodayPnl,
		})
		log.Printf("[WARN] loop: user %d entry blocked: %v", l.userID, risk.report.BlockedReasons)
		return nil
	}

	sizing := l.computeSize(ctx, price, risk.report.Leverage.Allowed)
	switch sizing.status {
	case stageFail:
		return sizing.err
	case stageSkip:
		log.Printf("[WARN] loop: user %d entry skipped: %s", l.userID, sizing.reason)
		return nil
	}

	order := l.submitEntry(ctx, sig, sizing.size, risk.report.Leverage.Allowed, price)
	if order.status == stageFail {
		RecordOrder(sideForAction(sig.Action), "error")
		return order.err
	}
	RecordOrder(sideForAction(sig.Action), "ok")
	return nil
}

func (l *Loop) checkRisk(ctx context.Context) riskResult {
	report := l.gate.Evaluate(ctx, l.userID, l.api, l.strat.Leverage())
	if !report.CanTrade {
		return riskResult{status: stageBlock, report: report}
	}
	return riskResult{status: stageOK, report: report}
}

func (l *Loop) computeSize(ctx context.Context, price float64, leverage int) sizingResult {
	balance, err := l.api.GetBalance(ctx)
	if err != nil {
		return sizingResult{status: stageFail, err: fmt.Errorf("failed to fetch balance: %w", err)}
	}

	size := utils.CalculateOrderSize(balance, l.strat.PositionPercent(), leverage, price, l.minOrderSize())
	if size <= 0 {
		return sizingResult{status: stageSkip, reason: "insufficient balance", balance: balance}
	}
	return sizingResult{status: stageOK, size: size, balance: balance}
}

func (l *Loop) submitEntry(ctx context.Context, sig *strategy.Signal, size float64, leverage int, price float64) orderResult {
	// Плечо выставляется перед входом, неуспех не отменяет вход
	if err := l.api.SetLeverage(ctx, l.symbol, leverage); err != nil {
		log.Printf("[WARN] loop: user %d set leverage failed: %v", l.userID, err)
	}

	side := sideForAction(sig.Action)
	order, err := l.api.PlaceMarketOrder(ctx, l.symbol, side, size, false)
	if err != nil {
		return orderResult{status: stageFail, err: fmt.Errorf("entry order failed: %w", err)}
	}

	position := &models.Position{
		Symbol:     l.symbol,
		Side:       positionSideForAction(sig.Action),
		EntryPrice: price,
		Size:       size,
		Leverage:   leverage,
		OpenedAt:   time.Now().UTC(),
	}
	l.mu.Lock()
	l.position = position
	l.mu.Unlock()

	l.recordTrade(side, price, size, 0, nil)
	l.notify(models.EventTradeFilled, models.SeverityInfo, "position opened", map[string]interface{}{
		"symbol":   l.symbol,
		"side":     position.Side,
		"size":     size,
		"price":    price,
		"leverage": leverage,
		"reason":   sig.Reason,
	})
	log.Printf("[INFO] loop: user %d opened %s %s size %.8f @ %.4f (%s)",
		l.userID, position.Side, l.symbol, size, price, sig.Reason)

	return orderResult{status: stageOK, order: order}
}

// closePosition закрывает позицию reduce-only ордером.
// Закрытие критично: повторяем агрессивно, пока ошибка retryable.
func (l *Loop) closePosition(ctx context.Context, reason string, price float64) error {
	position := l.Position()
	if position == nil {
		return nil
	}

	side := exchange.SideSell
	if position.Side == models.PositionShort {
		side = exchange.SideBuy
	}

	cfg := retry.AggressiveConfig()
	cfg.RetryIf = retry.IsRetryable
	err := retry.Do(ctx, func() error {
		_, err := l.api.PlaceMarketOrder(ctx, l.symbol, side, position.Size, true)
		return err
	}, cfg)
	if err != nil {
		RecordOrder(side, "error")
		return fmt.Errorf("close order failed: %w", err)
	}
	RecordOrder(side, "ok")

	pnl := position.Pnl(price)
	l.mu.Lock()
	l.position = nil
	l.mu.Unlock()

	l.recordTrade(side, price, position.Size, pnl, &reason)
	l.notify(models.EventPositionClosed, models.SeverityInfo, "position closed", map[string]interface{}{
		"symbol": l.symbol,
		"size":   position.Size,
		"price":  price,
		"pnl":    pnl,
		"reason": reason,
	})
	log.Printf("[INFO] loop: user %d closed %s %s size %.8f @ %.4f pnl %.4f (%s)",
		l.userID, position.Side, l.symbol, position.Size, price, pnl, reason)

	return nil
}

// ============================================================
// Учет
// ============================================================

// recordTrade пишет сделку в журнал. Неуспех записи не ошибка торговли,
// но искажает дневной PnL, поэтому логируется как ERROR.
func (l *Loop) recordTrade(side string, price, size, pnl float64, exitReason *string) {
	trade := &models.TradeRecord{
		UserID:     l.userID,
		StrategyID: l.strategyID,
		Symbol:     l.symbol,
		Side:       side,
		Price:      price,
		Size:       size,
		Pnl:        pnl,
		ExitReason: exitReason,
	}
	if err := l.trades.Insert(trade); err != nil {
		log.Printf("[ERROR] loop: user %d failed to record trade: %v", l.userID, err)
	}
}

// sampleEquity пишет цену тика как точку эквити. Best-effort:
// неуспех записи не влияет на здоровье итерации.
func (l *Loop) sampleEquity(price float64) {
	if l.equity == nil {
		return
	}
	point := &models.EquityPoint{
		UserID: l.userID,
		Equity: price,
	}
	if err := l.equity.Insert(point); err != nil {
		log.Printf("[WARN] loop: user %d failed to store equity point: %v", l.userID, err)
	}
}

func (l *Loop) notify(event, severity, message string, meta map[string]interface{}) {
	if l.notifier == nil {
		return
	}
	l.notifier.Notify(&models.Notification{
		Timestamp: time.Now().UTC(),
		UserID:    l.userID,
		Event:     event,
		Severity:  severity,
		Message:   message,
		Meta:      meta,
	})
}

// ============================================================
// Вспомогательные функции
// ============================================================

func (l *Loop) minOrderSize() float64 {
	if l.cfg.MinOrderSizes == nil {
		return 0
	}
	return l.cfg.MinOrderSizes[l.symbol]
}

func sideForAction(action string) string {
	if action == strategy.ActionSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

func positionSideForAction(action string) string {
	if action == strategy.ActionSell {
		return models.PositionShort
	}
	return models.PositionLong
}

// sleepCtx ждет delay или отмены контекста
func sleepCtx(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
