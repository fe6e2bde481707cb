package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/strategy"
)

// ============================================================
// Оркестратор ботов
// ============================================================

// StrategyLoadError - стратегия пользователя не собирается.
// Терминальная ошибка запуска: повторы бессмысленны.
type StrategyLoadError struct {
	StrategyID int64
	Err        error
}

func (e *StrategyLoadError) Error() string {
	return fmt.Sprintf("failed to load strategy %d: %v", e.StrategyID, e.Err)
}

func (e *StrategyLoadError) Unwrap() error { return e.Err }

// OrchestratorDeps - зависимости оркестратора
type OrchestratorDeps struct {
	Bots       BotStore
	Strategies StrategyStore
	Keys       APIKeyStore
	Risks      RiskStore
	Trades     TradeStore
	Equity     EquityStore
	Clients    ClientFactory
	Decryptor  Decryptor
	Notifier   Notifier
	Bus        *TickBus
	LoopConfig LoopConfig
}

// BootstrapResult - итог восстановления ботов при старте сервиса
type BootstrapResult struct {
	Started int
	Failed  int
}

// loopHandle связывает цикл с его goroutine
type loopHandle struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator управляет торговыми циклами всех пользователей:
// максимум один живой цикл на пользователя.
type Orchestrator struct {
	deps OrchestratorDeps

	mu       sync.Mutex
	loops    map[int64]*loopHandle
	starting map[int64]struct{}
}

// NewOrchestrator создает оркестратор
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		loops:    make(map[int64]*loopHandle),
		starting: make(map[int64]struct{}),
	}
}

// Start запускает бота пользователя. Идемпотентен: запуск уже
// работающего бота не ошибка и не создает второй цикл.
//
// Параметр ctx ограничивает только подготовку запуска; сам цикл живет
// до Stop или Shutdown.
func (o *Orchestrator) Start(ctx context.Context, userID int64) error {
	o.mu.Lock()
	if handle, ok := o.loops[userID]; ok {
		select {
		case <-handle.done:
			// Цикл умер сам (например TOO_MANY_ERRORS): чистим и перезапускаем
			delete(o.loops, userID)
		default:
			o.mu.Unlock()
			return nil
		}
	}
	if _, ok := o.starting[userID]; ok {
		// Параллельный Start уже готовит цикл этого пользователя.
		// Второй запуск ничего не подписывает и не отписывает: чужую
		// подписку на шине трогать нельзя.
		o.mu.Unlock()
		return nil
	}
	o.starting[userID] = struct{}{}
	o.mu.Unlock()

	loop, err := o.buildLoop(userID)

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.starting, userID)

	if err != nil {
		return err
	}

	if err := o.deps.Bots.SetRunning(userID, true); err != nil {
		log.Printf("[WARN] orchestrator: failed to persist is_running for user %d: %v", userID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	handle := &loopHandle{
		loop:   loop,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.loops[userID] = handle
	ActiveLoops.Inc()

	go func() {
		defer func() {
			o.deps.Bus.Unsubscribe(userID)
			ActiveLoops.Dec()
			close(handle.done)
		}()
		loop.Run(loopCtx)
	}()

	return nil
}

// buildLoop собирает торговый цикл из персистентного состояния
func (o *Orchestrator) buildLoop(userID int64) (*Loop, error) {
	record, err := o.deps.Bots.GetByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot record: %w", err)
	}

	strategyRec, err := o.deps.Strategies.GetByID(record.StrategyID)
	if err != nil {
		return nil, &StrategyLoadError{StrategyID: record.StrategyID, Err: err}
	}

	strat, err := strategy.New(strategyRec.Code, strategyRec.Params)
	if err != nil {
		return nil, &StrategyLoadError{StrategyID: record.StrategyID, Err: err}
	}

	api, err := o.buildClient(userID)
	if err != nil {
		return nil, err
	}

	ticks := o.deps.Bus.Subscribe(userID)
	return NewLoop(LoopParams{
		UserID:   userID,
		Record:   strategyRec,
		Strategy: strat,
		API:      api,
		Ticks:    ticks,
		Gate:     NewRiskGate(o.deps.Risks, o.deps.Trades),
		Trades:   o.deps.Trades,
		Equity:   o.deps.Equity,
		Bots:     o.deps.Bots,
		Notifier: o.deps.Notifier,
		Config:   o.deps.LoopConfig,
	}), nil
}

// buildClient расшифровывает ключи и создает биржевого клиента
func (o *Orchestrator) buildClient(userID int64) (ExchangeAPI, error) {
	key, err := o.deps.Keys.GetByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load api keys: %w", err)
	}
	if !key.Complete() {
		return nil, fmt.Errorf("user %d: api key record is incomplete", userID)
	}

	secret, err := o.deps.Decryptor.Decrypt(key.SecretEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api secret: %w", err)
	}
	passphrase, err := o.deps.Decryptor.Decrypt(key.PassphraseEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api passphrase: %w", err)
	}

	return o.deps.Clients(key.Key, secret, passphrase)
}

// startFailureReason классифицирует терминальную ошибку запуска
func startFailureReason(err error) string {
	var loadErr *StrategyLoadError
	if errors.As(err, &loadErr) {
		return StopReasonStrategyLoadError
	}
	if errors.Is(err, exchange.ErrInvalidCredentials) {
		return StopReasonInvalidCredentials
	}
	return StopReasonCancelled
}

// Stop останавливает бота пользователя и ждет завершения цикла.
// Остановка незапущенного или уже завершившегося бота - no-op.
func (o *Orchestrator) Stop(ctx context.Context, userID int64) error {
	o.mu.Lock()
	handle, ok := o.loops[userID]
	if ok {
		delete(o.loops, userID)
	}
	o.mu.Unlock()

	if !ok {
		return nil
	}

	handle.cancel()
	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning проверяет наличие живого цикла. Мертвые записи
// (цикл завершился сам) убираются попутно.
func (o *Orchestrator) IsRunning(userID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	handle, ok := o.loops[userID]
	if !ok {
		return false
	}
	select {
	case <-handle.done:
		delete(o.loops, userID)
		return false
	default:
		return true
	}
}

// Status возвращает состояние цикла пользователя
func (o *Orchestrator) Status(userID int64) (string, bool) {
	o.mu.Lock()
	handle, ok := o.loops[userID]
	o.mu.Unlock()
	if !ok {
		return StateStopped, false
	}
	return handle.loop.State(), true
}

// Bootstrap восстанавливает ботов с is_running = true после рестарта
// сервиса. Частичный неуспех не прерывает восстановление остальных.
func (o *Orchestrator) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	var result BootstrapResult

	records, err := o.deps.Bots.ListRunning()
	if err != nil {
		return result, fmt.Errorf("failed to list running bots: %w", err)
	}

	for _, record := range records {
		if err := o.Start(ctx, record.UserID); err != nil {
			result.Failed++
			RecordLoopStop(startFailureReason(err))
			log.Printf("[ERROR] orchestrator: bootstrap failed for user %d: %v", record.UserID, err)
			// Терминальные ошибки сбрасывают is_running, чтобы бот не
			// зависал в restart-цикле
			if clearErr := o.deps.Bots.SetRunning(record.UserID, false); clearErr != nil {
				log.Printf("[WARN] orchestrator: failed to clear is_running for user %d: %v", record.UserID, clearErr)
			}
			continue
		}
		result.Started++
	}

	log.Printf("[INFO] orchestrator: bootstrap complete, started %d, failed %d", result.Started, result.Failed)
	return result, nil
}

// Shutdown останавливает все циклы и ждет их завершения
func (o *Orchestrator) Shutdown(timeout time.Duration) {
	o.mu.Lock()
	handles := make([]*loopHandle, 0, len(o.loops))
	for userID, handle := range o.loops {
		handles = append(handles, handle)
		delete(o.loops, userID)
	}
	o.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
	}

	deadline := time.After(timeout)
	for _, handle := range handles {
		select {
		case <-handle.done:
		case <-deadline:
			log.Printf("[WARN] orchestrator: shutdown timeout, %d loops may be unfinished", len(handles))
			return
		}
	}
}
