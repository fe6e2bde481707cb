package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
)

var errNoBotRecord = errors.New("bot record not found")

// ============================================================
// Моки зависимостей торгового цикла
// ============================================================

type placedOrder struct {
	Symbol     string
	Side       string
	Size       float64
	ReduceOnly bool
}

type mockExchange struct {
	mu sync.Mutex

	balance    float64
	balanceErr error

	positions    []exchange.Position
	positionsErr error

	single    *exchange.Position
	singleErr error

	orders    []placedOrder
	orderErr  error
	failFirst int // первые N ордеров падают с orderErr; -1 = падают все

	leverageCalls []int
	leverageErr   error

	candles    []exchange.Candle
	candlesErr error
}

func (m *mockExchange) GetBalance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, m.balanceErr
}

func (m *mockExchange) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions, m.positionsErr
}

func (m *mockExchange) GetSinglePosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.single, m.singleErr
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, size float64, reduceOnly bool) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirst != 0 {
		if m.failFirst > 0 {
			m.failFirst--
		}
		return nil, m.orderErr
	}
	m.orders = append(m.orders, placedOrder{Symbol: symbol, Side: side, Size: size, ReduceOnly: reduceOnly})
	return &exchange.Order{OrderID: "mock-1", Symbol: symbol, Side: side, Size: size, ReduceOnly: reduceOnly}, nil
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageCalls = append(m.leverageCalls, leverage)
	return m.leverageErr
}

func (m *mockExchange) GetAllCandles(ctx context.Context, symbol, timeframe string, start time.Time, maxCount int) ([]exchange.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candles, m.candlesErr
}

func (m *mockExchange) placedOrders() []placedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]placedOrder, len(m.orders))
	copy(out, m.orders)
	return out
}

// ============ Хранилища ============

type mockBotStore struct {
	mu            sync.Mutex
	records       map[int64]*models.BotRecord
	running       map[int64]bool
	setRunningErr error
}

func newMockBotStore() *mockBotStore {
	return &mockBotStore{
		records: make(map[int64]*models.BotRecord),
		running: make(map[int64]bool),
	}
}

func (m *mockBotStore) GetByUser(userID int64) (*models.BotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[userID]; ok {
		r := *rec
		return &r, nil
	}
	return nil, errNoBotRecord
}

func (m *mockBotStore) Upsert(bot *models.BotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *bot
	m.records[bot.UserID] = &r
	return nil
}

func (m *mockBotStore) SetRunning(userID int64, running bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setRunningErr != nil {
		return m.setRunningErr
	}
	m.running[userID] = running
	return nil
}

func (m *mockBotStore) ListRunning() ([]models.BotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BotRecord
	for id, rec := range m.records {
		if m.running[id] {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockBotStore) isRunning(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[userID]
}

type mockRiskStore struct {
	settings *models.RiskSettings
	err      error
}

func (m *mockRiskStore) GetByUser(userID int64) (*models.RiskSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return &models.RiskSettings{UserID: userID}, nil
	}
	return m.settings, nil
}

type mockTradeStore struct {
	mu        sync.Mutex
	trades    []*models.TradeRecord
	sum       float64
	sumErr    error
	insertErr error
}

func (m *mockTradeStore) Insert(trade *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	trade.ID = int64(len(m.trades) + 1)
	m.trades = append(m.trades, trade)
	return nil
}

func (m *mockTradeStore) SumPnlSince(userID int64, since time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sum, m.sumErr
}

func (m *mockTradeStore) recorded() []*models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

type mockKeyStore struct {
	key *models.APIKey
	err error
}

func (m *mockKeyStore) GetByUser(userID int64) (*models.APIKey, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.key, nil
}

type mockStrategyStore struct {
	strategies map[int64]*models.StrategyRecord
	err        error
}

func (m *mockStrategyStore) GetByID(id int64) (*models.StrategyRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.strategies[id]; ok {
		return s, nil
	}
	return nil, m.err
}

type mockEquityStore struct {
	mu     sync.Mutex
	points []*models.EquityPoint
	err    error
}

func (m *mockEquityStore) Insert(point *models.EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.points = append(m.points, point)
	return nil
}

func (m *mockEquityStore) recorded() []*models.EquityPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.EquityPoint, len(m.points))
	copy(out, m.points)
	return out
}

type mockDecryptor struct {
	err error
}

func (m *mockDecryptor) Decrypt(ciphertext string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "dec:" + ciphertext, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	events []*models.Notification
}

func (m *mockNotifier) Notify(n *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, n)
}

func (m *mockNotifier) byEvent(event string) []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for _, n := range m.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

// ============ Стратегия со сценарием ============

// scriptedStrategy возвращает заранее заданные сигналы по порядку,
// после исчерпания сценария держит hold
type scriptedStrategy struct {
	signals []*strategy.Signal
	idx     int
	percent float64
	lev     int
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) GenerateSignal(price float64, candles []models.Candle, position *models.Position) *strategy.Signal {
	if s.idx >= len(s.signals) {
		return &strategy.Signal{Action: strategy.ActionHold}
	}
	sig := s.signals[s.idx]
	s.idx++
	return sig
}

func (s *scriptedStrategy) PositionPercent() float64 {
	if s.percent == 0 {
		return 0.1
	}
	return s.percent
}

func (s *scriptedStrategy) Leverage() int {
	if s.lev == 0 {
		return 5
	}
	return s.lev
}
