package bot

import (
	"context"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// ============================================================
// Порты торгового ядра
// ============================================================
//
// Все зависимости цикла и оркестратора передаются явно через эти
// интерфейсы. Глобальных синглтонов нет: в тестах каждая зависимость
// подменяется моком.

// ExchangeAPI - операции биржи, необходимые торговому циклу
type ExchangeAPI interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]exchange.Position, error)
	GetSinglePosition(ctx context.Context, symbol string) (*exchange.Position, error)
	PlaceMarketOrder(ctx context.Context, symbol, side string, size float64, reduceOnly bool) (*exchange.Order, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	GetAllCandles(ctx context.Context, symbol, timeframe string, start time.Time, maxCount int) ([]exchange.Candle, error)
}

// ClientFactory создает биржевого клиента из расшифрованных ключей
type ClientFactory func(apiKey, secretKey, passphrase string) (ExchangeAPI, error)

// BotStore - персистентное состояние ботов
type BotStore interface {
	GetByUser(userID int64) (*models.BotRecord, error)
	Upsert(bot *models.BotRecord) error
	SetRunning(userID int64, running bool) error
	ListRunning() ([]models.BotRecord, error)
}

// RiskStore - риск-настройки пользователей
type RiskStore interface {
	GetByUser(userID int64) (*models.RiskSettings, error)
}

// TradeStore - журнал сделок
type TradeStore interface {
	Insert(trade *models.TradeRecord) error
	SumPnlSince(userID int64, since time.Time) (float64, error)
}

// APIKeyStore - зашифрованные ключи биржи
type APIKeyStore interface {
	GetByUser(userID int64) (*models.APIKey, error)
}

// StrategyStore - записи стратегий
type StrategyStore interface {
	GetByID(id int64) (*models.StrategyRecord, error)
}

// EquityStore - история эквити
type EquityStore interface {
	Insert(point *models.EquityPoint) error
}

// Decryptor расшифровывает секреты API ключей
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// Notifier доставляет уведомления пользователю.
// Реализация обязана быть fire-and-forget: ошибки доставки
// не влияют на торговлю.
type Notifier interface {
	Notify(n *models.Notification)
}
