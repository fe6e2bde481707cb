package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Bot      BotConfig
	Exchange ExchangeConfig
	Feed     FeedConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SecurityConfig - настройки шифрования API ключей
type SecurityConfig struct {
	EncryptionPassphrase string
	EncryptionSalt       string
}

// BotConfig - настройки торговых циклов
type BotConfig struct {
	TickBuffer           int           // ёмкость канала тиков на подписчика
	TickTimeout          time.Duration // ожидание тика до предупреждения NO_MARKET_DATA
	CooldownDelay        time.Duration // пауза после ошибки итерации
	PostTickSleep        time.Duration // пауза после успешной итерации
	MaxConsecutiveErrors int           // подряд идущих ошибок до остановки бота
	CandleWindowSize     int
	MinOrderSizes        map[string]float64
	AssumeFlatForEntry   bool // разрешать вход при недоступной сверке позиции
}

// ExchangeConfig - настройки REST клиента биржи
type ExchangeConfig struct {
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// FeedConfig - настройки рыночного фида
type FeedConfig struct {
	WSURL          string
	Symbols        []string
	ReconnectDelay time.Duration
	MaxDelay       time.Duration
	PingInterval   time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "tradebot"),
			User:            getEnv("DB_USER", "tradebot"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Security: SecurityConfig{
			EncryptionPassphrase: getEnv("ENCRYPTION_PASSPHRASE", ""),
			EncryptionSalt:       getEnv("ENCRYPTION_SALT", ""),
		},
		Bot: BotConfig{
			TickBuffer:           getEnvAsInt("BOT_TICK_BUFFER", 100),
			TickTimeout:          getEnvAsDuration("BOT_TICK_TIMEOUT", 60*time.Second),
			CooldownDelay:        getEnvAsDuration("BOT_COOLDOWN_DELAY", time.Second),
			PostTickSleep:        getEnvAsDuration("BOT_POST_TICK_SLEEP", 100*time.Millisecond),
			MaxConsecutiveErrors: getEnvAsInt("BOT_MAX_CONSECUTIVE_ERRORS", 10),
			CandleWindowSize:     getEnvAsInt("BOT_CANDLE_WINDOW", 200),
			MinOrderSizes:        getEnvAsSizeMap("BOT_MIN_ORDER_SIZES", defaultMinOrderSizes()),
			AssumeFlatForEntry:   getEnvAsBool("BOT_ASSUME_FLAT_FOR_ENTRY", false),
		},
		Exchange: ExchangeConfig{
			BaseURL:     getEnv("EXCHANGE_BASE_URL", "https://api.bitget.com"),
			MaxAttempts: getEnvAsInt("EXCHANGE_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvAsDuration("EXCHANGE_RETRY_DELAY", 500*time.Millisecond),
		},
		Feed: FeedConfig{
			WSURL:          getEnv("FEED_WS_URL", "wss://ws.bitget.com/v2/ws/public"),
			Symbols:        getEnvAsList("FEED_SYMBOLS", []string{"BTCUSDT"}),
			ReconnectDelay: getEnvAsDuration("FEED_RECONNECT_DELAY", 2*time.Second),
			MaxDelay:       getEnvAsDuration("FEED_MAX_RECONNECT_DELAY", 16*time.Second),
			PingInterval:   getEnvAsDuration("FEED_PING_INTERVAL", 25*time.Second),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры шифрования
func (c *Config) validateSecurity() error {
	// Passphrase обязателен: без него нечем расшифровать API ключи бирж
	if c.Security.EncryptionPassphrase == "" {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE is required for decrypting API keys")
	}
	if len(c.Security.EncryptionPassphrase) < 16 {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE must be at least 16 characters")
	}
	if c.Security.EncryptionSalt == "" {
		return fmt.Errorf("ENCRYPTION_SALT is required for key derivation")
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Bot.TickTimeout <= 0 {
		return fmt.Errorf("BOT_TICK_TIMEOUT must be positive, got %v", c.Bot.TickTimeout)
	}
	if c.Bot.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("BOT_MAX_CONSECUTIVE_ERRORS must be at least 1, got %d", c.Bot.MaxConsecutiveErrors)
	}
	if c.Bot.TickBuffer < 1 {
		return fmt.Errorf("BOT_TICK_BUFFER must be at least 1, got %d", c.Bot.TickBuffer)
	}

	if c.Exchange.MaxAttempts < 1 || c.Exchange.MaxAttempts > 10 {
		return fmt.Errorf("EXCHANGE_MAX_ATTEMPTS must be between 1 and 10, got %d", c.Exchange.MaxAttempts)
	}
	if c.Exchange.RetryDelay <= 0 {
		return fmt.Errorf("EXCHANGE_RETRY_DELAY must be positive, got %v", c.Exchange.RetryDelay)
	}

	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("FEED_SYMBOLS must list at least one symbol")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

func defaultMinOrderSizes() map[string]float64 {
	return map[string]float64{
		"BTCUSDT": 0.001,
		"ETHUSDT": 0.01,
	}
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList разбирает список через запятую: "BTCUSDT,ETHUSDT"
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsSizeMap разбирает пары символ:размер: "BTCUSDT:0.001,ETHUSDT:0.01"
func getEnvAsSizeMap(key string, defaultValue map[string]float64) map[string]float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	out := make(map[string]float64)
	for _, pair := range strings.Split(valueStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		size, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || size <= 0 {
			continue
		}
		out[strings.ToUpper(parts[0])] = size
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
