package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/feed"
	"tradebot/internal/notify"
	"tradebot/internal/repository"
	"tradebot/pkg/crypto"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ключ шифрования API ключей
	encryptionKey, err := crypto.DeriveKey(cfg.Security.EncryptionPassphrase, cfg.Security.EncryptionSalt)
	if err != nil {
		log.Fatalf("Failed to derive encryption key: %v", err)
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database %s", cfg.Database.DSNWithoutPassword())

	// Репозитории
	botRepo := repository.NewBotRepository(db)
	strategyRepo := repository.NewStrategyRepository(db)
	keyRepo := repository.NewAPIKeyRepository(db)
	riskRepo := repository.NewRiskRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	equityRepo := repository.NewEquityRepository(db)

	// Биржевые клиенты: один на пользователя, переиспользуются
	httpClient := exchange.NewHTTPClient(exchange.DefaultHTTPClientConfig())
	clientCache := exchange.NewClientCache(httpClient, exchange.BitgetClientConfig{
		BaseURL:     cfg.Exchange.BaseURL,
		MaxAttempts: cfg.Exchange.MaxAttempts,
		RetryDelay:  cfg.Exchange.RetryDelay,
	})
	defer clientCache.Close()

	// Шина тиков и оркестратор
	bus := bot.NewTickBus(cfg.Bot.TickBuffer)
	orchestrator := bot.NewOrchestrator(bot.OrchestratorDeps{
		Bots:       botRepo,
		Strategies: strategyRepo,
		Keys:       keyRepo,
		Risks:      riskRepo,
		Trades:     tradeRepo,
		Equity:     equityRepo,
		Clients: func(apiKey, secretKey, passphrase string) (bot.ExchangeAPI, error) {
			return clientCache.Get(apiKey, secretKey, passphrase)
		},
		Decryptor: keyDecryptor{key: encryptionKey},
		Notifier:  notify.NewLogNotifier(),
		Bus:       bus,
		LoopConfig: bot.LoopConfig{
			TickTimeout:          cfg.Bot.TickTimeout,
			CooldownDelay:        cfg.Bot.CooldownDelay,
			PostTickSleep:        cfg.Bot.PostTickSleep,
			MaxConsecutiveErrors: cfg.Bot.MaxConsecutiveErrors,
			CandleWindowSize:     cfg.Bot.CandleWindowSize,
			MinOrderSizes:        cfg.Bot.MinOrderSizes,
			AssumeFlatForEntry:   cfg.Bot.AssumeFlatForEntry,
		},
	})

	// Восстановление ботов, работавших до рестарта
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := orchestrator.Bootstrap(bootstrapCtx)
	cancelBootstrap()
	if err != nil {
		log.Printf("Bootstrap error: %v", err)
	} else {
		log.Printf("Bootstrap: started %d bots, failed %d", result.Started, result.Failed)
	}

	// Рыночный фид
	marketFeed := feed.New(feed.Config{
		WSURL:   cfg.Feed.WSURL,
		Symbols: cfg.Feed.Symbols,
		Reconnect: feed.ReconnectConfig{
			InitialDelay:   cfg.Feed.ReconnectDelay,
			MaxDelay:       cfg.Feed.MaxDelay,
			ConnectTimeout: 10 * time.Second,
			PingInterval:   cfg.Feed.PingInterval,
			WriteTimeout:   10 * time.Second,
		},
	}, bus)
	if err := marketFeed.Start(); err != nil {
		log.Fatalf("Failed to start market feed: %v", err)
	}

	// Операционный HTTP: healthcheck и метрики
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	if err := marketFeed.Close(); err != nil {
		log.Printf("Error closing market feed: %v", err)
	}

	// Циклы завершаются до закрытия БД: им нужно записать финальное
	// состояние ботов
	orchestrator.Shutdown(cfg.Server.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// keyDecryptor расшифровывает сохранённые credentials ключом процесса
type keyDecryptor struct {
	key []byte
}

func (d keyDecryptor) Decrypt(ciphertext string) (string, error) {
	return crypto.Decrypt(ciphertext, d.key)
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
