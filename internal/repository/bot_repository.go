package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория ботов
var (
	ErrBotNotFound = errors.New("bot not found")
)

// BotRepository - работа с таблицей bots
type BotRepository struct {
	db *sql.DB
}

// NewBotRepository создает новый экземпляр репозитория
func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

// GetByUser возвращает запись бота пользователя
func (r *BotRepository) GetByUser(userID int64) (*models.BotRecord, error) {
	query := `
		SELECT user_id, strategy_id, is_running, updated_at
		FROM bots
		WHERE user_id = $1`

	bot := &models.BotRecord{}
	err := r.db.QueryRow(query, userID).Scan(
		&bot.UserID,
		&bot.StrategyID,
		&bot.IsRunning,
		&bot.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}

	return bot, nil
}

// Upsert создает или обновляет запись бота (одна запись на пользователя)
func (r *BotRepository) Upsert(bot *models.BotRecord) error {
	query := `
		INSERT INTO bots (user_id, strategy_id, is_running, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET strategy_id = $2, is_running = $3, updated_at = $4`

	bot.UpdatedAt = time.Now()

	_, err := r.db.Exec(query, bot.UserID, bot.StrategyID, bot.IsRunning, bot.UpdatedAt)
	return err
}

// SetRunning обновляет флаг is_running.
// Флаг информационный: фактическое состояние бота живет в оркестраторе.
func (r *BotRepository) SetRunning(userID int64, running bool) error {
	query := `
		UPDATE bots
		SET is_running = $1, updated_at = $2
		WHERE user_id = $3`

	result, err := r.db.Exec(query, running, time.Now(), userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBotNotFound
	}

	return nil
}

// ListRunning возвращает всех ботов с is_running = true.
// Используется оркестратором при старте для восстановления ботов.
func (r *BotRepository) ListRunning() ([]models.BotRecord, error) {
	query := `
		SELECT user_id, strategy_id, is_running, updated_at
		FROM bots
		WHERE is_running = true
		ORDER BY user_id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []models.BotRecord
	for rows.Next() {
		var bot models.BotRecord
		if err := rows.Scan(&bot.UserID, &bot.StrategyID, &bot.IsRunning, &bot.UpdatedAt); err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}

	return bots, rows.Err()
}
