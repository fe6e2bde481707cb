package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// RiskRepository - работа с таблицей risk_settings
type RiskRepository struct {
	db *sql.DB
}

// NewRiskRepository создает новый экземпляр репозитория
func NewRiskRepository(db *sql.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// GetByUser возвращает риск-настройки пользователя.
// Если записи нет, возвращаются пустые настройки: nil-поля означают
// отсутствие лимита.
func (r *RiskRepository) GetByUser(userID int64) (*models.RiskSettings, error) {
	query := `
		SELECT user_id, daily_loss_limit, max_positions, max_leverage, updated_at
		FROM risk_settings
		WHERE user_id = $1`

	settings := &models.RiskSettings{}
	err := r.db.QueryRow(query, userID).Scan(
		&settings.UserID,
		&settings.DailyLossLimit,
		&settings.MaxPositions,
		&settings.MaxLeverage,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.RiskSettings{UserID: userID}, nil
		}
		return nil, err
	}

	return settings, nil
}

// Upsert создает или обновляет риск-настройки пользователя
func (r *RiskRepository) Upsert(settings *models.RiskSettings) error {
	query := `
		INSERT INTO risk_settings (user_id, daily_loss_limit, max_positions, max_leverage, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET daily_loss_limit = $2, max_positions = $3, max_leverage = $4, updated_at = $5`

	settings.UpdatedAt = time.Now()

	_, err := r.db.Exec(query,
		settings.UserID,
		settings.DailyLossLimit,
		settings.MaxPositions,
		settings.MaxLeverage,
		settings.UpdatedAt,
	)
	return err
}
