package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"tradebot/internal/models"
)

// Ошибки репозитория стратегий
var (
	ErrStrategyNotFound = errors.New("strategy not found")
)

// StrategyRepository - работа с таблицей strategies
type StrategyRepository struct {
	db *sql.DB
}

// NewStrategyRepository создает новый экземпляр репозитория
func NewStrategyRepository(db *sql.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// GetByID возвращает стратегию по ID
func (r *StrategyRepository) GetByID(id int64) (*models.StrategyRecord, error) {
	query := `
		SELECT id, user_id, code, name, symbol, timeframe, params, created_at
		FROM strategies
		WHERE id = $1`

	strategy := &models.StrategyRecord{}
	var paramsJSON []byte
	err := r.db.QueryRow(query, id).Scan(
		&strategy.ID,
		&strategy.UserID,
		&strategy.Code,
		&strategy.Name,
		&strategy.Symbol,
		&strategy.Timeframe,
		&paramsJSON,
		&strategy.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &strategy.Params); err != nil {
			return nil, err
		}
	}

	return strategy, nil
}

// ListByUser возвращает стратегии пользователя
func (r *StrategyRepository) ListByUser(userID int64) ([]models.StrategyRecord, error) {
	query := `
		SELECT id, user_id, code, name, symbol, timeframe, params, created_at
		FROM strategies
		WHERE user_id = $1
		ORDER BY id`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strategies []models.StrategyRecord
	for rows.Next() {
		var strategy models.StrategyRecord
		var paramsJSON []byte
		if err := rows.Scan(
			&strategy.ID,
			&strategy.UserID,
			&strategy.Code,
			&strategy.Name,
			&strategy.Symbol,
			&strategy.Timeframe,
			&paramsJSON,
			&strategy.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &strategy.Params); err != nil {
				return nil, err
			}
		}
		strategies = append(strategies, strategy)
	}

	return strategies, rows.Err()
}
