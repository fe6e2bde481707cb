package repository

import (
	"database/sql"
	"time"

	"tradebot/internal/models"
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Insert сохраняет исполненную сделку и проставляет ID
func (r *TradeRepository) Insert(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (user_id, strategy_id, symbol, side, price, size, pnl, exit_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	return r.db.QueryRow(query,
		trade.UserID,
		trade.StrategyID,
		trade.Symbol,
		trade.Side,
		trade.Price,
		trade.Size,
		trade.Pnl,
		trade.ExitReason,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// SumPnlSince возвращает суммарный PnL пользователя начиная с момента since.
// Используется риск-контролем для дневного лимита убытка.
func (r *TradeRepository) SumPnlSince(userID int64, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE user_id = $1 AND created_at >= $2`

	var total float64
	err := r.db.QueryRow(query, userID, since).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// ListByUser возвращает последние сделки пользователя
func (r *TradeRepository) ListByUser(userID int64, limit int) ([]models.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, strategy_id, symbol, side, price, size, pnl, exit_reason, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var trade models.TradeRecord
		if err := rows.Scan(
			&trade.ID,
			&trade.UserID,
			&trade.StrategyID,
			&trade.Symbol,
			&trade.Side,
			&trade.Price,
			&trade.Size,
			&trade.Pnl,
			&trade.ExitReason,
			&trade.CreatedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}
