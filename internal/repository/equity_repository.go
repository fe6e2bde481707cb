package repository

import (
	"database/sql"
	"time"

	"tradebot/internal/models"
)

// EquityRepository - работа с таблицей equity_history.
// Точки эквити пишутся торговым циклом после каждой сделки,
// запись best-effort: ошибки не останавливают торговлю.
type EquityRepository struct {
	db *sql.DB
}

// NewEquityRepository создает новый экземпляр репозитория
func NewEquityRepository(db *sql.DB) *EquityRepository {
	return &EquityRepository{db: db}
}

// Insert сохраняет точку эквити
func (r *EquityRepository) Insert(point *models.EquityPoint) error {
	query := `
		INSERT INTO equity_history (user_id, equity, available, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if point.CreatedAt.IsZero() {
		point.CreatedAt = time.Now()
	}

	return r.db.QueryRow(query,
		point.UserID,
		point.Equity,
		point.Available,
		point.CreatedAt,
	).Scan(&point.ID)
}

// ListByUser возвращает историю эквити пользователя за период
func (r *EquityRepository) ListByUser(userID int64, since time.Time) ([]models.EquityPoint, error) {
	query := `
		SELECT id, user_id, equity, available, created_at
		FROM equity_history
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at`

	rows, err := r.db.Query(query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.EquityPoint
	for rows.Next() {
		var point models.EquityPoint
		if err := rows.Scan(&point.ID, &point.UserID, &point.Equity, &point.Available, &point.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	return points, rows.Err()
}
