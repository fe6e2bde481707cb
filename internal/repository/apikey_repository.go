package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория API ключей
var (
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// APIKeyRepository - работа с таблицей api_keys.
// Секрет и passphrase хранятся зашифрованными (AES-256-GCM),
// расшифровка выполняется на уровне торгового цикла.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository создает новый экземпляр репозитория
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetByUser возвращает ключи пользователя
func (r *APIKeyRepository) GetByUser(userID int64) (*models.APIKey, error) {
	query := `
		SELECT user_id, api_key, secret_encrypted, passphrase_encrypted, updated_at
		FROM api_keys
		WHERE user_id = $1`

	key := &models.APIKey{}
	err := r.db.QueryRow(query, userID).Scan(
		&key.UserID,
		&key.Key,
		&key.SecretEncrypted,
		&key.PassphraseEncrypted,
		&key.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}

	return key, nil
}

// Upsert создает или обновляет ключи пользователя
func (r *APIKeyRepository) Upsert(key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (user_id, api_key, secret_encrypted, passphrase_encrypted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET api_key = $2, secret_encrypted = $3, passphrase_encrypted = $4, updated_at = $5`

	key.UpdatedAt = time.Now()

	_, err := r.db.Exec(query,
		key.UserID,
		key.Key,
		key.SecretEncrypted,
		key.PassphraseEncrypted,
		key.UpdatedAt,
	)
	return err
}
