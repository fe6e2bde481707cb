package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradebot/internal/models"
)

// ============================================================
// APIKeyRepository Tests
// ============================================================

func TestAPIKeyRepositoryGetByUser(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    *models.APIKey
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"user_id", "api_key", "secret_encrypted", "passphrase_encrypted", "updated_at"}).
					AddRow(42, "bg_key", "enc_secret", "enc_pass", now)
				mock.ExpectQuery(`SELECT .+ FROM api_keys WHERE user_id = \$1`).
					WithArgs(int64(42)).
					WillReturnRows(rows)
			},
			expected: &models.APIKey{
				UserID:              42,
				Key:                 "bg_key",
				SecretEncrypted:     "enc_secret",
				PassphraseEncrypted: "enc_pass",
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM api_keys WHERE user_id = \$1`).
					WithArgs(int64(42)).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrAPIKeyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)
			repo := NewAPIKeyRepository(db)

			key, err := repo.GetByUser(42)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key.Key != tt.expected.Key || key.SecretEncrypted != tt.expected.SecretEncrypted {
				t.Errorf("got %+v, want %+v", key, tt.expected)
			}
			if !key.Complete() {
				t.Error("Complete() = false for full key")
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestAPIKeyRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO api_keys`).
		WithArgs(int64(42), "bg_key", "enc_secret", "enc_pass", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewAPIKeyRepository(db)
	key := &models.APIKey{
		UserID:              42,
		Key:                 "bg_key",
		SecretEncrypted:     "enc_secret",
		PassphraseEncrypted: "enc_pass",
	}

	if err := repo.Upsert(key); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
