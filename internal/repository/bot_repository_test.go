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
// BotRepository Tests
// ============================================================

func TestNewBotRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewBotRepository(db)
	if repo == nil {
		t.Fatal("NewBotRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestBotRepositoryGetByUser(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    *models.BotRecord
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"user_id", "strategy_id", "is_running", "updated_at"}).
					AddRow(42, 7, true, now)
				mock.ExpectQuery(`SELECT .+ FROM bots WHERE user_id = \$1`).
					WithArgs(int64(42)).
					WillReturnRows(rows)
			},
			expected: &models.BotRecord{
				UserID:     42,
				StrategyID: 7,
				IsRunning:  true,
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM bots WHERE user_id = \$1`).
					WithArgs(int64(42)).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrBotNotFound,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM bots WHERE user_id = \$1`).
					WithArgs(int64(42)).
					WillReturnError(errors.New("connection lost"))
			},
			expectedErr: errors.New("connection lost"),
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
			repo := NewBotRepository(db)

			bot, err := repo.GetByUser(42)

			if tt.expectedErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if errors.Is(tt.expectedErr, ErrBotNotFound) && !errors.Is(err, ErrBotNotFound) {
					t.Errorf("expected ErrBotNotFound, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bot.UserID != tt.expected.UserID || bot.StrategyID != tt.expected.StrategyID || bot.IsRunning != tt.expected.IsRunning {
				t.Errorf("got %+v, want %+v", bot, tt.expected)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestBotRepositorySetRunning(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE bots SET is_running`).
					WithArgs(false, sqlmock.AnyArg(), int64(42)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE bots SET is_running`).
					WithArgs(false, sqlmock.AnyArg(), int64(42)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedErr: ErrBotNotFound,
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
			repo := NewBotRepository(db)

			err = repo.SetRunning(42, false)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected %v, got %v", tt.expectedErr, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestBotRepositoryListRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"user_id", "strategy_id", "is_running", "updated_at"}).
		AddRow(1, 10, true, now).
		AddRow(2, 20, true, now)
	mock.ExpectQuery(`SELECT .+ FROM bots WHERE is_running = true`).
		WillReturnRows(rows)

	repo := NewBotRepository(db)
	bots, err := repo.ListRunning()
	if err != nil {
		t.Fatalf("ListRunning() error: %v", err)
	}

	if len(bots) != 2 {
		t.Fatalf("len(bots) = %d, want 2", len(bots))
	}
	if bots[0].UserID != 1 || bots[1].UserID != 2 {
		t.Errorf("unexpected bots: %+v", bots)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBotRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO bots`).
		WithArgs(int64(42), int64(7), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewBotRepository(db)
	bot := &models.BotRecord{UserID: 42, StrategyID: 7, IsRunning: true}

	if err := repo.Upsert(bot); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if bot.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
