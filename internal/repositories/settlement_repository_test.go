package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"scholarpay/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var (
	insertClaim  = regexp.QuoteMeta(`INSERT INTO "settlement_claims"`)
	selectClaim  = regexp.QuoteMeta(`SELECT * FROM "settlement_claims"`)
	updateClaim  = regexp.QuoteMeta(`UPDATE "settlement_claims"`)
	insertRecord = regexp.QuoteMeta(`INSERT INTO "settlement_records"`)
	selectRecord = regexp.QuoteMeta(`SELECT * FROM "settlement_records"`)
)

var claimColumns = []string{"id", "external_session_id", "fee_type", "user_id", "owner", "status", "claimed_at"}

func newClaim(owner string) *models.SettlementClaim {
	return &models.SettlementClaim{
		ExternalSessionID: "cs_1",
		FeeType:           models.FeeTypeSelectionProcess,
		UserID:            7,
		Owner:             owner,
		Status:            models.ClaimProcessing,
		ClaimedAt:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAcquireClaim(t *testing.T) {
	claimedAt := time.Date(2026, 5, 1, 11, 59, 58, 0, time.UTC)

	t.Run("first caller wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(insertClaim).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		acquired, got, err := NewSettlementRepository(db).AcquireClaim(context.Background(), newClaim("owner-b"))
		require.NoError(t, err)
		assert.True(t, acquired)
		assert.Equal(t, uint(11), got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict returns the holder", func(t *testing.T) {
		db, mock := newMockDB(t)
		// ON CONFLICT DO NOTHING inserts nothing and returns no id.
		mock.ExpectQuery(insertClaim).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(selectClaim).WillReturnRows(sqlmock.NewRows(claimColumns).
			AddRow(4, "cs_1", "selection_process", 7, "owner-a", "processing", claimedAt))

		acquired, got, err := NewSettlementRepository(db).AcquireClaim(context.Background(), newClaim("owner-b"))
		require.NoError(t, err)
		assert.False(t, acquired)
		require.NotNil(t, got)
		assert.Equal(t, uint(4), got.ID)
		assert.Equal(t, "owner-a", got.Owner)
		assert.Equal(t, claimedAt, got.ClaimedAt.UTC())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(insertClaim).WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectQuery(selectClaim).WillReturnRows(sqlmock.NewRows(claimColumns).
			AddRow(4, "cs_1", "selection_process", 7, "owner-a", "complete", claimedAt))

		acquired, got, err := NewSettlementRepository(db).AcquireClaim(context.Background(), newClaim("owner-b"))
		require.NoError(t, err)
		assert.False(t, acquired)
		assert.Equal(t, models.ClaimComplete, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflicting row vanished", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(insertClaim).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(selectClaim).WillReturnRows(sqlmock.NewRows(claimColumns))

		_, _, err := NewSettlementRepository(db).AcquireClaim(context.Background(), newClaim("owner-b"))
		assert.ErrorIs(t, err, ErrClaimNotFound)
	})
}

func TestTakeOverClaim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "stale owner replaced", affected: 1, want: true},
		{name: "someone else got there first", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(updateClaim).WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := NewSettlementRepository(db).TakeOverClaim(context.Background(), 4, "owner-a", "owner-b", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCompleteSettlement_RollsBackWithoutClaim(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(insertRecord).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(updateClaim).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewSettlementRepository(db).CompleteSettlement(context.Background(), 4, &models.SettlementRecord{
		ExternalSessionID: "cs_1",
		FeeType:           models.FeeTypeSelectionProcess,
		UserID:            7,
		PaymentIntentRef:  "pi_1",
		Rail:              models.RailCard,
	}, time.Now())
	assert.ErrorIs(t, err, ErrClaimNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSettled(t *testing.T) {
	recordColumns := []string{"id", "external_session_id", "fee_type", "user_id", "payment_intent_ref", "rail"}

	t.Run("from the settlement record", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(selectRecord).WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(1, "cs_1", "application_fee", 7, "pi_1", "card"))

		got, err := NewSettlementRepository(db).FindSettled(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Equal(t, &models.SettledSession{ExternalSessionID: "cs_1", FeeType: models.FeeTypeApplicationFee, UserID: 7}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("from a completed claim", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(selectRecord).WillReturnRows(sqlmock.NewRows(recordColumns))
		mock.ExpectQuery(selectClaim).WillReturnRows(sqlmock.NewRows(claimColumns).
			AddRow(4, "cs_1", "selection_process", 9, "owner-a", "complete", time.Now()))

		got, err := NewSettlementRepository(db).FindSettled(context.Background(), "cs_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, uint(9), got.UserID)
		assert.Equal(t, models.FeeTypeSelectionProcess, got.FeeType)
	})

	t.Run("not settled", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(selectRecord).WillReturnRows(sqlmock.NewRows(recordColumns))
		mock.ExpectQuery(selectClaim).WillReturnRows(sqlmock.NewRows(claimColumns))

		got, err := NewSettlementRepository(db).FindSettled(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
