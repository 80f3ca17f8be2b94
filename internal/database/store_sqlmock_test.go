package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

func TestStore_ResolveAlertsStorageFailure(t *testing.T) {
	s, mock := setupMockStore(t)
	connErr := errors.New("connection reset by peer")

	mock.ExpectExec(`UPDATE "alerts" SET`).WillReturnError(connErr)

	n, err := s.ResolveAlerts(context.Background(), "s1", "A", []string{"Fire Risk"}, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, connErr)
	assert.Contains(t, err.Error(), "s1/A")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindLatestReadingStorageFailure(t *testing.T) {
	s, mock := setupMockStore(t)
	connErr := errors.New("too many connections")

	mock.ExpectQuery(`SELECT \* FROM "observations"`).WillReturnError(connErr)

	obs, err := s.FindLatestReading(context.Background(), "s1", "A", "obs-1")

	assert.Nil(t, obs)
	assert.ErrorIs(t, err, connErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_TransactionRollsBackOnInsertFailure(t *testing.T) {
	s, mock := setupMockStore(t)
	insertErr := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "alerts"`).WillReturnError(insertErr)
	mock.ExpectRollback()

	err := s.Transaction(context.Background(), func(tx *Store) error {
		return tx.InsertAlert(context.Background(), &Alert{
			SiteID:        "s1",
			ObservationID: "obs-1",
			AlertType:     "Fire Risk",
			Severity:      "High",
		})
	})

	assert.ErrorIs(t, err, insertErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
