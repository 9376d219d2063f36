package outcome

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epi-risk-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outcomeColumns = []string{
	"id", "trace_id", "patient_ref", "drug_key", "drug_name", "tags",
	"predicted_score", "predicted_label", "adverse_event", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresStore(db)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	o := sampleOutcome("p1")

	mock.ExpectQuery("INSERT INTO outcomes").
		WithArgs("trace-p1", "p1", "rxnorm:2670", "codeine", `["CYP2D6_loss","CYP3A4_reduced"]`,
			1.0, "high", true, "respiratory depression", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	// Act
	err := store.Save(context.Background(), o)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(7), o.ID)
	assert.Equal(t, created, o.CreatedAt)
	assert.False(t, o.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveInvalid(t *testing.T) {
	store, mock := newMockStore(t)
	o := sampleOutcome("")

	err := store.Save(context.Background(), o)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM outcomes WHERE patient_ref = \\$1 AND drug_key = \\$2").
		WithArgs("p1", "rxnorm:2670").
		WillReturnRows(sqlmock.NewRows(outcomeColumns).
			AddRow(int64(3), "t", "p1", "rxnorm:2670", "codeine", `["CYP2D6_loss"]`, 0.45, "moderate", false, "", now, now))

	got, err := store.Get(context.Background(), "p1", "rxnorm:2670")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, []domain.FunctionalTag{"CYP2D6_loss"}, got.Tags)
	assert.Equal(t, domain.RiskModerate, got.PredictedLabel)
	assert.False(t, got.AdverseEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM outcomes").
		WithArgs("nobody", "rxnorm:2670").
		WillReturnRows(sqlmock.NewRows(outcomeColumns))

	got, err := store.Get(context.Background(), "nobody", "rxnorm:2670")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStore_GetCorruptTags(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM outcomes").
		WillReturnRows(sqlmock.NewRows(outcomeColumns).
			AddRow(int64(3), "", "p1", "k", "codeine", `{not-a-list`, 0.1, "low", false, "", now, now))

	_, err := store.Get(context.Background(), "p1", "k")
	assert.Error(t, err)
}

func TestPostgresStore_ListCountDelete(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM outcomes ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(outcomeColumns).
			AddRow(int64(2), "", "p2", "k", "codeine", `[]`, 0.05, "low", false, "", now, now).
			AddRow(int64(1), "", "p1", "k", "codeine", `[]`, 0.05, "low", true, "", now, now))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectExec("DELETE FROM outcomes WHERE id = \\$1").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, list[1].AdverseEvent)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, store.Delete(ctx, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM outcomes").WillReturnError(sql.ErrConnDone)

	_, err := store.List(context.Background(), 10, 0)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

// TestPostgresStore_Integration runs against a real database when
// TEST_DATABASE_URL is set.
func TestPostgresStore_Integration(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	store, err := NewPostgresStoreFromURL(dbURL, quietLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.db.Exec("DELETE FROM outcomes")
	require.NoError(t, err)

	o := sampleOutcome("p1")
	require.NoError(t, store.Save(ctx, o))
	o.AdverseEvent = false
	require.NoError(t, store.Save(ctx, o))

	got, err := store.Get(ctx, "p1", "rxnorm:2670")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.AdverseEvent)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
