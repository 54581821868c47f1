package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"labeler_server/core/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(sqlx.NewDb(db, "postgres"), "labeler_model_state", "default", NewCodec(domain.DefaultSettings()))
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_RejectsBadTableName(t *testing.T) {
	_, err := NewPostgresStore(nil, "states; DROP TABLE x", "default", NewCodec(domain.DefaultSettings()))
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newPostgresStore(t)
	state := trainedState(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO labeler_model_state").
		WithArgs("default", domain.ModelStateVersion, sqlmock.AnyArg(), sqlmock.AnyArg(), state.Corpus.Len(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRollsBackOnError(t *testing.T) {
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO labeler_model_state").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.Save(context.Background(), domain.NewModelState(domain.DefaultSettings()))
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "version", "state", "labels", "example_count", "is_trained", "updated_at"}

	t.Run("found", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		state := trainedState(t)
		data, err := store.codec.Encode(state)
		require.NoError(t, err)

		rows := sqlmock.NewRows(columns).
			AddRow("default", 1, data, []byte("{spam,work}"), state.Corpus.Len(), true, time.Now())
		mock.ExpectQuery("SELECT id, version, state").WithArgs("default").WillReturnRows(rows)

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, state.Corpus, got.Corpus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectQuery("SELECT id, version, state").WithArgs("default").WillReturnError(sql.ErrNoRows)

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("query failure", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectQuery("SELECT id, version, state").WillReturnError(sql.ErrConnDone)

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newPostgresStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS labeler_model_state").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
