package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk I/O error")

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteFromDB(db), mock
}

func TestInsertNodeStorageFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("Customers", "BaseTable", "{}", "7").
		WillReturnError(errDiskFull)

	var emitted int
	s.SetEventEmitter(func(Event) { emitted++ })

	_, err := s.InsertNode(context.Background(), Node{Name: "Customers", Type: NodeBaseTable, ExternalID: "7"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Zero(t, emitted, "failed writes emit nothing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEdgeRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM nodes").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM nodes").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("INSERT INTO edges").WillReturnError(errDiskFull)
	mock.ExpectRollback()

	_, err := s.InsertEdge(context.Background(), Edge{Type: EdgeContains, FromID: 1, ToID: 2})
	assert.ErrorIs(t, err, errDiskFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNodesQueryFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, type, details, external_id FROM nodes WHERE external_id = \\? ORDER BY id").
		WithArgs("7").
		WillReturnError(errDiskFull)

	_, err := NewResolver(s).ByExternalID(context.Background(), "7")
	assert.ErrorIs(t, err, errDiskFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorruptDetailsSurface(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "type", "details", "external_id"}).
		AddRow(int64(3), "broken", "Field", "{not json", nil)
	mock.ExpectQuery("SELECT id, name, type, details, external_id FROM nodes WHERE id = \\?").
		WithArgs(int64(3)).
		WillReturnRows(rows)

	_, err := s.GetNode(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUnknownStoredTypeRejected(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "type", "details", "external_id"}).
		AddRow(int64(3), "odd", "Widget", "{}", nil)
	mock.ExpectQuery("SELECT id, name, type, details, external_id FROM nodes WHERE id = \\?").
		WithArgs(int64(3)).
		WillReturnRows(rows)

	_, err := s.GetNode(context.Background(), 3)
	assert.ErrorIs(t, err, ErrInvalidType)
}
