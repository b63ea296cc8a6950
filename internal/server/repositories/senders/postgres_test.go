package senders

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var senderColumns = []string{"id", "name", "type", "created_by", "created_at", "creator", "members"}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+senders\s*\(name,\s*type,\s*created_by\).*RETURNING\s+id,\s*created_at$`).
		WithArgs("Bob", "individual", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("s-1", time.Now()))

	s, err := repo.Create(context.Background(), &models.Sender{Name: "Bob", Type: models.SenderIndividual, CreatedBy: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+senders`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "senders_creator_name_key"})

	_, err := repo.Create(context.Background(), &models.Sender{Name: "bob", Type: models.SenderIndividual, CreatedBy: "u-1"})
	require.ErrorIs(t, err, common.ErrorDuplicateName)
}

func TestGetByID_DecodesMembers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(senderColumns).
		AddRow("s-1", "Family", "group", "u-1", time.Now(), "Ann", []byte(`[{"id":"p-1","name":"Bob"},{"id":"p-2","name":"Cy"}]`))
	mock.ExpectQuery(`(?s)^SELECT\s+s\.id.*json_agg.*FROM\s+senders\s+s.*WHERE\s+s\.id\s*=\s*\$1$`).
		WithArgs("s-1").
		WillReturnRows(rows)

	s, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.SenderGroup, s.Type)
	assert.Equal(t, "Ann", s.CreatorName)
	assert.Equal(t, []string{"Bob", "Cy"}, s.MemberNames())
	assert.Equal(t, "p-1", s.Members[0].ID)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+s\.id`).WithArgs("s-9").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "s-9")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_Referenced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+senders\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Delete(context.Background(), "s-1")
	require.ErrorIs(t, err, common.ErrorInvalidOperation)
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+senders\s+SET\s+name\s*=\s*\$2,\s*type\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1", "Bobby", "individual").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), &models.Sender{ID: "s-1", Name: "Bobby", Type: models.SenderIndividual}))
}

func TestSetMembers_ReplacesInOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+sender_members\s+WHERE\s+sender_id\s*=\s*\$1$`).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	ins := `(?s)^INSERT\s+INTO\s+sender_members\s*\(sender_id,\s*user_id,\s*position\)`
	mock.ExpectExec(ins).WithArgs("s-1", "p-2", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(ins).WithArgs("s-1", "p-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetMembers(context.Background(), "s-1", []string{"p-2", "p-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMembers_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+sender_members`).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetMembers(context.Background(), "s-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListVisible(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(senderColumns).
		AddRow("s-1", "Bob", "individual", "u-1", time.Now(), "Ann", []byte(`[{"id":"p-1","name":"Bob"}]`)).
		AddRow("s-2", "Team", "group", "u-2", time.Now(), "Ben", []byte(`[]`))
	mock.ExpectQuery(`(?s)^SELECT\s+s\.id.*WHERE\s+s\.created_by\s*=\s*\$1\s+OR\s+EXISTS.*ORDER\s+BY\s+s\.name,\s*s\.id$`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.ListVisible(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[1].Members)
}

func TestIsMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+sender_members`).
		WithArgs("s-1", "u-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.IsMember(context.Background(), "s-1", "u-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
