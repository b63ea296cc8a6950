package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userRowColumns = []string{"id", "name", "email", "password_hash", "is_admin", "theme_preference", "hide_add_member_ui", "placeholder_owner_id", "created_at"}

func strPtr(s string) *string { return &s }

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*password_hash,\s*is_admin,\s*theme_preference,\s*hide_add_member_ui,\s*placeholder_owner_id\).*RETURNING\s+id,\s*created_at\s*$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("Alice", "alice@example.com", []byte("hash"), true, models.ThemeSystem, false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", now))

	u := &models.User{Name: "Alice", Email: strPtr("alice@example.com"), PasswordHash: []byte("hash"), IsAdmin: true}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || got.ThemePreference != models.ThemeSystem {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Placeholder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WithArgs("Bob", nil, nil, false, models.ThemeSystem, false, "owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("p-1", time.Now()))

	got, err := repo.Create(context.Background(), &models.User{Name: "Bob", PlaceholderOwnerID: strPtr("owner-1")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !got.IsPlaceholder() {
		t.Fatalf("expected placeholder, got %+v", got)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Name: "A", Email: strPtr("a@b.c")})
	if !errors.Is(err, common.ErrorDuplicateName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Name: "A"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*name,.*FROM\s+users\s+WHERE\s+lower\(email\)\s*=\s*lower\(\$1\)\s*$`
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "Alice", "alice@example.com", []byte("hash"), false, "dark", true, nil, time.Now())
	mock.ExpectQuery(q).WithArgs("Alice@Example.com").WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != "u-1" || got.Email == nil || *got.Email != "alice@example.com" || !got.HideAddMemberUI {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.PlaceholderOwnerID != nil {
		t.Fatalf("real account must not have a placeholder owner")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFindPlaceholder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT.*FROM\s+users\s+WHERE\s+placeholder_owner_id\s*=\s*\$1\s+AND\s+name\s*=\s*\$2\s+AND\s+email\s+IS\s+NULL\s+AND\s+password_hash\s+IS\s+NULL.*LIMIT\s+1$`
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("p-1", "Bob", nil, nil, false, "system", false, "owner-1", time.Now())
	mock.ExpectQuery(q).WithArgs("owner-1", "Bob").WillReturnRows(rows)

	got, err := repo.FindPlaceholder(context.Background(), "owner-1", "Bob")
	if err != nil {
		t.Fatalf("FindPlaceholder error: %v", err)
	}
	if !got.IsPlaceholder() || got.PlaceholderOwnerID == nil || *got.PlaceholderOwnerID != "owner-1" {
		t.Fatalf("unexpected placeholder: %+v", got)
	}
}

func TestEmailTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WithArgs("a@b.c", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.EmailTaken(context.Background(), "a@b.c", "u-1")
	if err != nil || !taken {
		t.Fatalf("EmailTaken = %v, %v", taken, err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+name\s*=\s*\$2`).
		WithArgs("u-1", "Alice", nil, nil, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.User{ID: "u-1", Name: "Alice"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+theme_preference\s*=\s*\$2,\s*hide_add_member_ui\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1", "dark", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePreferences(context.Background(), "u-1", "dark", true); err != nil {
		t.Fatalf("UpdatePreferences error: %v", err)
	}
}

func TestDelete_ForeignKeyViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Delete(context.Background(), "u-1")
	if !errors.Is(err, common.ErrorInvalidOperation) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestList_FilterAndSort(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT.*FROM\s+users\s+WHERE\s+name\s+ILIKE\s+\$1\s+AND\s+is_admin\s+ORDER\s+BY\s+email\s+DESC,\s*id$`
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-2", "Zed", "z@x.y", []byte("h"), true, "light", false, nil, time.Now()).
		AddRow("u-1", "Al", "a@x.y", []byte("h"), true, "light", false, nil, time.Now())
	mock.ExpectQuery(q).WithArgs("%a%").WillReturnRows(rows)

	got, err := repo.List(context.Background(), models.UserFilter{Name: " a ", Role: "admin", Sort: "email", Desc: true})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "u-2" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestList_UnknownSortFallsBackToName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+users\s+ORDER\s+BY\s+name\s+ASC,\s*id$`).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	got, err := repo.List(context.Background(), models.UserFilter{Sort: "password_hash; DROP"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}
}

func TestListFundCandidates(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*name\s+FROM\s+users\s+WHERE\s+is_admin\s+AND\s+id\s+NOT\s+IN.*fund_members.*ORDER\s+BY\s+name,\s*id$`
	mock.ExpectQuery(q).WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("u-3", "Carol"))

	got, err := repo.ListFundCandidates(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("ListFundCandidates error: %v", err)
	}
	if len(got) != 1 || got[0] != (models.UserRef{ID: "u-3", Name: "Carol"}) {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}
