package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/funds"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/membernames"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/senders"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := m.Users(db).(*users.PostgresRepository); !ok {
		t.Fatal("Users() is not postgres backed")
	}
	if _, ok := m.Funds(db).(*funds.PostgresRepository); !ok {
		t.Fatal("Funds() is not postgres backed")
	}
	if _, ok := m.Memberships(db).(*memberships.PostgresRepository); !ok {
		t.Fatal("Memberships() is not postgres backed")
	}
	if _, ok := m.Senders(db).(*senders.PostgresRepository); !ok {
		t.Fatal("Senders() is not postgres backed")
	}
	if _, ok := m.Transactions(db).(*transactions.PostgresRepository); !ok {
		t.Fatal("Transactions() is not postgres backed")
	}
	if _, ok := m.MemberNames(db).(*membernames.PostgresRepository); !ok {
		t.Fatal("MemberNames() is not postgres backed")
	}
	if _, ok := m.RefreshTokens(db).(*refreshtokens.PostgresRepository); !ok {
		t.Fatal("RefreshTokens() is not postgres backed")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	var gotDB *sql.DB
	gooseUpContext = func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDB = d
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if gotDB != db {
		t.Fatal("migrations must run against the manager's database")
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
