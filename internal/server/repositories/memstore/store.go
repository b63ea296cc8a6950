// Package memstore is an in-memory implementation of every repository plus
// a Transactor, selected with the "memory" DSN. It mirrors the constraints of
// the PostgreSQL schema: case-insensitive per-creator names, the transaction
// dedup key, cascades and the sender delete restriction.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/funds"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/membernames"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/senders"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// ErrNoSQL is returned by the DBTX handle the store hands out; repositories
// obtained from the store never issue SQL.
var ErrNoSQL = errors.New("memstore: sql is not supported")

type memberKey struct {
	fundID string
	userID string
}

type userRow struct {
	models.User
	seq int64
}

type senderRow struct {
	models.Sender
	memberIDs []string
}

type txRow struct {
	models.Transaction
	seq int64
}

type state struct {
	users   map[string]*userRow
	funds   map[string]*models.Fund
	members map[memberKey]models.Role
	senders map[string]*senderRow
	txs     map[string]*txRow
	names   map[string]map[string]struct{}
	tokens  map[string]models.RefreshToken
	seq     int64
}

func newState() *state {
	return &state{
		users:   map[string]*userRow{},
		funds:   map[string]*models.Fund{},
		members: map[memberKey]models.Role{},
		senders: map[string]*senderRow{},
		txs:     map[string]*txRow{},
		names:   map[string]map[string]struct{}{},
		tokens:  map[string]models.RefreshToken{},
	}
}

func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range st.funds {
		f := *v
		c.funds[k] = &f
	}
	for k, v := range st.members {
		c.members[k] = v
	}
	for k, v := range st.senders {
		s := *v
		s.memberIDs = append([]string(nil), v.memberIDs...)
		c.senders[k] = &s
	}
	for k, v := range st.txs {
		t := *v
		c.txs[k] = &t
	}
	for k, v := range st.names {
		set := make(map[string]struct{}, len(v))
		for n := range v {
			set[n] = struct{}{}
		}
		c.names[k] = set
	}
	for k, v := range st.tokens {
		c.tokens[k] = v
	}
	return c
}

func (st *state) nextSeq() int64 {
	st.seq++
	return st.seq
}

// Store holds all data of a memory-backed server. It implements both
// repomanager.RepositoryManager and dbx.Transactor. Repositories bound to
// Conn() see committed data only; writes through Conn() bypass transactions
// and are meant for setup.
type Store struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data *state

	now func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

type conn struct{}

func (conn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrNoSQL
}

func (conn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrNoSQL
}

func (conn) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// txConn is the handle WithTx passes to fn; repositories bound to it work on
// the transaction's private copy.
type txConn struct {
	conn
	work *state
}

// handle is embedded by every repository.
type handle struct {
	s    *Store
	work *state
}

func (h handle) data() *state {
	if h.work != nil {
		return h.work
	}
	return h.s.data
}

func (s *Store) handle(db dbx.DBTX) handle {
	if c, ok := db.(*txConn); ok {
		return handle{s: s, work: c.work}
	}
	return handle{s: s}
}

func (s *Store) Conn() dbx.DBTX {
	return conn{}
}

// WithTx runs fn against a copy of the data with writers serialized. The
// copy replaces the committed data only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txConn{work: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) RunMigrations(context.Context) error {
	return nil
}

func (s *Store) Users(db dbx.DBTX) users.Repository                 { return &userRepo{s.handle(db)} }
func (s *Store) Funds(db dbx.DBTX) funds.Repository                 { return &fundRepo{s.handle(db)} }
func (s *Store) Memberships(db dbx.DBTX) memberships.Repository     { return &membershipRepo{s.handle(db)} }
func (s *Store) Senders(db dbx.DBTX) senders.Repository             { return &senderRepo{s.handle(db)} }
func (s *Store) Transactions(db dbx.DBTX) transactions.Repository   { return &transactionRepo{s.handle(db)} }
func (s *Store) MemberNames(db dbx.DBTX) membernames.Repository     { return &memberNameRepo{s.handle(db)} }
func (s *Store) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return &refreshTokenRepo{s.handle(db)} }

func newID() string {
	return uuid.NewString()
}
