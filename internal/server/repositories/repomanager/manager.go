package repomanager

import (
	"context"

	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/funds"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/membernames"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/senders"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or to an open
// transaction, so one unit of work can span several of them.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users(db dbx.DBTX) users.Repository
	Funds(db dbx.DBTX) funds.Repository
	Memberships(db dbx.DBTX) memberships.Repository
	Senders(db dbx.DBTX) senders.Repository
	Transactions(db dbx.DBTX) transactions.Repository
	MemberNames(db dbx.DBTX) membernames.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
