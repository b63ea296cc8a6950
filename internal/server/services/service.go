// Package services contains the server-side business logic: funds and their
// membership, the sender directory with placeholder identities, the
// transaction ledger, user accounts and fund exports. Every operation takes
// the acting user's id explicitly and runs its writes in one transaction.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/access"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
)

type base struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func newBase(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger, module string) base {
	return base{
		tx:          tx,
		repomanager: m,
		logger:      logger.With("module", module),
		now:         time.Now,
	}
}

// standing loads the fund and resolves the user's relationship to it.
func (b *base) standing(ctx context.Context, db dbx.DBTX, fundID, userID string) (*models.Fund, access.Standing, error) {
	fund, err := b.repomanager.Funds(db).GetByID(ctx, fundID)
	if err != nil {
		return nil, access.Standing{}, err
	}
	st, err := b.resolve(ctx, db, fund, userID)
	if err != nil {
		return nil, access.Standing{}, err
	}
	return fund, st, nil
}

func (b *base) resolve(ctx context.Context, db dbx.DBTX, fund *models.Fund, userID string) (access.Standing, error) {
	m, err := b.repomanager.Memberships(db).Get(ctx, fund.ID, userID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return access.Standing{}, err
		}
		m = nil
	}
	return access.Resolve(fund, userID, m), nil
}

// asValidation turns a missing referenced row into a field error.
func asValidation(err error, field, message string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.Validation(field, message)
	}
	return err
}
