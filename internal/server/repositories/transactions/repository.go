// Package transactions stores ledger entries of a fund.
package transactions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts tx. A clash on (fund, sender, date, amount) yields
	// common.ErrorConflict.
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	// Update stores sender, amount, date, notes and category.
	Update(ctx context.Context, tx *models.Transaction) error
	Delete(ctx context.Context, id string) error
	// DuplicateExists reports whether fundID already holds an entry other
	// than excludeID with the same sender, date and amount.
	DuplicateExists(ctx context.Context, fundID, senderID string, date time.Time, amount decimal.Decimal, excludeID string) (bool, error)
	// SenderNameUsed reports whether any transaction of fundID is attributed
	// to a sender whose name matches name case-insensitively.
	SenderNameUsed(ctx context.Context, fundID, name string) (bool, error)
	// ListByFund returns the fund's entries, newest first.
	ListByFund(ctx context.Context, fundID string, filter models.TransactionFilter) ([]*models.TransactionView, error)
}
