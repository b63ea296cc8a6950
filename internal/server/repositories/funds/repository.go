// Package funds declares and implements fund storage.
package funds

import (
	"context"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts fund. A name already used by the same creator yields
	// common.ErrorDuplicateName on field "name".
	Create(ctx context.Context, fund *models.Fund) (*models.Fund, error)
	GetByID(ctx context.Context, id string) (*models.Fund, error)
	// Update stores name and description.
	Update(ctx context.Context, fund *models.Fund) error
	// Delete removes the fund; memberships and transactions go with it.
	Delete(ctx context.Context, id string) error
	// NameExists reports whether creatorID has a fund other than excludeID
	// whose trimmed, lower-cased name equals name's.
	NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error)
	// ListForUser returns every fund userID created or holds a membership in,
	// ordered by name.
	ListForUser(ctx context.Context, userID string) ([]*models.FundSummary, error)
	Total(ctx context.Context, fundID string) (decimal.Decimal, error)
	CreatorName(ctx context.Context, fundID string) (string, error)
}
