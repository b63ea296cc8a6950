// Package memberships stores the role-tagged (fund, user) pairs.
package memberships

import (
	"context"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type Repository interface {
	// Get returns the explicit membership row or common.ErrorNotFound.
	Get(ctx context.Context, fundID, userID string) (*models.FundMember, error)
	// List returns the fund's members ordered by name.
	List(ctx context.Context, fundID string) ([]*models.FundMember, error)
	// Upsert inserts the pair or changes the role of an existing one.
	Upsert(ctx context.Context, fundID, userID string, role models.Role) error
	// Remove deletes the pair and reports whether a row existed.
	Remove(ctx context.Context, fundID, userID string) (bool, error)
}
