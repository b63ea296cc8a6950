// Package users declares and implements storage of accounts and placeholder
// identities.
package users

import (
	"context"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in ID and CreatedAt. A taken email yields
	// common.ErrorDuplicateName.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// FindPlaceholder looks up the placeholder named name that ownerID
	// materialized earlier. common.ErrorNotFound when there is none.
	FindPlaceholder(ctx context.Context, ownerID, name string) (*models.User, error)
	// EmailTaken reports whether another user (not excludeID) uses email.
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	// Update stores name, email, password hash and admin flag.
	Update(ctx context.Context, user *models.User) error
	UpdatePreferences(ctx context.Context, id, theme string, hideAddMemberUI bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	// ListFundCandidates returns admins who are not yet members of fundID.
	ListFundCandidates(ctx context.Context, fundID string) ([]models.UserRef, error)
}
