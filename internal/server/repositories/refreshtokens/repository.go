// Package refreshtokens stores the opaque refresh tokens issued at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, valid until expires.
	Create(ctx context.Context, userID, token string, expires time.Time) error
	// Find returns the token row or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// DeleteExpired drops every token that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) error
}
