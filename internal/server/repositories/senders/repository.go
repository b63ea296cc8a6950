// Package senders stores named payers and their member identities.
package senders

import (
	"context"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts the sender row only; members are attached with
	// SetMembers.
	Create(ctx context.Context, sender *models.Sender) (*models.Sender, error)
	// GetByID returns the sender with creator name and members.
	GetByID(ctx context.Context, id string) (*models.Sender, error)
	// Update stores name and type.
	Update(ctx context.Context, sender *models.Sender) error
	// Delete fails with common.ErrorInvalidOperation while transactions
	// still reference the sender.
	Delete(ctx context.Context, id string) error
	NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error)
	// SetMembers replaces the member list, keeping the given order.
	SetMembers(ctx context.Context, senderID string, userIDs []string) error
	// ListVisible returns senders userID created or is a member of, by name.
	ListVisible(ctx context.Context, userID string) ([]*models.Sender, error)
	IsMember(ctx context.Context, senderID, userID string) (bool, error)
}
