// Package membernames keeps each user's previously typed group member names.
package membernames

import "context"

type Repository interface {
	// Save records name for userID; saving a known name is a no-op.
	Save(ctx context.Context, userID, name string) error
	// List returns userID's names alphabetically.
	List(ctx context.Context, userID string) ([]string, error)
}
