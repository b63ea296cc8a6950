package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role tags a fund membership.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RoleViewer:
		return true
	}
	return false
}

type Fund struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

// FundMember is one row of a fund's membership set.
type FundMember struct {
	FundID   string
	UserID   string
	UserName string
	Role     Role
}

// FundSummary is a fund as listed for one user, with read-time aggregates.
type FundSummary struct {
	Fund
	CreatorName      string
	Total            decimal.Decimal
	TransactionCount int64
	// Role is the listing user's explicit membership role, empty if the
	// user only relates to the fund as its creator.
	Role Role
}

// UserRef is the id/name pair used in candidate lists.
type UserRef struct {
	ID   string
	Name string
}
