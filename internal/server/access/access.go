// Package access holds the fund authorization policy. Every decision about
// who may read or mutate a fund is derived from a single Standing computed
// by Resolve; callers never re-implement the creator fallback.
package access

import "github.com/dmitrijs2005/fundkeeper/internal/server/models"

// Source records where a Standing came from.
type Source int

const (
	// SourceNone: the user has no relationship to the fund.
	SourceNone Source = iota
	// SourceMembership: an explicit fund_members row exists.
	SourceMembership
	// SourceCreator: no row exists but the user created the fund and is
	// treated as an owner.
	SourceCreator
)

func (s Source) String() string {
	switch s {
	case SourceMembership:
		return "membership"
	case SourceCreator:
		return "creator"
	default:
		return "none"
	}
}

// Standing is a user's resolved relationship to one fund.
type Standing struct {
	Role   models.Role
	Source Source
}

// Resolve computes the standing of userID in fund. membership is the user's
// fund_members row, or nil when there is none. An explicit row always wins,
// even when it carries a weaker role than the creator fallback would.
func Resolve(fund *models.Fund, userID string, membership *models.FundMember) Standing {
	if membership != nil {
		return Standing{Role: membership.Role, Source: SourceMembership}
	}
	if fund != nil && userID != "" && fund.CreatedBy == userID {
		return Standing{Role: models.RoleOwner, Source: SourceCreator}
	}
	return Standing{}
}

// HasAccess: any relationship at all.
func (s Standing) HasAccess() bool {
	return s.Source != SourceNone
}

// IsOwner: may manage membership and delete the fund.
func (s Standing) IsOwner() bool {
	return s.HasAccess() && s.Role == models.RoleOwner
}

// CanEdit: may change fund name and description.
func (s Standing) CanEdit() bool {
	return s.HasAccess() && (s.Role == models.RoleOwner || s.Role == models.RoleMember)
}

// CanManageTransactions: may create, update and delete transactions.
func (s Standing) CanManageTransactions() bool {
	return s.CanEdit()
}
