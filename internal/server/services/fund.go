package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/access"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/funds"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

// overviewSize is how many funds the dashboard shows.
const overviewSize = 5

// FundService manages funds and their membership.
type FundService struct {
	base
}

func NewFundService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger) *FundService {
	return &FundService{base: newBase(tx, m, logger, "funds")}
}

// FundUpdate carries the optional fields of an edit; nil leaves a field as is.
type FundUpdate struct {
	Name        *string
	Description *string
}

// TransactionItem is one row of a fund's ledger as shown to a given user.
type TransactionItem struct {
	*models.TransactionView
	// CanEditSender is set when the viewer created the entry's sender.
	CanEditSender bool
}

// FundDetail is everything a member sees when opening a fund.
type FundDetail struct {
	Fund                  *models.Fund
	CreatorName           string
	Standing              access.Standing
	CanEdit               bool
	CanManageMembers      bool
	CanManageTransactions bool
	Members               []*models.FundMember
	Total                 decimal.Decimal
	Transactions          []*TransactionItem
	EligibleSenders       []*models.Sender
	SavedMemberNames      []string
	// Candidates are the users an owner may add; empty for everyone else.
	Candidates []models.UserRef
}

// Overview is the dashboard summary of a user's funds.
type Overview struct {
	Funds     []*models.FundSummary
	FundCount int
	Total     decimal.Decimal
}

func noAccess() error {
	return common.Permission("you do not have access to this fund")
}

// CreateFund creates a fund owned by actorID and records them as its owner.
func (s *FundService) CreateFund(ctx context.Context, actorID, name, description string) (*models.Fund, error) {
	name, err := common.CheckName("name", name)
	if err != nil {
		return nil, err
	}

	fund := &models.Fund{Name: name, Description: common.NormalizeName(description), CreatedBy: actorID}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Funds(tx)

		exists, err := repo.NameExists(ctx, actorID, name, "")
		if err != nil {
			return err
		}
		if exists {
			return funds.DuplicateNameError()
		}

		if _, err := repo.Create(ctx, fund); err != nil {
			return err
		}
		return s.repomanager.Memberships(tx).Upsert(ctx, fund.ID, actorID, models.RoleOwner)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "fund created", "fund_id", fund.ID, "actor", actorID)
	return fund, nil
}

// GetFund returns the fund detail for anyone with access.
func (s *FundService) GetFund(ctx context.Context, actorID, fundID string) (*FundDetail, error) {
	db := s.tx.Conn()

	fund, st, err := s.standing(ctx, db, fundID, actorID)
	if err != nil {
		return nil, err
	}
	if !st.HasAccess() {
		return nil, noAccess()
	}

	d := &FundDetail{
		Fund:                  fund,
		Standing:              st,
		CanEdit:               st.CanEdit(),
		CanManageMembers:      st.IsOwner(),
		CanManageTransactions: st.CanManageTransactions(),
	}

	if d.CreatorName, err = s.repomanager.Funds(db).CreatorName(ctx, fund.ID); err != nil {
		return nil, err
	}
	if d.Members, err = s.repomanager.Memberships(db).List(ctx, fund.ID); err != nil {
		return nil, err
	}
	if d.Total, err = s.repomanager.Funds(db).Total(ctx, fund.ID); err != nil {
		return nil, err
	}

	views, err := s.repomanager.Transactions(db).ListByFund(ctx, fund.ID, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	d.Transactions = make([]*TransactionItem, 0, len(views))
	for _, v := range views {
		d.Transactions = append(d.Transactions, &TransactionItem{TransactionView: v, CanEditSender: v.SenderCreatedBy == actorID})
	}

	if d.EligibleSenders, err = s.repomanager.Senders(db).ListVisible(ctx, actorID); err != nil {
		return nil, err
	}
	if d.SavedMemberNames, err = s.repomanager.MemberNames(db).List(ctx, actorID); err != nil {
		return nil, err
	}
	if d.CanManageMembers {
		if d.Candidates, err = s.repomanager.Users(db).ListFundCandidates(ctx, fund.ID); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// ListFunds returns every fund actorID can open, by name, with the resolved
// role filled in.
func (s *FundService) ListFunds(ctx context.Context, actorID string) ([]*models.FundSummary, error) {
	list, err := s.repomanager.Funds(s.tx.Conn()).ListForUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error listing funds: %w", err)
	}

	for _, f := range list {
		var m *models.FundMember
		if f.Role != "" {
			m = &models.FundMember{FundID: f.ID, UserID: actorID, Role: f.Role}
		}
		f.Role = access.Resolve(&f.Fund, actorID, m).Role
	}
	return list, nil
}

// Overview returns the first funds of the listing with overall aggregates.
func (s *FundService) Overview(ctx context.Context, actorID string) (*Overview, error) {
	list, err := s.ListFunds(ctx, actorID)
	if err != nil {
		return nil, err
	}

	o := &Overview{FundCount: len(list), Total: decimal.Zero}
	for _, f := range list {
		o.Total = o.Total.Add(f.Total)
	}
	if len(list) > overviewSize {
		list = list[:overviewSize]
	}
	o.Funds = list
	return o, nil
}

// UpdateFund edits name and description. Name uniqueness is checked among
// the funds of the fund's creator, not the editor's.
func (s *FundService) UpdateFund(ctx context.Context, actorID, fundID string, in FundUpdate) (*models.Fund, error) {
	var fund *models.Fund

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		f, st, err := s.standing(ctx, tx, fundID, actorID)
		if err != nil {
			return err
		}
		if !st.CanEdit() {
			return common.Permission("you cannot edit this fund")
		}

		if in.Name != nil {
			name, err := common.CheckName("name", *in.Name)
			if err != nil {
				return err
			}
			exists, err := s.repomanager.Funds(tx).NameExists(ctx, f.CreatedBy, name, f.ID)
			if err != nil {
				return err
			}
			if exists {
				return funds.DuplicateNameError()
			}
			f.Name = name
		}
		if in.Description != nil {
			f.Description = common.NormalizeName(*in.Description)
		}

		if err := s.repomanager.Funds(tx).Update(ctx, f); err != nil {
			return err
		}
		fund = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "fund updated", "fund_id", fundID, "actor", actorID)
	return fund, nil
}

// DeleteFund removes the fund with its transactions and memberships.
func (s *FundService) DeleteFund(ctx context.Context, actorID, fundID string) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, st, err := s.standing(ctx, tx, fundID, actorID)
		if err != nil {
			return err
		}
		if !st.IsOwner() {
			return common.Permission("only an owner can delete this fund")
		}
		return s.repomanager.Funds(tx).Delete(ctx, fundID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "fund deleted", "fund_id", fundID, "actor", actorID)
	return nil
}

// AddMember grants targetID the viewer or member role. An existing
// membership, owner rows included, is overwritten with role.
func (s *FundService) AddMember(ctx context.Context, actorID, fundID, targetID string, role models.Role) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		fund, st, err := s.standing(ctx, tx, fundID, actorID)
		if err != nil {
			return err
		}
		if !st.IsOwner() {
			return common.Permission("only an owner can manage members")
		}

		if role != models.RoleViewer && role != models.RoleMember {
			return common.Validation("role", "must be viewer or member")
		}
		if _, err := s.repomanager.Users(tx).GetByID(ctx, targetID); err != nil {
			return asValidation(err, "user_id", "unknown user")
		}

		return s.repomanager.Memberships(tx).Upsert(ctx, fund.ID, targetID, role)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "member added", "fund_id", fundID, "user_id", targetID, "role", role, "actor", actorID)
	return nil
}

// RemoveMember drops targetID from the fund. It reports false, without
// error, when the target was not a member.
func (s *FundService) RemoveMember(ctx context.Context, actorID, fundID, targetID string) (bool, error) {
	var removed bool

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		fund, st, err := s.standing(ctx, tx, fundID, actorID)
		if err != nil {
			return err
		}
		if !st.IsOwner() {
			return common.Permission("only an owner can manage members")
		}

		target, err := s.resolve(ctx, tx, fund, targetID)
		if err != nil {
			return err
		}
		if target.IsOwner() {
			return common.NewFieldError(common.ErrorInvalidOperation, "", "cannot remove an owner")
		}

		removed, err = s.repomanager.Memberships(tx).Remove(ctx, fund.ID, targetID)
		return err
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.logger.Info(ctx, "member removed", "fund_id", fundID, "user_id", targetID, "actor", actorID)
	}
	return removed, nil
}
