package httpapi

import (
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
	"github.com/shopspring/decimal"
)

// Amounts are rendered as fixed two-decimal strings.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type refView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fundView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func newFundView(f *models.Fund) fundView {
	return fundView{ID: f.ID, Name: f.Name, Description: f.Description, CreatedBy: f.CreatedBy, CreatedAt: f.CreatedAt}
}

type fundSummaryView struct {
	fundView
	CreatorName      string `json:"creator_name"`
	Total            string `json:"total"`
	TransactionCount int64  `json:"transaction_count"`
	Role             string `json:"role"`
}

func newFundSummaries(list []*models.FundSummary) []fundSummaryView {
	out := make([]fundSummaryView, 0, len(list))
	for _, f := range list {
		out = append(out, fundSummaryView{
			fundView:         newFundView(&f.Fund),
			CreatorName:      f.CreatorName,
			Total:            money(f.Total),
			TransactionCount: f.TransactionCount,
			Role:             string(f.Role),
		})
	}
	return out
}

type memberView struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type transactionView struct {
	ID            string    `json:"id"`
	FundID        string    `json:"fund_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name,omitempty"`
	SenderType    string    `json:"sender_type,omitempty"`
	SenderMembers []string  `json:"sender_members,omitempty"`
	Amount        string    `json:"amount"`
	Date          string    `json:"date"`
	Notes         string    `json:"notes"`
	Category      string    `json:"category"`
	CreatedBy     string    `json:"created_by"`
	CreatorName   string    `json:"creator_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CanEditSender bool      `json:"can_edit_sender"`
}

func newTransactionView(t *models.Transaction) transactionView {
	return transactionView{
		ID:        t.ID,
		FundID:    t.FundID,
		SenderID:  t.SenderID,
		Amount:    money(t.Amount),
		Date:      t.Date.Format(ledger.DateLayout),
		Notes:     t.Notes,
		Category:  t.Category,
		CreatedBy: t.CreatedBy,
		CreatedAt: t.CreatedAt,
	}
}

func newTransactionItems(items []*services.TransactionItem) []transactionView {
	out := make([]transactionView, 0, len(items))
	for _, it := range items {
		v := newTransactionView(&it.Transaction)
		v.SenderName = it.SenderName
		v.SenderType = string(it.SenderType)
		v.SenderMembers = it.SenderMemberNames
		v.CreatorName = it.CreatorName
		v.CanEditSender = it.CanEditSender
		out = append(out, v)
	}
	return out
}

type senderView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	CreatedBy   string    `json:"created_by"`
	CreatorName string    `json:"creator_name,omitempty"`
	Members     []refView `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

func newSenderView(s *models.Sender) senderView {
	v := senderView{
		ID:          s.ID,
		Name:        s.Name,
		Type:        string(s.Type),
		CreatedBy:   s.CreatedBy,
		CreatorName: s.CreatorName,
		Members:     newRefs(s.Members),
		CreatedAt:   s.CreatedAt,
	}
	return v
}

func newSenderViews(list []*models.Sender) []senderView {
	out := make([]senderView, 0, len(list))
	for _, s := range list {
		out = append(out, newSenderView(s))
	}
	return out
}

func newRefs(refs []models.UserRef) []refView {
	out := make([]refView, 0, len(refs))
	for _, r := range refs {
		out = append(out, refView{ID: r.ID, Name: r.Name})
	}
	return out
}

type fundDetailView struct {
	fundView
	CreatorName           string            `json:"creator_name"`
	Role                  string            `json:"role"`
	AccessSource          string            `json:"access_source"`
	CanEdit               bool              `json:"can_edit"`
	CanManageMembers      bool              `json:"can_manage_members"`
	CanManageTransactions bool              `json:"can_manage_transactions"`
	Members               []memberView      `json:"members"`
	Total                 string            `json:"total"`
	Transactions          []transactionView `json:"transactions"`
	EligibleSenders       []senderView      `json:"eligible_senders"`
	SavedMemberNames      []string          `json:"saved_member_names"`
	Candidates            []refView         `json:"candidates,omitempty"`
}

func newFundDetailView(d *services.FundDetail) fundDetailView {
	v := fundDetailView{
		fundView:              newFundView(d.Fund),
		CreatorName:           d.CreatorName,
		Role:                  string(d.Standing.Role),
		AccessSource:          d.Standing.Source.String(),
		CanEdit:               d.CanEdit,
		CanManageMembers:      d.CanManageMembers,
		CanManageTransactions: d.CanManageTransactions,
		Members:               make([]memberView, 0, len(d.Members)),
		Total:                 money(d.Total),
		Transactions:          newTransactionItems(d.Transactions),
		EligibleSenders:       newSenderViews(d.EligibleSenders),
		SavedMemberNames:      d.SavedMemberNames,
		Candidates:            newRefs(d.Candidates),
	}
	for _, m := range d.Members {
		v.Members = append(v.Members, memberView{UserID: m.UserID, Name: m.UserName, Role: string(m.Role)})
	}
	if v.SavedMemberNames == nil {
		v.SavedMemberNames = []string{}
	}
	return v
}

type userView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           *string   `json:"email"`
	IsAdmin         bool      `json:"is_admin"`
	Theme           string    `json:"theme"`
	HideAddMemberUI bool      `json:"hide_add_member_ui"`
	CreatedAt       time.Time `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		IsAdmin:         u.IsAdmin,
		Theme:           u.ThemePreference,
		HideAddMemberUI: u.HideAddMemberUI,
		CreatedAt:       u.CreatedAt,
	}
}
