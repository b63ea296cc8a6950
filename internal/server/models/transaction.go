package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID        string
	FundID    string
	SenderID  string
	Amount    decimal.Decimal
	Date      time.Time
	Notes     string
	Category  string
	CreatedBy string
	CreatedAt time.Time
}

// TransactionView is a transaction joined with its sender and creator for
// display in a fund.
type TransactionView struct {
	Transaction
	SenderName        string
	SenderType        SenderType
	SenderCreatedBy   string
	SenderMemberNames []string
	CreatorName       string
}

// TransactionFilter narrows a fund's transaction listing. Zero values match
// everything.
type TransactionFilter struct {
	SenderID string
	Category string
	From     *time.Time
	To       *time.Time
	// Search matches notes, category and sender name case-insensitively.
	Search string
}
