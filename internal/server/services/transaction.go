package services

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/transactions"
	"github.com/shopspring/decimal"
)

// CreateTransactionInput is a new ledger entry. Exactly one of SenderID and
// NewSender must be set.
type CreateTransactionInput struct {
	FundID    string
	SenderID  string
	NewSender *SenderInput
	Amount    string
	Date      string
	Notes     string
	Category  string
}

// UpdateTransactionInput is the new state of an entry. EditSender, when set,
// edits the entry's current sender in place.
type UpdateTransactionInput struct {
	SenderID   string
	EditSender *SenderInput
	Amount     string
	Date       string
	Notes      string
	Category   string
}

// TransactionService records money moving through funds.
type TransactionService struct {
	base
}

func NewTransactionService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger) *TransactionService {
	return &TransactionService{base: newBase(tx, m, logger, "transactions")}
}

type entryFields struct {
	amount   decimal.Decimal
	date     time.Time
	notes    string
	category string
}

func (s *TransactionService) parseFields(amount, date, notes, category string) (entryFields, error) {
	var (
		f   entryFields
		err error
	)
	if f.amount, err = ledger.ParseAmount(amount); err != nil {
		return f, err
	}
	if f.date, err = ledger.ParseDate(date, s.now()); err != nil {
		return f, err
	}
	if f.category, err = ledger.CheckCategory(category); err != nil {
		return f, err
	}
	f.notes = strings.TrimSpace(notes)
	return f, nil
}

func (b *base) checkDuplicate(ctx context.Context, db dbx.DBTX, fundID, senderID string, f entryFields, excludeID string) error {
	dup, err := b.repomanager.Transactions(db).DuplicateExists(ctx, fundID, senderID, f.date, f.amount, excludeID)
	if err != nil {
		return err
	}
	if dup {
		return transactions.DuplicateError()
	}
	return nil
}

func (b *base) requireSender(ctx context.Context, db dbx.DBTX, senderID string) (*models.Sender, error) {
	sender, err := b.repomanager.Senders(db).GetByID(ctx, senderID)
	if err != nil {
		return nil, asValidation(err, "sender_id", "unknown sender")
	}
	return sender, nil
}

// CreateTransaction records an entry in a fund, materializing a new sender
// first when one is described.
func (s *TransactionService) CreateTransaction(ctx context.Context, actorID string, in CreateTransactionInput) (*models.Transaction, error) {
	var created *models.Transaction

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, st, err := s.standing(ctx, tx, in.FundID, actorID)
		if err != nil {
			return asValidation(err, "fund_id", "unknown fund")
		}
		if !st.CanManageTransactions() {
			return common.Permission("you cannot add transactions to this fund")
		}

		senderID := strings.TrimSpace(in.SenderID)
		if (senderID == "") == (in.NewSender == nil) {
			return common.Validation("sender_id", "select an existing sender or describe a new one")
		}

		fields, err := s.parseFields(in.Amount, in.Date, in.Notes, in.Category)
		if err != nil {
			return err
		}

		if in.NewSender != nil {
			draft, err := in.NewSender.normalize("new_sender")
			if err != nil {
				return err
			}
			used, err := s.repomanager.Transactions(tx).SenderNameUsed(ctx, in.FundID, draft.Name)
			if err != nil {
				return err
			}
			if used {
				return common.NewFieldError(common.ErrorConflict, "new_sender.name",
					"sender name already exists in this fund, select it from the list")
			}
			sender, err := s.materializeSender(ctx, tx, actorID, nil, draft)
			if err != nil {
				return err
			}
			senderID = sender.ID
		} else if _, err := s.requireSender(ctx, tx, senderID); err != nil {
			return err
		}

		if err := s.checkDuplicate(ctx, tx, in.FundID, senderID, fields, ""); err != nil {
			return err
		}

		created, err = s.repomanager.Transactions(tx).Create(ctx, &models.Transaction{
			FundID:    in.FundID,
			SenderID:  senderID,
			Amount:    fields.amount,
			Date:      fields.date,
			Notes:     fields.notes,
			Category:  fields.category,
			CreatedBy: actorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "transaction created", "transaction_id", created.ID, "fund_id", created.FundID, "actor", actorID)
	return created, nil
}

// UpdateTransaction edits an entry. A sender edit is only accepted from the
// sender's creator and only while the entry keeps the same sender.
func (s *TransactionService) UpdateTransaction(ctx context.Context, actorID, transactionID string, in UpdateTransactionInput) (*models.Transaction, error) {
	var updated *models.Transaction

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Transactions(tx)

		t, err := repo.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		_, st, err := s.standing(ctx, tx, t.FundID, actorID)
		if err != nil {
			return err
		}
		if !st.CanManageTransactions() {
			return common.Permission("you cannot edit transactions of this fund")
		}

		senderID := strings.TrimSpace(in.SenderID)
		if senderID == "" {
			return common.Validation("sender_id", "is required")
		}

		if in.EditSender != nil {
			if senderID != t.SenderID {
				return common.Validation("sender_id", "cannot change the sender and edit it at the same time")
			}
			sender, err := s.requireSender(ctx, tx, senderID)
			if err != nil {
				return err
			}
			if sender.CreatedBy != actorID {
				return common.Permission("only the sender's creator can edit it")
			}
			draft, err := in.EditSender.normalize("edit_sender")
			if err != nil {
				return err
			}
			if _, err := s.materializeSender(ctx, tx, actorID, sender, draft); err != nil {
				return err
			}
		} else if senderID != t.SenderID {
			if _, err := s.requireSender(ctx, tx, senderID); err != nil {
				return err
			}
		}

		fields, err := s.parseFields(in.Amount, in.Date, in.Notes, in.Category)
		if err != nil {
			return err
		}
		if err := s.checkDuplicate(ctx, tx, t.FundID, senderID, fields, t.ID); err != nil {
			return err
		}

		t.SenderID = senderID
		t.Amount = fields.amount
		t.Date = fields.date
		t.Notes = fields.notes
		t.Category = fields.category
		if err := repo.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "transaction updated", "transaction_id", transactionID, "actor", actorID)
	return updated, nil
}

// DeleteTransaction removes an entry.
func (s *TransactionService) DeleteTransaction(ctx context.Context, actorID, transactionID string) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Transactions(tx)

		t, err := repo.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		_, st, err := s.standing(ctx, tx, t.FundID, actorID)
		if err != nil {
			return err
		}
		if !st.CanManageTransactions() {
			return common.Permission("you cannot delete transactions of this fund")
		}
		return repo.Delete(ctx, t.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "transaction deleted", "transaction_id", transactionID, "actor", actorID)
	return nil
}

// ListTransactions returns a fund's entries matching filter.
func (s *TransactionService) ListTransactions(ctx context.Context, actorID, fundID string, filter models.TransactionFilter) ([]*TransactionItem, error) {
	db := s.tx.Conn()

	_, st, err := s.standing(ctx, db, fundID, actorID)
	if err != nil {
		return nil, err
	}
	if !st.HasAccess() {
		return nil, noAccess()
	}

	views, err := s.repomanager.Transactions(db).ListByFund(ctx, fundID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]*TransactionItem, 0, len(views))
	for _, v := range views {
		items = append(items, &TransactionItem{TransactionView: v, CanEditSender: v.SenderCreatedBy == actorID})
	}
	return items, nil
}
