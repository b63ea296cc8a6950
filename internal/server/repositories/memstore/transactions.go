package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/transactions"
	"github.com/shopspring/decimal"
)

type transactionRepo struct {
	handle
}

func (st *state) duplicateExists(fundID, senderID string, date time.Time, amount decimal.Decimal, excludeID string) bool {
	for id, t := range st.txs {
		if id == excludeID || t.FundID != fundID || t.SenderID != senderID {
			continue
		}
		if t.Date.Equal(date) && t.Amount.Equal(amount) {
			return true
		}
	}
	return false
}

func (st *state) checkTransaction(tx *models.Transaction, excludeID string) error {
	if _, ok := st.funds[tx.FundID]; !ok {
		return common.Validation("fund_id", "unknown fund")
	}
	if _, ok := st.senders[tx.SenderID]; !ok {
		return common.Validation("sender_id", "unknown sender")
	}
	if !tx.Amount.IsPositive() {
		return common.Validation("amount", "must be positive")
	}
	if st.duplicateExists(tx.FundID, tx.SenderID, tx.Date, tx.Amount, excludeID) {
		return transactions.DuplicateError()
	}
	return nil
}

func (r *transactionRepo) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if err := st.checkTransaction(tx, ""); err != nil {
		return nil, err
	}
	if _, ok := st.users[tx.CreatedBy]; !ok {
		return nil, common.Validation("created_by", "unknown user")
	}
	tx.ID = newID()
	tx.CreatedAt = r.s.now()
	st.txs[tx.ID] = &txRow{Transaction: *tx, seq: st.nextSeq()}
	return tx, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.data().txs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := t.Transaction
	return &c, nil
}

func (r *transactionRepo) Update(ctx context.Context, tx *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	row, ok := st.txs[tx.ID]
	if !ok {
		return common.ErrorNotFound
	}
	probe := *tx
	probe.FundID = row.FundID
	if err := st.checkTransaction(&probe, tx.ID); err != nil {
		return err
	}
	row.SenderID = tx.SenderID
	row.Amount = tx.Amount
	row.Date = tx.Date
	row.Notes = tx.Notes
	row.Category = tx.Category
	return nil
}

func (r *transactionRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.data().txs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.data().txs, id)
	return nil
}

func (r *transactionRepo) DuplicateExists(ctx context.Context, fundID, senderID string, date time.Time, amount decimal.Decimal, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.data().duplicateExists(fundID, senderID, date, amount, excludeID), nil
}

func (r *transactionRepo) SenderNameUsed(ctx context.Context, fundID, name string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	key := common.NameKey(name)
	for _, t := range st.txs {
		if t.FundID != fundID {
			continue
		}
		if s, ok := st.senders[t.SenderID]; ok && common.NameKey(s.Name) == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *transactionRepo) ListByFund(ctx context.Context, fundID string, filter models.TransactionFilter) ([]*models.TransactionView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	category := strings.TrimSpace(filter.Category)
	search := strings.TrimSpace(filter.Search)

	var rows []*txRow
	for _, t := range st.txs {
		if t.FundID != fundID {
			continue
		}
		if filter.SenderID != "" && t.SenderID != filter.SenderID {
			continue
		}
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		if filter.From != nil && t.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.Date.After(*filter.To) {
			continue
		}
		if search != "" {
			var senderName string
			if s, ok := st.senders[t.SenderID]; ok {
				senderName = s.Name
			}
			if !containsFold(t.Notes, search) && !containsFold(t.Category, search) && !containsFold(senderName, search) {
				continue
			}
		}
		rows = append(rows, t)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.seq > b.seq
	})

	result := make([]*models.TransactionView, 0, len(rows))
	for _, t := range rows {
		v := &models.TransactionView{Transaction: t.Transaction, SenderMemberNames: []string{}}
		if s, ok := st.senders[t.SenderID]; ok {
			view := st.senderView(s)
			v.SenderName = view.Name
			v.SenderType = view.Type
			v.SenderCreatedBy = view.CreatedBy
			v.SenderMemberNames = view.MemberNames()
		}
		if u, ok := st.users[t.CreatedBy]; ok {
			v.CreatorName = u.Name
		}
		result = append(result, v)
	}
	return result, nil
}
