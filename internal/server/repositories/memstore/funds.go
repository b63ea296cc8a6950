package memstore

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/funds"
	"github.com/shopspring/decimal"
)

type fundRepo struct {
	handle
}

func (st *state) fundNameExists(creatorID, name, excludeID string) bool {
	key := common.NameKey(name)
	for id, f := range st.funds {
		if id != excludeID && f.CreatedBy == creatorID && common.NameKey(f.Name) == key {
			return true
		}
	}
	return false
}

func (st *state) deleteFund(id string) {
	for k := range st.members {
		if k.fundID == id {
			delete(st.members, k)
		}
	}
	for tid, t := range st.txs {
		if t.FundID == id {
			delete(st.txs, tid)
		}
	}
	delete(st.funds, id)
}

func (st *state) fundTotals(id string) (decimal.Decimal, int64) {
	total := decimal.Zero
	var n int64
	for _, t := range st.txs {
		if t.FundID == id {
			total = total.Add(t.Amount)
			n++
		}
	}
	return total, n
}

func (r *fundRepo) Create(ctx context.Context, fund *models.Fund) (*models.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.users[fund.CreatedBy]; !ok {
		return nil, common.Validation("created_by", "unknown user")
	}
	if st.fundNameExists(fund.CreatedBy, fund.Name, "") {
		return nil, funds.DuplicateNameError()
	}
	fund.ID = newID()
	fund.CreatedAt = r.s.now()

	f := *fund
	st.funds[f.ID] = &f
	return fund, nil
}

func (r *fundRepo) GetByID(ctx context.Context, id string) (*models.Fund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.data().funds[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

func (r *fundRepo) Update(ctx context.Context, fund *models.Fund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	f, ok := st.funds[fund.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if st.fundNameExists(f.CreatedBy, fund.Name, fund.ID) {
		return funds.DuplicateNameError()
	}
	f.Name = fund.Name
	f.Description = fund.Description
	return nil
}

func (r *fundRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.data().funds[id]; !ok {
		return common.ErrorNotFound
	}
	r.data().deleteFund(id)
	return nil
}

func (r *fundRepo) NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.data().fundNameExists(creatorID, name, excludeID), nil
}

func (r *fundRepo) ListForUser(ctx context.Context, userID string) ([]*models.FundSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	var result []*models.FundSummary
	for id, f := range st.funds {
		role, member := st.members[memberKey{id, userID}]
		if !member && f.CreatedBy != userID {
			continue
		}
		total, n := st.fundTotals(id)
		s := &models.FundSummary{
			Fund:             *f,
			Total:            total,
			TransactionCount: n,
			Role:             role,
		}
		if u, ok := st.users[f.CreatedBy]; ok {
			s.CreatorName = u.Name
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fundRepo) Total(ctx context.Context, fundID string) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	total, _ := r.data().fundTotals(fundID)
	return total, nil
}

func (r *fundRepo) CreatorName(ctx context.Context, fundID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	f, ok := st.funds[fundID]
	if !ok {
		return "", common.ErrorNotFound
	}
	u, ok := st.users[f.CreatedBy]
	if !ok {
		return "", common.ErrorNotFound
	}
	return u.Name, nil
}
