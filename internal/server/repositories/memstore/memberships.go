package memstore

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type membershipRepo struct {
	handle
}

func (r *membershipRepo) Get(ctx context.Context, fundID, userID string) (*models.FundMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	role, ok := st.members[memberKey{fundID, userID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	m := &models.FundMember{FundID: fundID, UserID: userID, Role: role}
	if u, ok := st.users[userID]; ok {
		m.UserName = u.Name
	}
	return m, nil
}

func (r *membershipRepo) List(ctx context.Context, fundID string) ([]*models.FundMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	var result []*models.FundMember
	for k, role := range st.members {
		if k.fundID != fundID {
			continue
		}
		m := &models.FundMember{FundID: fundID, UserID: k.userID, Role: role}
		if u, ok := st.users[k.userID]; ok {
			m.UserName = u.Name
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserName != result[j].UserName {
			return result[i].UserName < result[j].UserName
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

func (r *membershipRepo) Upsert(ctx context.Context, fundID, userID string, role models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.funds[fundID]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := st.users[userID]; !ok {
		return common.Validation("user_id", "unknown user")
	}
	st.members[memberKey{fundID, userID}] = role
	return nil
}

func (r *membershipRepo) Remove(ctx context.Context, fundID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := memberKey{fundID, userID}
	if _, ok := r.data().members[k]; !ok {
		return false, nil
	}
	delete(r.data().members, k)
	return true, nil
}
