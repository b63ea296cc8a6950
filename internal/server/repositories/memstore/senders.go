package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/senders"
)

type senderRepo struct {
	handle
}

func (st *state) senderNameExists(creatorID, name, excludeID string) bool {
	key := common.NameKey(name)
	for id, s := range st.senders {
		if id != excludeID && s.CreatedBy == creatorID && common.NameKey(s.Name) == key {
			return true
		}
	}
	return false
}

func (st *state) senderView(row *senderRow) *models.Sender {
	s := row.Sender
	if u, ok := st.users[s.CreatedBy]; ok {
		s.CreatorName = u.Name
	}
	s.Members = make([]models.UserRef, 0, len(row.memberIDs))
	for _, id := range row.memberIDs {
		if u, ok := st.users[id]; ok {
			s.Members = append(s.Members, models.UserRef{ID: id, Name: u.Name})
		}
	}
	return &s
}

func (r *senderRepo) Create(ctx context.Context, sender *models.Sender) (*models.Sender, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.users[sender.CreatedBy]; !ok {
		return nil, common.Validation("created_by", "unknown user")
	}
	if st.senderNameExists(sender.CreatedBy, sender.Name, "") {
		return nil, senders.DuplicateNameError()
	}
	sender.ID = newID()
	sender.CreatedAt = r.s.now()

	row := &senderRow{Sender: *sender}
	row.Members = nil
	row.CreatorName = ""
	st.senders[sender.ID] = row
	return sender, nil
}

func (r *senderRepo) GetByID(ctx context.Context, id string) (*models.Sender, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.data().senders[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.data().senderView(row), nil
}

func (r *senderRepo) Update(ctx context.Context, sender *models.Sender) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	row, ok := st.senders[sender.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if st.senderNameExists(row.CreatedBy, sender.Name, sender.ID) {
		return senders.DuplicateNameError()
	}
	row.Name = sender.Name
	row.Type = sender.Type
	return nil
}

func (r *senderRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.senders[id]; !ok {
		return common.ErrorNotFound
	}
	for _, t := range st.txs {
		if t.SenderID == id {
			return senders.InUseError()
		}
	}
	delete(st.senders, id)
	return nil
}

func (r *senderRepo) NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.data().senderNameExists(creatorID, name, excludeID), nil
}

func (r *senderRepo) SetMembers(ctx context.Context, senderID string, userIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	row, ok := st.senders[senderID]
	if !ok {
		return common.ErrorNotFound
	}

	seen := make(map[string]struct{}, len(userIDs))
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := st.users[id]; !ok {
			return common.Validation("member_user_ids", "unknown user")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	row.memberIDs = ids
	return nil
}

func (r *senderRepo) ListVisible(ctx context.Context, userID string) ([]*models.Sender, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	var result []*models.Sender
	for _, row := range st.senders {
		if row.CreatedBy != userID && !slices.Contains(row.memberIDs, userID) {
			continue
		}
		result = append(result, st.senderView(row))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *senderRepo) IsMember(ctx context.Context, senderID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.data().senders[senderID]
	if !ok {
		return false, nil
	}
	return slices.Contains(row.memberIDs, userID), nil
}
