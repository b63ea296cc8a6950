package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/users"
)

type userRepo struct {
	handle
}

func copyUser(r *userRow) *models.User {
	u := r.User
	u.PasswordHash = append([]byte(nil), r.PasswordHash...)
	if len(u.PasswordHash) == 0 {
		u.PasswordHash = nil
	}
	return &u
}

func (st *state) emailTaken(email, excludeID string) bool {
	for id, u := range st.users {
		if id != excludeID && u.Email != nil && strings.EqualFold(*u.Email, email) {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if user.Email != nil && st.emailTaken(*user.Email, "") {
		return nil, users.DuplicateEmailError()
	}
	if user.ThemePreference == "" {
		user.ThemePreference = models.ThemeSystem
	}
	user.ID = newID()
	user.CreatedAt = r.s.now()

	row := &userRow{User: *user, seq: st.nextSeq()}
	row.PasswordHash = append([]byte(nil), user.PasswordHash...)
	st.users[user.ID] = row
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.data().users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.data().users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) FindPlaceholder(ctx context.Context, ownerID, name string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *userRow
	for _, u := range r.data().users {
		if u.PlaceholderOwnerID == nil || *u.PlaceholderOwnerID != ownerID {
			continue
		}
		if u.Name != name || !u.IsPlaceholder() {
			continue
		}
		if found == nil || u.seq < found.seq {
			found = u
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return copyUser(found), nil
}

func (r *userRepo) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.data().emailTaken(email, excludeID), nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	row, ok := st.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if user.Email != nil && st.emailTaken(*user.Email, user.ID) {
		return users.DuplicateEmailError()
	}
	row.Name = user.Name
	row.Email = user.Email
	row.PasswordHash = append([]byte(nil), user.PasswordHash...)
	row.IsAdmin = user.IsAdmin
	return nil
}

func (r *userRepo) UpdatePreferences(ctx context.Context, id, theme string, hideAddMemberUI bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.data().users[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.ThemePreference = theme
	row.HideAddMemberUI = hideAddMemberUI
	return nil
}

// Delete follows the schema: owned funds and senders cascade, while
// transactions the user recorded elsewhere, or that reference their
// senders, block the delete.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.users[id]; !ok {
		return common.ErrorNotFound
	}

	for _, t := range st.txs {
		if f, ok := st.funds[t.FundID]; ok && f.CreatedBy == id {
			continue
		}
		if t.CreatedBy == id {
			return users.InUseError()
		}
		if s, ok := st.senders[t.SenderID]; ok && s.CreatedBy == id {
			return users.InUseError()
		}
	}

	for fid, f := range st.funds {
		if f.CreatedBy == id {
			st.deleteFund(fid)
		}
	}
	for sid, s := range st.senders {
		if s.CreatedBy == id {
			delete(st.senders, sid)
		}
	}
	for k := range st.members {
		if k.userID == id {
			delete(st.members, k)
		}
	}
	for _, s := range st.senders {
		s.memberIDs = slices.DeleteFunc(s.memberIDs, func(m string) bool { return m == id })
	}
	for _, u := range st.users {
		if u.PlaceholderOwnerID != nil && *u.PlaceholderOwnerID == id {
			u.PlaceholderOwnerID = nil
		}
	}
	for tok, t := range st.tokens {
		if t.UserID == id {
			delete(st.tokens, tok)
		}
	}
	delete(st.names, id)
	delete(st.users, id)
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (r *userRepo) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	name := strings.TrimSpace(filter.Name)
	email := strings.TrimSpace(filter.Email)

	var result []*models.User
	for _, u := range r.data().users {
		if filter.Name != "" && !containsFold(u.Name, name) {
			continue
		}
		if filter.Email != "" && (u.Email == nil || !containsFold(*u.Email, email)) {
			continue
		}
		if (filter.Role == "admin" && !u.IsAdmin) || (filter.Role == "user" && u.IsAdmin) {
			continue
		}
		result = append(result, copyUser(u))
	}

	less := func(a, b *models.User) int {
		switch filter.Sort {
		case "email":
			return strings.Compare(deref(a.Email), deref(b.Email))
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "role":
			return boolCompare(a.IsAdmin, b.IsAdmin)
		}
		return strings.Compare(a.Name, b.Name)
	}
	sort.SliceStable(result, func(i, j int) bool {
		c := less(result[i], result[j])
		if filter.Desc {
			c = -c
		}
		if c == 0 {
			return result[i].ID < result[j].ID
		}
		return c < 0
	})
	return result, nil
}

func (r *userRepo) ListFundCandidates(ctx context.Context, fundID string) ([]models.UserRef, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := r.data()

	var result []models.UserRef
	for id, u := range st.users {
		if !u.IsAdmin {
			continue
		}
		if _, member := st.members[memberKey{fundID, id}]; member {
			continue
		}
		result = append(result, models.UserRef{ID: id, Name: u.Name})
	}
	sortRefs(result)
	return result, nil
}

func sortRefs(refs []models.UserRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].ID < refs[j].ID
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
