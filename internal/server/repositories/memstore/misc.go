package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type memberNameRepo struct {
	handle
}

func (r *memberNameRepo) Save(ctx context.Context, userID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.data()

	if _, ok := st.users[userID]; !ok {
		return common.Validation("user_id", "unknown user")
	}
	set, ok := st.names[userID]
	if !ok {
		set = map[string]struct{}{}
		st.names[userID] = set
	}
	set[name] = struct{}{}
	return nil
}

func (r *memberNameRepo) List(ctx context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var names []string
	for n := range r.data().names[userID] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type refreshTokenRepo struct {
	handle
}

func (r *refreshTokenRepo) Create(ctx context.Context, userID, token string, expires time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.data().users[userID]; !ok {
		return common.Validation("user_id", "unknown user")
	}
	r.data().tokens[token] = models.RefreshToken{UserID: userID, Token: token, Expires: expires}
	return nil
}

func (r *refreshTokenRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.data().tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *refreshTokenRepo) Delete(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.data().tokens, token)
	return nil
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for tok, t := range r.data().tokens {
		if t.Expires.Before(now) {
			delete(r.data().tokens, tok)
		}
	}
	return nil
}
