package repo

import (
	"context"

	"murmur/internal/modkit/repokit"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/store"
	"murmur/internal/services/activity/domain"
)

// Users reads display fields from the users table
type Users struct{ q repokit.Queryer }

// NewUsers returns a UserDirectory over q
func NewUsers(q repokit.Queryer) *Users { return &Users{q: repokit.RequireQueryer(q)} }

// Users implements domain.UserDirectory with one query per batch
func (u *Users) Users(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	if len(ids) == 0 {
		return map[int64]domain.User{}, nil
	}
	rows, err := store.Many(ctx, u.q, func(r store.Row) (domain.User, error) {
		var x domain.User
		err := r.Scan(&x.ID, &x.Login, &x.Nicename, &x.Email, &x.DisplayName)
		return x, err
	}, `SELECT id, login, nicename, email, display_name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "users lookup")
	}
	out := make(map[int64]domain.User, len(rows))
	for _, x := range rows {
		out[x.ID] = x
	}
	return out, nil
}
