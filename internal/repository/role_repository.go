package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/site-listing-marketplace/internal/auth"
)

// RoleRepo reads role grants from the user_roles table.  Users without a
// row are plain users.
type RoleRepo struct {
	db *sqlx.DB
}

// NewRoleRepo returns a RoleRepo bound to db.
func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{db: db} }

// ResolveRole implements auth.RoleResolver.
func (r *RoleRepo) ResolveRole(ctx context.Context, userID string) (auth.Role, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM user_roles WHERE user_id = ? LIMIT 1`, userID)
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return auth.RoleUser, nil
		}
		return "", err
	}
	return auth.Role(role), nil
}
