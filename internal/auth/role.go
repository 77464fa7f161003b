// Package auth decides what an authenticated caller is allowed to do.
// Identities come from bearer tokens issued by the external identity
// provider; roles are looked up through a RoleResolver.
package auth

import (
	"context"
	"strings"
)

// Role is the authorisation level of a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleResolver maps an authenticated user id to its role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (Role, error)
}

// StaticResolver grants the admin role to a fixed set of user ids and the
// user role to everybody else.
type StaticResolver struct {
	admins map[string]struct{}
}

// NewStaticResolver builds a resolver from the configured admin ids.  Blank
// entries are ignored.
func NewStaticResolver(adminIDs []string) *StaticResolver {
	r := &StaticResolver{admins: make(map[string]struct{}, len(adminIDs))}
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			r.admins[id] = struct{}{}
		}
	}
	return r
}

func (r *StaticResolver) ResolveRole(_ context.Context, userID string) (Role, error) {
	if _, ok := r.admins[userID]; ok {
		return RoleAdmin, nil
	}
	return RoleUser, nil
}

// Chain asks each resolver in turn and returns the first admin grant.
// Any error aborts the lookup.
type Chain []RoleResolver

func (c Chain) ResolveRole(ctx context.Context, userID string) (Role, error) {
	for _, r := range c {
		role, err := r.ResolveRole(ctx, userID)
		if err != nil {
			return "", err
		}
		if role == RoleAdmin {
			return RoleAdmin, nil
		}
	}
	return RoleUser, nil
}
