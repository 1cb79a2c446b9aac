// Package profile translates authenticated principals into the role-specific profile ids the
// scheduling core works with. Translation happens only here, at the request boundary.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
)

var ErrUnknownRole = errors.New("unknown role")

// Principal is what the identity provider vouches for.
type Principal struct {
	ID    string
	Role  string
	Name  string
	Email string
	Phone string
}

type Resolver struct {
	store storage.ProfileStore
}

func NewResolver(store storage.ProfileStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the principal's existing profile, or storage.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, p Principal) (model.Profile, error) {
	if err := check(p); err != nil {
		return model.Profile{}, err
	}
	return r.store.FindProfile(ctx, p.ID, p.Role)
}

// Ensure returns the principal's profile, creating it on first use.
func (r *Resolver) Ensure(ctx context.Context, p Principal) (model.Profile, error) {
	if err := check(p); err != nil {
		return model.Profile{}, err
	}
	return r.store.EnsureProfile(ctx, model.Profile{
		PrincipalID: p.ID,
		Role:        p.Role,
		Name:        strings.TrimSpace(p.Name),
		Email:       strings.TrimSpace(p.Email),
		Phone:       strings.TrimSpace(p.Phone),
	})
}

func check(p Principal) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("principal id is required")
	}
	if p.Role != model.RoleProvider && p.Role != model.RoleConsumer {
		return ErrUnknownRole
	}
	return nil
}
