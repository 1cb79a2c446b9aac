package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/telehealth/libs/db"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

const profileColumns = `id, principal_id, role, name, email, phone, created_at`

func scanProfile(row pgx.Row) (model.Profile, error) {
	var pr model.Profile
	if err := row.Scan(&pr.ID, &pr.PrincipalID, &pr.Role, &pr.Name, &pr.Email, &pr.Phone, &pr.CreatedAt); err != nil {
		if db.IsNotFound(err) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, err
	}
	return pr, nil
}

func (p *Postgres) EnsureProfile(ctx context.Context, seed model.Profile) (model.Profile, error) {
	if seed.ID == "" {
		seed.ID = uuid.NewString()
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	return scanProfile(p.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, principal_id, role, name, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (principal_id, role) DO UPDATE SET principal_id = EXCLUDED.principal_id
		RETURNING `+profileColumns,
		seed.ID, seed.PrincipalID, seed.Role, seed.Name, seed.Email, seed.Phone))
}

func (p *Postgres) FindProfile(ctx context.Context, principalID, role string) (model.Profile, error) {
	return scanProfile(p.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE principal_id = $1 AND role = $2`, principalID, role))
}

func (p *Postgres) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	if !validID(id) {
		return model.Profile{}, ErrNotFound
	}
	return scanProfile(p.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}
