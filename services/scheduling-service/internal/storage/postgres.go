package storage

import (
	"embed"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/telehealth/libs/db"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations for db.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const activeSlotConstraint = "appointments_active_slot_uniq"

// Postgres is the durable Store. Calendar dates are read back in loc.
type Postgres struct {
	pool *db.Pool
	loc  *time.Location
}

func NewPostgres(pool *db.Pool, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.UTC
	}
	return &Postgres{pool: pool, loc: loc}
}

func (p *Postgres) date(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, p.loc)
}

func dateParam(d time.Time) string {
	return d.Format(time.DateOnly)
}

// validID keeps malformed ids from reaching UUID columns, where they would fail with a cast
// error instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ Store = (*Postgres)(nil)
