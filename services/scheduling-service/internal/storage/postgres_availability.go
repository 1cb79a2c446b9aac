package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/telehealth/libs/db"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

func (p *Postgres) ReplaceSchedule(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error {
	if !validID(providerID) {
		return ErrNotFound
	}
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		// Lock the provider row so concurrent replaces serialize instead of interleaving.
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, providerID).Scan(&locked); err != nil {
			if db.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE provider_id = $1`, providerID); err != nil {
			return err
		}
		if len(windows) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, w := range windows {
			batch.Queue(`
				INSERT INTO availability_windows (id, provider_id, day_of_week, start_minute, end_minute, slot_minutes, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.NewString(), providerID, int16(w.DayOfWeek), w.StartMinute, w.EndMinute, w.SlotDuration, w.Active)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *Postgres) ListSchedule(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	if !validID(providerID) {
		return nil, nil
	}
	return p.queryWindows(ctx, `
		SELECT id, provider_id, day_of_week, start_minute, end_minute, slot_minutes, active
		FROM availability_windows
		WHERE provider_id = $1
		ORDER BY day_of_week, start_minute
	`, providerID)
}

func (p *Postgres) ListDaySchedule(ctx context.Context, providerID string, day time.Weekday) ([]model.AvailabilityWindow, error) {
	if !validID(providerID) {
		return nil, nil
	}
	return p.queryWindows(ctx, `
		SELECT id, provider_id, day_of_week, start_minute, end_minute, slot_minutes, active
		FROM availability_windows
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, providerID, int16(day))
}

func (p *Postgres) queryWindows(ctx context.Context, sql string, args ...any) ([]model.AvailabilityWindow, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var (
			w   model.AvailabilityWindow
			day int16
		)
		if err := rows.Scan(&w.ID, &w.ProviderID, &day, &w.StartMinute, &w.EndMinute, &w.SlotDuration, &w.Active); err != nil {
			return nil, err
		}
		w.DayOfWeek = time.Weekday(day)
		out = append(out, w)
	}
	return out, rows.Err()
}
