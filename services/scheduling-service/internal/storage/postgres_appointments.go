package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/telehealth/libs/db"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

const appointmentColumns = `id, provider_id, consumer_id, appt_date, start_minute, duration_minutes, kind, status,
	reason, meeting_url, reminder_sent, created_at, updated_at`

func (p *Postgres) scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		date   time.Time
		kind   string
		status string
	)
	err := row.Scan(&a.ID, &a.ProviderID, &a.ConsumerID, &date, &a.StartMinute, &a.DurationMinutes, &kind, &status,
		&a.Reason, &a.MeetingURL, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	a.Date = p.date(date)
	a.Kind = model.Kind(kind)
	a.Status = model.Status(status)
	return a, nil
}

func (p *Postgres) queryAppointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := p.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, provider_id, consumer_id, appt_date, start_minute, duration_minutes, starts_at, kind, status, reason, meeting_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+appointmentColumns,
		appt.ID, appt.ProviderID, appt.ConsumerID, dateParam(appt.Date), appt.StartMinute, appt.DurationMinutes,
		appt.StartsAt(), string(appt.Kind), string(appt.Status), appt.Reason, appt.MeetingURL)
	created, err := p.scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotConstraint) {
			return model.Appointment{}, ErrSlotTaken
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (p *Postgres) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	return p.scanAppointment(p.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (p *Postgres) ListActiveOnDate(ctx context.Context, providerID string, date time.Time) ([]model.Appointment, error) {
	if !validID(providerID) {
		return nil, nil
	}
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND appt_date = $2 AND status IN ('scheduled', 'confirmed')
		ORDER BY start_minute
	`, providerID, dateParam(date))
}

func (p *Postgres) ListByParticipant(ctx context.Context, profileID string, limit int) ([]model.Appointment, error) {
	if !validID(profileID) {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 OR consumer_id = $1
		ORDER BY starts_at DESC
		LIMIT $2
	`, profileID, limit)
}

func (p *Postgres) UpdateStatus(ctx context.Context, id string, from, to model.Status) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	a, err := p.scanAppointment(p.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, string(from), string(to)))
	if errors.Is(err, ErrNotFound) {
		return model.Appointment{}, p.staleOrMissing(ctx, id)
	}
	if err != nil && db.IsUniqueViolation(err, activeSlotConstraint) {
		return model.Appointment{}, ErrSlotTaken
	}
	return a, err
}

func (p *Postgres) Reschedule(ctx context.Context, id string, expect model.Status, change RescheduleChange) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	startsAt := time.Date(change.Date.Year(), change.Date.Month(), change.Date.Day(), 0, change.StartMinute, 0, 0, p.loc)
	a, err := p.scanAppointment(p.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appt_date = $3,
			start_minute = $4,
			duration_minutes = $5,
			starts_at = $6,
			reason = $7,
			reminder_sent = reminder_sent AND NOT $8,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, string(expect), dateParam(change.Date), change.StartMinute, change.DurationMinutes, startsAt,
		change.Reason, change.ResetReminder))
	if errors.Is(err, ErrNotFound) {
		return model.Appointment{}, p.staleOrMissing(ctx, id)
	}
	if err != nil && db.IsUniqueViolation(err, activeSlotConstraint) {
		return model.Appointment{}, ErrSlotTaken
	}
	return a, err
}

func (p *Postgres) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleState
	}
	return ErrNotFound
}

func (p *Postgres) ListReminderCandidates(ctx context.Context, after, notAfter time.Time) ([]model.Appointment, error) {
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE kind = 'virtual'
			AND reminder_sent = false
			AND status IN ('scheduled', 'confirmed')
			AND meeting_url <> ''
			AND starts_at > $1 AND starts_at <= $2
		ORDER BY starts_at
	`, after, notAfter)
}

func (p *Postgres) ClaimReminder(ctx context.Context, id string, startsAt time.Time) (bool, error) {
	if !validID(id) {
		return false, ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE id = $1 AND reminder_sent = false AND status IN ('scheduled', 'confirmed') AND starts_at = $2
	`, id, startsAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) ReleaseReminder(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := p.pool.Exec(ctx, `UPDATE appointments SET reminder_sent = false, updated_at = now() WHERE id = $1`, id)
	return err
}
