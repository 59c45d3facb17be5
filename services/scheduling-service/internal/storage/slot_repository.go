package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const slotColumns = `id::text, practitioner_id, weekday, start_minute, end_minute, reserved, created_at`

type SlotRepository struct {
	pool        *db.Pool
	lockTimeout time.Duration
}

// NewSlotRepository bounds every row-lock wait by lockTimeout. Zero disables the bound.
func NewSlotRepository(pool *db.Pool, lockTimeout time.Duration) *SlotRepository {
	return &SlotRepository{pool: pool, lockTimeout: lockTimeout}
}

// Begin opens a transaction with lock_timeout applied for its duration.
func (r *SlotRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if r.lockTimeout > 0 {
		ms := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return tx, nil
}

// LockPractitionerDay serialises slot creation for one practitioner and
// weekday until the transaction ends.
func (r *SlotRepository) LockPractitionerDay(ctx context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::bigint * 7 + $2::bigint)`, practitionerID, int64(weekday))
	return translate(err)
}

func (r *SlotRepository) ListForDay(ctx context.Context, tx pgx.Tx, practitionerID int64, weekday model.Weekday) ([]model.WeeklySlot, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+slotColumns+`
		FROM weekly_slots
		WHERE practitioner_id = $1 AND weekday = $2
		ORDER BY start_minute ASC
	`, practitionerID, int(weekday))
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *SlotRepository) Insert(ctx context.Context, tx pgx.Tx, slot *model.WeeklySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO weekly_slots (id, practitioner_id, weekday, start_minute, end_minute, reserved)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING created_at
	`, slot.ID, slot.PractitionerID, int(slot.Weekday), int(slot.Start), int(slot.End)).Scan(&slot.CreatedAt)
	if err != nil {
		return translate(err)
	}
	slot.Reserved = false
	return nil
}

// LockSlot reads the slot row with FOR UPDATE. A wait longer than the
// configured lock timeout surfaces as model.ErrLockTimeout.
func (r *SlotRepository) LockSlot(ctx context.Context, tx pgx.Tx, slotID string) (model.WeeklySlot, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM weekly_slots
		WHERE id = $1
		FOR UPDATE
	`, slotID)
	slot, err := scanSlot(row)
	if err != nil {
		return model.WeeklySlot{}, translate(err)
	}
	return slot, nil
}

func (r *SlotRepository) SetReserved(ctx context.Context, tx pgx.Tx, slotID string, reserved bool) error {
	tag, err := tx.Exec(ctx, `
		UPDATE weekly_slots SET reserved = $2, updated_at = now() WHERE id = $1
	`, slotID, reserved)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PractitionerActive reports false only for a practitioner row marked
// inactive. A slot whose practitioner has no mirror row yet stays bookable.
func (r *SlotRepository) PractitionerActive(ctx context.Context, tx pgx.Tx, practitionerID int64) (bool, error) {
	var active bool
	err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT active FROM practitioners WHERE id = $1), TRUE)
	`, practitionerID).Scan(&active)
	if err != nil {
		return false, translate(err)
	}
	return active, nil
}

func (r *SlotRepository) Delete(ctx context.Context, tx pgx.Tx, slotID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM weekly_slots WHERE id = $1 AND reserved = FALSE`, slotID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *SlotRepository) ListByPractitioner(ctx context.Context, practitionerID int64) ([]model.WeeklySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM weekly_slots
		WHERE practitioner_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// ListAvailable returns unreserved slots of active practitioners.
func (r *SlotRepository) ListAvailable(ctx context.Context) ([]model.AvailableSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id::text, s.practitioner_id, s.weekday, s.start_minute, s.end_minute, s.reserved, s.created_at,
			p.display_name
		FROM weekly_slots s
		JOIN practitioners p ON p.id = s.practitioner_id
		WHERE s.reserved = FALSE AND p.active
		ORDER BY s.weekday ASC, s.start_minute ASC, s.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailableSlot
	for rows.Next() {
		var a model.AvailableSlot
		var weekday, start, end int
		if err := rows.Scan(&a.ID, &a.PractitionerID, &weekday, &start, &end, &a.Reserved, &a.CreatedAt, &a.PractitionerName); err != nil {
			return nil, err
		}
		a.Weekday, a.Start, a.End = model.Weekday(weekday), model.TimeOfDay(start), model.TimeOfDay(end)
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanSlot(row pgx.Row) (model.WeeklySlot, error) {
	var s model.WeeklySlot
	var weekday, start, end int
	if err := row.Scan(&s.ID, &s.PractitionerID, &weekday, &start, &end, &s.Reserved, &s.CreatedAt); err != nil {
		return model.WeeklySlot{}, err
	}
	s.Weekday, s.Start, s.End = model.Weekday(weekday), model.TimeOfDay(start), model.TimeOfDay(end)
	return s, nil
}

func collectSlots(rows pgx.Rows) ([]model.WeeklySlot, error) {
	defer rows.Close()
	var out []model.WeeklySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
