package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const appointmentColumns = `id::text, client_id, practitioner_id, COALESCE(slot_id::text, ''), occurs_at,
	duration_minutes, status, service_type, notes, cancelled_at, COALESCE(cancellation_reason, ''),
	created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// Insert writes a new appointment. A second live appointment for the same
// slot occurrence violates appointments_slot_occurrence_uniq and maps to
// model.ErrAlreadyReserved.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, client_id, practitioner_id, slot_id, occurs_at, duration_minutes, status, service_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, appt.ID, appt.ClientID, appt.PractitionerID, appt.SlotID, appt.OccursAt, appt.DurationMinutes,
		string(appt.Status), appt.ServiceType, appt.Notes).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	return translate(err)
}

func (r *AppointmentRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

// SetStatus records a status change; reason is only kept for cancellations.
func (r *AppointmentRepository) SetStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus, reason string) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2::text,
			cancelled_at = CASE WHEN $2::text = 'cancelled' THEN now() ELSE cancelled_at END,
			cancellation_reason = CASE WHEN $2::text = 'cancelled' THEN NULLIF($3::text, '') ELSE cancellation_reason END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, appointmentID, string(status), reason))
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, appointmentID))
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

func (r *AppointmentRepository) ListByPractitioner(ctx context.Context, practitionerID int64, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `practitioner_id = $1`, practitionerID, limit)
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID int64, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `client_id = $1`, clientID, limit)
}

func (r *AppointmentRepository) list(ctx context.Context, where string, id int64, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY occurs_at DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.PractitionerID,
		&appt.SlotID,
		&appt.OccursAt,
		&appt.DurationMinutes,
		&status,
		&appt.ServiceType,
		&appt.Notes,
		&appt.CancelledAt,
		&appt.CancellationReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.AppointmentStatus(status)
	return appt, nil
}
