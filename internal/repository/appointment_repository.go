package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

type AppointmentRepository struct {
	db *pgxpool.Pool
}

func NewAppointmentRepository(db *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const apptColumns = `id, agent_id, conversation_id, customer_name, customer_phone,
	service, to_char(date, 'YYYY-MM-DD'), time, status, created_at`

func scanAppointment(row pgx.Row) (*entities.Appointment, error) {
	var a entities.Appointment
	err := row.Scan(&a.ID, &a.AgentID, &a.ConversationID, &a.CustomerName, &a.CustomerPhone,
		&a.Service, &a.Date, &a.Time, &a.Status, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Insert creates a confirmed appointment. A unique-index rejection means a
// concurrent writer won the slot; that comes back as ErrSlotTaken, which the
// tool engine converts into alternatives rather than a failure.
func (r *AppointmentRepository) Insert(ctx context.Context, a *entities.Appointment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (agent_id, conversation_id, customer_name, customer_phone, service, date, time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'confirmed')
		RETURNING id, created_at
	`, a.AgentID, a.ConversationID, a.CustomerName, a.CustomerPhone, a.Service, a.Date, a.Time).
		Scan(&a.ID, &a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	a.Status = entities.AppointmentConfirmed
	return nil
}

// BookedTimes returns the occupied times for a (agent, date) pair.
func (r *AppointmentRepository) BookedTimes(ctx context.Context, agentID int, date string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time FROM appointments
		WHERE agent_id=$1 AND date=$2 AND status <> 'cancelled'
	`, agentID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *AppointmentRepository) GetByID(ctx context.Context, agentID, id int) (*entities.Appointment, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM appointments WHERE agent_id=$1 AND id=$2", apptColumns), agentID, id)
	return scanAppointment(row)
}

// FindActiveByPhone returns the customer's most recent confirmed appointment.
func (r *AppointmentRepository) FindActiveByPhone(ctx context.Context, agentID int, phone string) (*entities.Appointment, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments
		WHERE agent_id=$1 AND customer_phone=$2 AND status='confirmed'
		ORDER BY date DESC, time DESC LIMIT 1
	`, apptColumns), agentID, phone)
	return scanAppointment(row)
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	_, err := r.db.Exec(ctx, "UPDATE appointments SET status=$1 WHERE id=$2", status, id)
	return err
}

// Reschedule moves a confirmed appointment to a new slot. The unique index
// re-validates the invariant; the row being moved does not conflict with
// itself because the update replaces its own (date, time).
func (r *AppointmentRepository) Reschedule(ctx context.Context, id int, date, timeSlot string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET date=$1, time=$2
		WHERE id=$3 AND status='confirmed'
	`, date, timeSlot, id)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("reschedule appointment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %d is not confirmed", id)
	}
	return nil
}
