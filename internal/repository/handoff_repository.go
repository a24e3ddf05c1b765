package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

type HandoffRepository struct {
	db *pgxpool.Pool
}

func NewHandoffRepository(db *pgxpool.Pool) *HandoffRepository {
	return &HandoffRepository{db: db}
}

// Enqueue opens a pending ticket for the conversation, or returns the one
// already pending. Either way the queue position comes back, so a repeated
// handoff request is answered identically to the first.
func (r *HandoffRepository) Enqueue(ctx context.Context, t *entities.HandoffTicket) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO handoff_tickets (agent_id, conversation_id, reason, status)
		VALUES ($1,$2,$3,'pending')
		RETURNING id, created_at
	`, t.AgentID, t.ConversationID, t.Reason).Scan(&t.ID, &t.CreatedAt)

	if isUniqueViolation(err) {
		existing, getErr := r.GetPending(ctx, t.ConversationID)
		if getErr != nil {
			return fmt.Errorf("enqueue handoff: %w", getErr)
		}
		if existing == nil {
			// The pending ticket closed between insert and lookup; retry once.
			return r.Enqueue(ctx, t)
		}
		*t = *existing
	} else if err != nil {
		return fmt.Errorf("enqueue handoff: %w", err)
	} else {
		t.Status = entities.TicketPending
	}

	pos, err := r.queuePosition(ctx, t.AgentID, t.ID)
	if err != nil {
		return err
	}
	t.Position = pos
	return nil
}

func (r *HandoffRepository) GetPending(ctx context.Context, conversationID int) (*entities.HandoffTicket, error) {
	var t entities.HandoffTicket
	err := r.db.QueryRow(ctx, `
		SELECT id, agent_id, conversation_id, reason, status, created_at
		FROM handoff_tickets WHERE conversation_id=$1 AND status='pending'
	`, conversationID).Scan(&t.ID, &t.AgentID, &t.ConversationID, &t.Reason, &t.Status, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// queuePosition counts pending tickets for the agent up to and including the
// given ticket id.
func (r *HandoffRepository) queuePosition(ctx context.Context, agentID, ticketID int) (int, error) {
	var pos int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM handoff_tickets
		WHERE agent_id=$1 AND status='pending' AND id <= $2
	`, agentID, ticketID).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	return pos, nil
}
