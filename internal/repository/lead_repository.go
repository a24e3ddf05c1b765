package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

type LeadRepository struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db}
}

// Upsert keys on (agent, phone). An existing lead accumulates: notes are
// appended, custom fields merged, and name/email only filled when previously
// empty.
func (r *LeadRepository) Upsert(ctx context.Context, l *entities.Lead) error {
	fields, _ := json.Marshal(l.Fields)
	row := r.db.QueryRow(ctx, `
		INSERT INTO leads (agent_id, name, phone, email, notes, fields)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (agent_id, phone) DO UPDATE SET
			name  = CASE WHEN leads.name = ''  THEN EXCLUDED.name  ELSE leads.name  END,
			email = CASE WHEN leads.email = '' THEN EXCLUDED.email ELSE leads.email END,
			notes = CASE
				WHEN EXCLUDED.notes = '' THEN leads.notes
				WHEN leads.notes = ''    THEN EXCLUDED.notes
				ELSE leads.notes || E'\n' || EXCLUDED.notes END,
			fields = leads.fields || EXCLUDED.fields,
			updated_at = NOW()
		RETURNING id, name, email, notes, fields, created_at, updated_at
	`, l.AgentID, l.Name, l.Phone, l.Email, l.Notes, fields)

	var merged []byte
	if err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Notes, &merged, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	if len(merged) > 0 {
		json.Unmarshal(merged, &l.Fields)
	}
	return nil
}

func (r *LeadRepository) GetByPhone(ctx context.Context, agentID int, phone string) (*entities.Lead, error) {
	var l entities.Lead
	var fields []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, agent_id, name, phone, email, notes, fields, created_at, updated_at
		FROM leads WHERE agent_id=$1 AND phone=$2
	`, agentID, phone).Scan(&l.ID, &l.AgentID, &l.Name, &l.Phone, &l.Email, &l.Notes,
		&fields, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(fields) > 0 {
		json.Unmarshal(fields, &l.Fields)
	}
	return &l, nil
}
