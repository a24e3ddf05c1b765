package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

type KnowledgeRepository struct {
	db *pgxpool.Pool
}

func NewKnowledgeRepository(db *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// SearchCandidates returns tenant entries whose title or body contains any
// keyword, case-insensitively. Scoring happens in the retrieval usecase.
func (r *KnowledgeRepository) SearchCandidates(ctx context.Context, agentID int, keywords []string) ([]entities.KnowledgeEntry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, "%"+kw+"%")
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, agent_id, title, section, content_type, content, created_at
		FROM knowledge_entries
		WHERE agent_id=$1 AND (title ILIKE ANY($2) OR content ILIKE ANY($2))
	`, agentID, patterns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []entities.KnowledgeEntry{}
	for rows.Next() {
		var e entities.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Title, &e.Section, &e.ContentType,
			&e.Content, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *KnowledgeRepository) Create(ctx context.Context, e *entities.KnowledgeEntry) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO knowledge_entries (agent_id, title, section, content_type, content)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, e.AgentID, e.Title, e.Section, e.ContentType, e.Content).Scan(&e.ID, &e.CreatedAt)
}

func (r *KnowledgeRepository) Delete(ctx context.Context, agentID, id int) error {
	_, err := r.db.Exec(ctx, "DELETE FROM knowledge_entries WHERE agent_id=$1 AND id=$2", agentID, id)
	return err
}
