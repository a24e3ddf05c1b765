package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const convColumns = `id, agent_id, customer_phone, customer_name, state, current_flow,
	flow_step, collected, context, created_at, updated_at`

func scanConversation(row pgx.Row) (*entities.Conversation, error) {
	var c entities.Conversation
	var flow string
	var collected, convCtx []byte
	err := row.Scan(&c.ID, &c.AgentID, &c.CustomerPhone, &c.CustomerName, &c.State, &flow,
		&c.FlowStep, &collected, &convCtx, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.CurrentFlow = entities.FlowKind(flow)
	if len(collected) > 0 {
		json.Unmarshal(collected, &c.Collected)
	}
	if len(convCtx) > 0 {
		json.Unmarshal(convCtx, &c.Context)
	}
	return &c, nil
}

// GetOrCreate is idempotent: repeated calls for the same (agent, phone) pair
// return the same row. Creation seeds an empty context and idle state.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, agentID int, phone, displayName string) (*entities.Conversation, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO conversations (agent_id, customer_phone, customer_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id, customer_phone)
		DO UPDATE SET customer_name = CASE
			WHEN conversations.customer_name = '' THEN EXCLUDED.customer_name
			ELSE conversations.customer_name END
		RETURNING %s
	`, convColumns), agentID, phone, displayName)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return conv, nil
}

func (r *ConversationRepository) Get(ctx context.Context, id int) (*entities.Conversation, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM conversations WHERE id=$1", convColumns), id)
	return scanConversation(row)
}

// Save persists the conversation's mutable fields. The caller has already
// merged the bags; a single end user's messages are processed serially so
// read-modify-write is safe here.
func (r *ConversationRepository) Save(ctx context.Context, c *entities.Conversation) error {
	collected, _ := json.Marshal(c.Collected)
	convCtx, _ := json.Marshal(c.Context)
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET state=$1, current_flow=$2, flow_step=$3, collected=$4, context=$5, updated_at=NOW()
		WHERE id=$6
	`, c.State, string(c.CurrentFlow), c.FlowStep, collected, convCtx, c.ID)
	if err != nil {
		return fmt.Errorf("save conversation %d: %w", c.ID, err)
	}
	return nil
}

// AppendMessage adds one immutable log entry.
func (r *ConversationRepository) AppendMessage(ctx context.Context, m *entities.StoredMessage) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, direction, kind, content, media_id, intent)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, m.ConversationID, m.Direction, m.Kind, m.Content, m.MediaID, m.Intent).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last n entries, oldest first.
func (r *ConversationRepository) RecentMessages(ctx context.Context, conversationID, n int) ([]entities.StoredMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, direction, kind, content, media_id, intent, created_at
		FROM messages WHERE conversation_id=$1
		ORDER BY id DESC LIMIT $2
	`, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []entities.StoredMessage{}
	for rows.Next() {
		var m entities.StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Kind, &m.Content,
			&m.MediaID, &m.Intent, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, rows.Err()
}
