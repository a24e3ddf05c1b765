package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_asisten/internal/entities"
)

// AgentRepository owns agents and their channel bindings. Absence is a nil
// result, not an error; callers treat nil as "no agent configured".
type AgentRepository struct {
	db *pgxpool.Pool
}

func NewAgentRepository(db *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `id, owner_user_id, name, tone, language, system_prompt, capabilities,
	business_name, business_info, trigger_url, open_hour, close_hour, slot_minutes,
	closed_day, status, created_at`

func scanAgent(row pgx.Row) (*entities.Agent, error) {
	var a entities.Agent
	var caps []byte
	err := row.Scan(&a.ID, &a.OwnerUserID, &a.Name, &a.Tone, &a.Language, &a.SystemPrompt,
		&caps, &a.BusinessName, &a.BusinessInfo, &a.TriggerURL, &a.OpenHour, &a.CloseHour,
		&a.SlotMinutes, &a.ClosedDay, &a.Status, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(caps) > 0 {
		json.Unmarshal(caps, &a.Capabilities)
	}
	return &a, nil
}

func (r *AgentRepository) GetAgent(ctx context.Context, id int) (*entities.Agent, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM agents WHERE id=$1", agentColumns), id)
	return scanAgent(row)
}

func (r *AgentRepository) CreateAgent(ctx context.Context, a *entities.Agent) error {
	caps, _ := json.Marshal(a.Capabilities)
	return r.db.QueryRow(ctx, `
		INSERT INTO agents (owner_user_id, name, tone, language, system_prompt, capabilities,
			business_name, business_info, trigger_url, open_hour, close_hour, slot_minutes, closed_day, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at
	`, a.OwnerUserID, a.Name, a.Tone, a.Language, a.SystemPrompt, caps,
		a.BusinessName, a.BusinessInfo, a.TriggerURL, a.OpenHour, a.CloseHour,
		a.SlotMinutes, a.ClosedDay, a.Status).Scan(&a.ID, &a.CreatedAt)
}

func (r *AgentRepository) UpdateAgent(ctx context.Context, a *entities.Agent) error {
	caps, _ := json.Marshal(a.Capabilities)
	_, err := r.db.Exec(ctx, `
		UPDATE agents SET name=$1, tone=$2, language=$3, system_prompt=$4, capabilities=$5,
			business_name=$6, business_info=$7, trigger_url=$8, open_hour=$9, close_hour=$10,
			slot_minutes=$11, closed_day=$12, status=$13
		WHERE id=$14
	`, a.Name, a.Tone, a.Language, a.SystemPrompt, caps, a.BusinessName, a.BusinessInfo,
		a.TriggerURL, a.OpenHour, a.CloseHour, a.SlotMinutes, a.ClosedDay, a.Status, a.ID)
	return err
}

func (r *AgentRepository) ListAgentsByOwner(ctx context.Context, ownerID int) ([]entities.Agent, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT %s FROM agents WHERE owner_user_id=$1 ORDER BY id", agentColumns), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []entities.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

const bindingColumns = `id, agent_id, phone_number_id, phone_number, access_token,
	verify_token, app_secret, status, created_at`

func scanBinding(row pgx.Row) (*entities.ChannelBinding, error) {
	var b entities.ChannelBinding
	err := row.Scan(&b.ID, &b.AgentID, &b.PhoneNumberID, &b.PhoneNumber, &b.AccessToken,
		&b.VerifyToken, &b.AppSecret, &b.Status, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *AgentRepository) GetBindingByChannelID(ctx context.Context, phoneNumberID string) (*entities.ChannelBinding, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM channel_bindings WHERE phone_number_id=$1", bindingColumns), phoneNumberID)
	return scanBinding(row)
}

func (r *AgentRepository) GetBindingByPhoneNumber(ctx context.Context, phoneNumber string) (*entities.ChannelBinding, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM channel_bindings WHERE phone_number=$1", bindingColumns), phoneNumber)
	return scanBinding(row)
}

func (r *AgentRepository) GetBindingByAgentID(ctx context.Context, agentID int) (*entities.ChannelBinding, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM channel_bindings WHERE agent_id=$1", bindingColumns), agentID)
	return scanBinding(row)
}

func (r *AgentRepository) GetBinding(ctx context.Context, id int) (*entities.ChannelBinding, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM channel_bindings WHERE id=$1", bindingColumns), id)
	return scanBinding(row)
}

func (r *AgentRepository) CreateBinding(ctx context.Context, b *entities.ChannelBinding) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO channel_bindings (agent_id, phone_number_id, phone_number, access_token, verify_token, app_secret, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, b.AgentID, b.PhoneNumberID, b.PhoneNumber, b.AccessToken, b.VerifyToken, b.AppSecret, b.Status).
		Scan(&b.ID, &b.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("phone_number_id %s already bound: %w", b.PhoneNumberID, err)
	}
	return err
}

func (r *AgentRepository) UpdateBinding(ctx context.Context, b *entities.ChannelBinding) error {
	_, err := r.db.Exec(ctx, `
		UPDATE channel_bindings
		SET phone_number=$1, access_token=$2, verify_token=$3, app_secret=$4, status=$5
		WHERE id=$6
	`, b.PhoneNumber, b.AccessToken, b.VerifyToken, b.AppSecret, b.Status, b.ID)
	return err
}

// HasVerifyToken reports whether any active binding registered the given
// webhook handshake token.
func (r *AgentRepository) HasVerifyToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var found bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM channel_bindings WHERE verify_token=$1 AND status='active')",
		token).Scan(&found)
	return found, err
}

func (r *AgentRepository) DeleteBinding(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, "DELETE FROM channel_bindings WHERE id=$1", id)
	return err
}
