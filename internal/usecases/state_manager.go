package usecases

import (
	"context"
	"fmt"
	"time"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
)

// historyDepth is how many recent messages are mirrored in process so a
// cycle doesn't reload the full log.
const historyDepth = 10

type conversationStore interface {
	GetOrCreate(ctx context.Context, agentID int, phone, displayName string) (*entities.Conversation, error)
	Save(ctx context.Context, c *entities.Conversation) error
	AppendMessage(ctx context.Context, m *entities.StoredMessage) error
	RecentMessages(ctx context.Context, conversationID, n int) ([]entities.StoredMessage, error)
}

// StateManager owns conversation lifecycle: persisted state, the flow
// machine, and the in-flight history cache.
type StateManager struct {
	repo    conversationStore
	history *infrastructure.TTLCache[int, []entities.StoredMessage]
}

func NewStateManager(repo conversationStore) *StateManager {
	return &StateManager{
		repo:    repo,
		history: infrastructure.NewTTLCache[int, []entities.StoredMessage](30 * time.Minute),
	}
}

func (s *StateManager) GetOrCreateConversation(ctx context.Context, agentID int, phone, displayName string) (*entities.Conversation, error) {
	return s.repo.GetOrCreate(ctx, agentID, phone, displayName)
}

// UpdateState transitions the conversation and merges (never replaces) the
// collected-data and context bags.
func (s *StateManager) UpdateState(ctx context.Context, conv *entities.Conversation, newState string, collected entities.Entities, patch entities.ConvContext) error {
	conv.State = newState
	conv.Collected.Merge(collected)
	if patch.LastIntent != "" {
		conv.Context.LastIntent = patch.LastIntent
	}
	if patch.LastTool != "" {
		conv.Context.LastTool = patch.LastTool
	}
	if patch.MissingFields != nil {
		conv.Context.MissingFields = patch.MissingFields
	}
	if patch.KnowledgeContext != "" {
		conv.Context.KnowledgeContext = patch.KnowledgeContext
	}
	return s.repo.Save(ctx, conv)
}

// SaveMessage appends to the immutable log and mirrors the tail into the
// per-conversation cache.
func (s *StateManager) SaveMessage(ctx context.Context, m *entities.StoredMessage) error {
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return err
	}

	cached, ok := s.history.Get(m.ConversationID)
	if !ok {
		return nil // cache fills lazily on the next history read
	}
	cached = append(cached, *m)
	if len(cached) > historyDepth {
		cached = cached[len(cached)-historyDepth:]
	}
	s.history.Set(m.ConversationID, cached)
	return nil
}

// RecentHistory returns the conversation tail, from cache when warm.
func (s *StateManager) RecentHistory(ctx context.Context, conversationID int) ([]entities.StoredMessage, error) {
	if cached, ok := s.history.Get(conversationID); ok {
		return cached, nil
	}
	msgs, err := s.repo.RecentMessages(ctx, conversationID, historyDepth)
	if err != nil {
		return nil, err
	}
	s.history.Set(conversationID, msgs)
	return msgs, nil
}

// StartFlow enters a collection flow. If every required field is already
// collected the conversation stays idle: the handler can run immediately.
func (s *StateManager) StartFlow(ctx context.Context, conv *entities.Conversation, flow entities.FlowKind) error {
	conv.CurrentFlow = flow
	conv.FlowStep = 0
	missing := s.MissingFields(conv)
	conv.Context.MissingFields = missing
	if len(missing) > 0 {
		conv.State = entities.StateCollectingInfo
	}
	return s.repo.Save(ctx, conv)
}

// AdvanceFlow re-evaluates requirements after new entities were merged.
// Returns true when the flow is ready to execute.
func (s *StateManager) AdvanceFlow(ctx context.Context, conv *entities.Conversation) (bool, error) {
	conv.FlowStep++
	missing := s.MissingFields(conv)
	conv.Context.MissingFields = missing
	if len(missing) == 0 {
		return true, s.repo.Save(ctx, conv)
	}
	conv.State = entities.StateCollectingInfo
	return false, s.repo.Save(ctx, conv)
}

// CompleteFlow clears the flow and returns the conversation to idle.
func (s *StateManager) CompleteFlow(ctx context.Context, conv *entities.Conversation) error {
	conv.CurrentFlow = entities.FlowNone
	conv.FlowStep = 0
	conv.State = entities.StateIdle
	conv.Context.MissingFields = nil
	return s.repo.Save(ctx, conv)
}

// EnterHandoff parks the conversation in the operator queue state. Terminal
// until an operator closes the ticket, which happens outside the runtime.
func (s *StateManager) EnterHandoff(ctx context.Context, conv *entities.Conversation) error {
	conv.State = entities.StateHandoff
	conv.CurrentFlow = entities.FlowNone
	conv.FlowStep = 0
	return s.repo.Save(ctx, conv)
}

// MissingFields lists the current flow's unmet requirements, in declaration
// order.
func (s *StateManager) MissingFields(conv *entities.Conversation) []string {
	required := conv.CurrentFlow.RequiredFields()
	missing := []string{}
	for _, f := range required {
		if conv.Collected.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// fieldPrompt asks the user for one missing field in plain language.
func fieldPrompt(field string) string {
	switch field {
	case "name":
		return "May I have your name, please?"
	case "phone":
		return "What phone number should I use for the booking?"
	case "date":
		return "What date works for you? You can say things like \"tomorrow\" or \"next Friday\"."
	case "time":
		return "What time would you like?"
	case "email":
		return "Could you share your email address?"
	default:
		return fmt.Sprintf("Could you tell me the %s?", field)
	}
}
