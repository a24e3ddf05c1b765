package entities

import "time"

// Conversation states. Handoff is terminal until an operator closes the
// ticket, which happens outside the runtime.
const (
	StateIdle           = "idle"
	StateCollectingInfo = "collecting_info"
	StateHandoff        = "handoff"
)

// FlowKind names a multi-turn field-collection procedure.
type FlowKind string

const (
	FlowNone       FlowKind = ""
	FlowBooking    FlowKind = "booking"
	FlowReschedule FlowKind = "reschedule"
	FlowCancel     FlowKind = "cancel"
	FlowLead       FlowKind = "lead"
)

// RequiredFields returns the entity fields a flow must collect before its
// handler may execute. The same machine runs every flow; only this list
// differs.
func (f FlowKind) RequiredFields() []string {
	switch f {
	case FlowBooking:
		return []string{"name", "phone", "date", "time"}
	case FlowReschedule:
		return []string{"phone", "date", "time"}
	case FlowCancel:
		return []string{"phone"}
	case FlowLead:
		return []string{"name", "phone"}
	default:
		return nil
	}
}

// ConvContext is the decision-layer scratch carried between cycles.
type ConvContext struct {
	LastIntent       string   `json:"last_intent,omitempty"`
	LastTool         string   `json:"last_tool,omitempty"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	KnowledgeContext string   `json:"knowledge_context,omitempty"`
}

// Conversation is keyed by (agent, end-user phone). Created lazily on first
// contact, transitioned on every cycle, never hard-deleted.
type Conversation struct {
	ID            int
	AgentID       int
	CustomerPhone string
	CustomerName  string
	State         string
	CurrentFlow   FlowKind
	FlowStep      int
	Collected     Entities
	Context       ConvContext
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Message directions in the conversation log.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// StoredMessage is an immutable, append-only log entry.
type StoredMessage struct {
	ID             int
	ConversationID int
	Direction      string
	Kind           string
	Content        string
	MediaID        string
	Intent         string
	CreatedAt      time.Time
}
