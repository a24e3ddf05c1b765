package entities

import "time"

// Appointment statuses. confirmed -> cancelled|completed; a reschedule keeps
// the row confirmed and re-validates the slot invariant.
const (
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment occupies one (agent, date, time) slot. At most one
// non-cancelled row may exist per slot; the storage layer enforces this.
type Appointment struct {
	ID             int       `json:"id"`
	AgentID        int       `json:"agent_id"`
	ConversationID int       `json:"conversation_id"`
	CustomerName   string    `json:"customer_name"`
	CustomerPhone  string    `json:"customer_phone"`
	Service        string    `json:"service"`
	Date           string    `json:"date"` // 2006-01-02
	Time           string    `json:"time"` // 15:04
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Lead is upserted by (agent, phone); notes and fields accumulate across
// conversations instead of being recreated.
type Lead struct {
	ID        int               `json:"id"`
	AgentID   int               `json:"agent_id"`
	Name      string            `json:"name"`
	Phone     string            `json:"phone"`
	Email     string            `json:"email"`
	Notes     string            `json:"notes"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Handoff ticket statuses.
const (
	TicketPending = "pending"
	TicketClosed  = "closed"
)

// HandoffTicket queues a conversation for a human operator. At most one
// pending ticket per conversation.
type HandoffTicket struct {
	ID             int       `json:"id"`
	AgentID        int       `json:"agent_id"`
	ConversationID int       `json:"conversation_id"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status"`
	Position       int       `json:"position"` // place in the pending queue
	CreatedAt      time.Time `json:"created_at"`
}

// KnowledgeEntry is a tenant-scoped text chunk, searched but never mutated
// by the runtime.
type KnowledgeEntry struct {
	ID          int       `json:"id"`
	AgentID     int       `json:"agent_id"`
	Title       string    `json:"title"`
	Section     string    `json:"section"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}
