package entities

import "time"

// Trigger event types published to a tenant's fan-out URL.
const (
	EventAppointmentBooked = "appointment.booked"
	EventLeadCaptured      = "lead.captured"
	EventHandoffRequested  = "conversation.handoff"
)

// TriggerEvent is a fire-and-forget notification of a business side effect.
// The runtime never waits on, or fails because of, its delivery.
type TriggerEvent struct {
	EventID    string         `json:"event_id"`
	Type       string         `json:"type"`
	AgentID    int            `json:"agent_id"`
	TargetURL  string         `json:"-"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// User is a platform account that owns agents and signs into the admin
// surface. Unrelated to end users on the messaging channel.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
