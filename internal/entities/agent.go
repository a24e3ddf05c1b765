package entities

import "time"

// AgentStatus gates whether a tenant agent may receive traffic.
const (
	AgentActive   = "active"
	AgentInactive = "inactive"
)

// Agent is one customer's configured assistant: persona, capabilities and
// business metadata. Read-mostly; never mutated inside a message cycle.
type Agent struct {
	ID           int       `json:"id"`
	OwnerUserID  int       `json:"owner_user_id"`
	Name         string    `json:"name"`
	Tone         string    `json:"tone"`
	Language     string    `json:"language"`
	SystemPrompt string    `json:"system_prompt"`
	Capabilities []string  `json:"capabilities"`
	BusinessName string    `json:"business_name"`
	BusinessInfo string    `json:"business_info"`
	TriggerURL   string    `json:"trigger_url"` // outbound event fan-out target, may be empty
	OpenHour     int       `json:"open_hour"`   // availability fallback window
	CloseHour    int       `json:"close_hour"`
	SlotMinutes  int       `json:"slot_minutes"`
	ClosedDay    int       `json:"closed_day"` // time.Weekday value, -1 = none
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasCapability reports whether the agent declares the named capability.
// An empty capability list means everything is allowed.
func (a *Agent) HasCapability(name string) bool {
	if len(a.Capabilities) == 0 {
		return true
	}
	for _, c := range a.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// ChannelBinding maps a platform phone-number-id to its owning agent.
// AccessToken is ciphertext at rest; decrypt only right before a send.
type ChannelBinding struct {
	ID            int       `json:"id"`
	AgentID       int       `json:"agent_id"`
	PhoneNumberID string    `json:"phone_number_id"`
	PhoneNumber   string    `json:"phone_number"`
	AccessToken   string    `json:"-"`
	VerifyToken   string    `json:"-"`
	AppSecret     string    `json:"-"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResolvedTenant is what the resolver hands the orchestrator: the binding
// that matched the inbound channel plus its active agent.
type ResolvedTenant struct {
	Agent   *Agent
	Binding *ChannelBinding
}
