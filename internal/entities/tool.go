package entities

// Tool is the closed set of deterministic operations the orchestrator may
// invoke. Distinct from intents: a tool is what actually runs.
type Tool string

const (
	ToolNone            Tool = ""
	ToolCheckAvail      Tool = "check_availability"
	ToolBookAppointment Tool = "book_appointment"
	ToolCancel          Tool = "cancel_appointment"
	ToolReschedule      Tool = "reschedule_appointment"
	ToolCaptureLead     Tool = "capture_lead"
	ToolHumanHandoff    Tool = "human_handoff"
	ToolSearchKnowledge Tool = "search_knowledge"
)

// ParseTool maps model output onto the closed tool set, ToolNone otherwise.
func ParseTool(s string) Tool {
	switch Tool(s) {
	case ToolCheckAvail, ToolBookAppointment, ToolCancel, ToolReschedule,
		ToolCaptureLead, ToolHumanHandoff, ToolSearchKnowledge:
		return Tool(s)
	default:
		return ToolNone
	}
}

// ToolInput is everything a handler may need; handlers pick what they use.
type ToolInput struct {
	Agent          *Agent
	ConversationID int
	CustomerPhone  string
	Entities       Entities
	Query          string // free text, knowledge search only
	Notes          string
}

// ToolResult is the uniform handler answer. Validation failures and lost
// slot races are unsuccessful results, never errors.
type ToolResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Options []ReplyOption  `json:"options,omitempty"`
	Missing []string       `json:"missing,omitempty"`
	Err     string         `json:"error,omitempty"`
}
