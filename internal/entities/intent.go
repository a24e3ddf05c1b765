package entities

// Intent is the closed set of things the decision layer may conclude from a
// message. Adding a member means updating the orchestrator's switch.
type Intent string

const (
	IntentGreeting          Intent = "greeting"
	IntentBookAppointment   Intent = "book_appointment"
	IntentCancelAppointment Intent = "cancel_appointment"
	IntentReschedule        Intent = "reschedule_appointment"
	IntentCheckAvailability Intent = "check_availability"
	IntentQuestion          Intent = "question"
	IntentHumanHandoff      Intent = "human_handoff"
	IntentGoodbye           Intent = "goodbye"
	IntentUnknown           Intent = "unknown"
)

// ParseIntent maps free text from the model onto the closed set; anything
// unrecognized degrades to unknown rather than leaking a new variant.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentGreeting, IntentBookAppointment, IntentCancelAppointment,
		IntentReschedule, IntentCheckAvailability, IntentQuestion,
		IntentHumanHandoff, IntentGoodbye:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

// Flow returns the collection flow an intent starts, FlowNone if it is
// answerable in a single turn.
func (i Intent) Flow() FlowKind {
	switch i {
	case IntentBookAppointment:
		return FlowBooking
	case IntentReschedule:
		return FlowReschedule
	case IntentCancelAppointment:
		return FlowCancel
	default:
		return FlowNone
	}
}

// Entities is the fixed-shape bag extracted from a message. Extra keeps
// forward compatibility without loosening the known fields.
type Entities struct {
	Date          string            `json:"date,omitempty"` // 2006-01-02
	Time          string            `json:"time,omitempty"` // 15:04
	Name          string            `json:"name,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	Email         string            `json:"email,omitempty"`
	Service       string            `json:"service,omitempty"`
	AppointmentID int               `json:"appointment_id,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Field returns a named known field, used by the flow machine's
// required-field checks.
func (e *Entities) Field(name string) string {
	switch name {
	case "date":
		return e.Date
	case "time":
		return e.Time
	case "name":
		return e.Name
	case "phone":
		return e.Phone
	case "email":
		return e.Email
	case "service":
		return e.Service
	default:
		if e.Extra != nil {
			return e.Extra[name]
		}
		return ""
	}
}

// Merge overlays non-empty fields of other onto e, keeping existing values
// when the newer extraction is silent.
func (e *Entities) Merge(other Entities) {
	if other.Date != "" {
		e.Date = other.Date
	}
	if other.Time != "" {
		e.Time = other.Time
	}
	if other.Name != "" {
		e.Name = other.Name
	}
	if other.Phone != "" {
		e.Phone = other.Phone
	}
	if other.Email != "" {
		e.Email = other.Email
	}
	if other.Service != "" {
		e.Service = other.Service
	}
	if other.AppointmentID != 0 {
		e.AppointmentID = other.AppointmentID
	}
	for k, v := range other.Extra {
		if v == "" {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]string)
		}
		e.Extra[k] = v
	}
}

// Analysis is the decision layer's full answer for one message.
type Analysis struct {
	Intent        Intent   `json:"intent"`
	Entities      Entities `json:"entities"`
	Confidence    float64  `json:"confidence"`
	SuggestedTool Tool     `json:"suggested_tool,omitempty"`
}
