package entities

import "time"

// MessageKind is the typed payload variant of a normalized inbound message.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindImage       MessageKind = "image"
	KindDocument    MessageKind = "document"
	KindAudio       MessageKind = "audio"
	KindVideo       MessageKind = "video"
	KindLocation    MessageKind = "location"
	KindButtonReply MessageKind = "button_reply"
	KindListReply   MessageKind = "list_reply"
)

// InboundMessage is the single internal shape every webhook payload is
// normalized into before the runtime touches it.
type InboundMessage struct {
	PlatformID  string // stable message id assigned by the platform
	From        string // sender phone number
	ProfileName string // sender display name, best effort
	ChannelID   string // phone-number-id the message arrived on
	Kind        MessageKind
	Text        string // body for text, caption for media
	MediaID     string // platform media reference, media kinds only
	ReplyID     string // selected option id, interactive kinds only
	ReplyTitle  string // selected option title, interactive kinds only
	Latitude    float64
	Longitude   float64
	Timestamp   time.Time
}

// IsInteractive reports whether the message is a button or list selection.
func (m *InboundMessage) IsInteractive() bool {
	return m.Kind == KindButtonReply || m.Kind == KindListReply
}

// StatusUpdate is a delivery receipt for a previously sent message.
// Parsed and logged only; reconciling against stored messages is a known gap.
type StatusUpdate struct {
	MessageID string
	Recipient string
	Status    string // sent | delivered | read | failed
	Timestamp time.Time
}

// ReplyOption is one selectable choice offered back to the end user.
type ReplyOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// OutboundKind selects the platform message shape for a reply.
type OutboundKind string

const (
	OutText    OutboundKind = "text"
	OutButtons OutboundKind = "buttons"
	OutList    OutboundKind = "list"
)

// OutboundMessage is a platform-ready reply produced by the composer.
type OutboundMessage struct {
	To      string
	Kind    OutboundKind
	Body    string
	Options []ReplyOption // buttons or list rows
	Header  string        // list only
}

// SendResult reports one dispatch attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Err       string
}
