package http

import (
	"log"
	"strconv"
	"time"

	"project_asisten/internal/entities"
)

// Webhook payload shapes as the platform delivers them. One POST can carry
// several entries, each with several changes, each with several messages.

// webhookObject is the top-level discriminator the platform stamps on every
// delivery meant for us.
const webhookObject = "whatsapp_business_account"

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []webhookContact `json:"contacts"`
	Messages []webhookMessage `json:"messages"`
	Statuses []webhookStatus  `json:"statuses"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMedia struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // epoch seconds as string
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *webhookMedia `json:"image"`
	Document *webhookMedia `json:"document"`
	Audio    *webhookMedia `json:"audio"`
	Video    *webhookMedia `json:"video"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

type webhookStatus struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// normalizePayload flattens the nested webhook body into internal messages
// and status updates. Subtypes the runtime cannot represent are logged and
// dropped here, before anything downstream sees them.
func normalizePayload(p *webhookPayload) ([]entities.InboundMessage, []entities.StatusUpdate) {
	var msgs []entities.InboundMessage
	var statuses []entities.StatusUpdate

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			v := change.Value
			names := contactNames(v.Contacts)

			for _, wm := range v.Messages {
				m, ok := normalizeMessage(&wm, v.Metadata.PhoneNumberID, names)
				if !ok {
					log.Printf("[WEBHOOK] dropping unsupported %q message %s", wm.Type, wm.ID)
					continue
				}
				msgs = append(msgs, m)
			}
			for _, ws := range v.Statuses {
				statuses = append(statuses, entities.StatusUpdate{
					MessageID: ws.ID,
					Recipient: ws.RecipientID,
					Status:    ws.Status,
					Timestamp: epochTime(ws.Timestamp),
				})
			}
		}
	}
	return msgs, statuses
}

func normalizeMessage(wm *webhookMessage, phoneNumberID string, names map[string]string) (entities.InboundMessage, bool) {
	m := entities.InboundMessage{
		PlatformID:  wm.ID,
		From:        wm.From,
		ProfileName: names[wm.From],
		ChannelID:   phoneNumberID,
		Timestamp:   epochTime(wm.Timestamp),
	}

	switch wm.Type {
	case "text":
		if wm.Text == nil {
			return m, false
		}
		m.Kind = entities.KindText
		m.Text = wm.Text.Body
	case "image":
		m.Kind = entities.KindImage
		m.Text, m.MediaID = mediaParts(wm.Image)
	case "document":
		m.Kind = entities.KindDocument
		m.Text, m.MediaID = mediaParts(wm.Document)
	case "audio":
		m.Kind = entities.KindAudio
		m.Text, m.MediaID = mediaParts(wm.Audio)
	case "video":
		m.Kind = entities.KindVideo
		m.Text, m.MediaID = mediaParts(wm.Video)
	case "location":
		if wm.Location == nil {
			return m, false
		}
		m.Kind = entities.KindLocation
		m.Latitude = wm.Location.Latitude
		m.Longitude = wm.Location.Longitude
	case "interactive":
		if wm.Interactive == nil {
			return m, false
		}
		switch {
		case wm.Interactive.ButtonReply != nil:
			m.Kind = entities.KindButtonReply
			m.ReplyID = wm.Interactive.ButtonReply.ID
			m.ReplyTitle = wm.Interactive.ButtonReply.Title
		case wm.Interactive.ListReply != nil:
			m.Kind = entities.KindListReply
			m.ReplyID = wm.Interactive.ListReply.ID
			m.ReplyTitle = wm.Interactive.ListReply.Title
		default:
			return m, false
		}
	default:
		// reactions, stickers, system notices and whatever the platform
		// adds next
		return m, false
	}
	return m, true
}

func mediaParts(m *webhookMedia) (caption, id string) {
	if m == nil {
		return "", ""
	}
	return m.Caption, m.ID
}

func contactNames(contacts []webhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func epochTime(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
