package usecases

import (
	"strings"

	"project_asisten/internal/entities"
)

// Platform limits for interactive messages.
const (
	maxBodyChars    = 4096
	maxButtonCount  = 3
	maxButtonTitle  = 20
	maxListRows     = 10
	maxRowTitle     = 24
	maxRowDescChars = 72
)

// Composer turns a reply body and optional choices into a concrete outbound
// message. Pure formatting, no IO.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose picks the richest shape the option count allows: plain text for
// none, reply buttons for up to three, a list for more.
func (c *Composer) Compose(to, body string, options []entities.ReplyOption) entities.OutboundMessage {
	body = clamp(strings.TrimSpace(body), maxBodyChars)

	switch {
	case len(options) == 0:
		return entities.OutboundMessage{To: to, Kind: entities.OutText, Body: body}
	case len(options) <= maxButtonCount:
		return entities.OutboundMessage{
			To:      to,
			Kind:    entities.OutButtons,
			Body:    body,
			Options: clampButtons(options),
		}
	default:
		return entities.OutboundMessage{
			To:      to,
			Kind:    entities.OutList,
			Body:    body,
			Header:  "Pick an option",
			Options: clampRows(options),
		}
	}
}

func clampButtons(options []entities.ReplyOption) []entities.ReplyOption {
	out := make([]entities.ReplyOption, 0, maxButtonCount)
	for _, o := range options {
		out = append(out, entities.ReplyOption{
			ID:    o.ID,
			Title: clamp(o.Title, maxButtonTitle),
		})
		if len(out) == maxButtonCount {
			break
		}
	}
	return out
}

func clampRows(options []entities.ReplyOption) []entities.ReplyOption {
	out := make([]entities.ReplyOption, 0, maxListRows)
	for _, o := range options {
		out = append(out, entities.ReplyOption{
			ID:          o.ID,
			Title:       clamp(o.Title, maxRowTitle),
			Description: clamp(o.Description, maxRowDescChars),
		})
		if len(out) == maxListRows {
			break
		}
	}
	return out
}

func clamp(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
