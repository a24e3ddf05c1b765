package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"project_asisten/internal/entities"
)

// CloudAPIClient sends messages through the platform's Cloud API. One call =
// one HTTP POST; credentials arrive per call because every tenant has its own.
type CloudAPIClient struct {
	baseURL    string
	httpClient *http.Client
	sendDelay  time.Duration
}

func NewCloudAPIClient(baseURL string) *CloudAPIClient {
	return &CloudAPIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		sendDelay:  600 * time.Millisecond,
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers one formatted message. Failures come back as a structured
// result; the dispatcher never retries on its own.
func (c *CloudAPIClient) Send(ctx context.Context, token, phoneNumberID string, msg entities.OutboundMessage) entities.SendResult {
	body, err := buildPayload(msg)
	if err != nil {
		return entities.SendResult{Err: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return entities.SendResult{Err: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entities.SendResult{Err: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var parsed sendResponse
	json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("platform returned %d", resp.StatusCode)
		if parsed.Error != nil {
			errMsg = fmt.Sprintf("%s (code %d)", parsed.Error.Message, parsed.Error.Code)
		}
		return entities.SendResult{Err: errMsg}
	}

	result := entities.SendResult{Success: true}
	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}
	return result
}

// SendSequence sends messages in order with a small delay between them to
// respect platform rate limits. Stops early if the context ends.
func (c *CloudAPIClient) SendSequence(ctx context.Context, token, phoneNumberID string, msgs []entities.OutboundMessage) []entities.SendResult {
	results := make([]entities.SendResult, 0, len(msgs))
	for i, msg := range msgs {
		if i > 0 {
			select {
			case <-ctx.Done():
				results = append(results, entities.SendResult{Err: ctx.Err().Error()})
				return results
			case <-time.After(c.sendDelay):
			}
		}
		results = append(results, c.Send(ctx, token, phoneNumberID, msg))
	}
	return results
}

// buildPayload maps an outbound message onto the platform body shape.
func buildPayload(msg entities.OutboundMessage) (map[string]any, error) {
	base := map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.To,
	}

	switch msg.Kind {
	case entities.OutText:
		base["type"] = "text"
		base["text"] = map[string]string{"body": msg.Body}

	case entities.OutButtons:
		buttons := make([]map[string]any, 0, len(msg.Options))
		for _, opt := range msg.Options {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]string{"id": opt.ID, "title": opt.Title},
			})
		}
		base["type"] = "interactive"
		base["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": msg.Body},
			"action": map[string]any{"buttons": buttons},
		}

	case entities.OutList:
		rows := make([]map[string]string, 0, len(msg.Options))
		for _, opt := range msg.Options {
			row := map[string]string{"id": opt.ID, "title": opt.Title}
			if opt.Description != "" {
				row["description"] = opt.Description
			}
			rows = append(rows, row)
		}
		header := msg.Header
		if header == "" {
			header = "Options"
		}
		base["type"] = "interactive"
		base["interactive"] = map[string]any{
			"type":   "list",
			"body":   map[string]string{"text": msg.Body},
			"action": map[string]any{
				"button":   "Choose",
				"sections": []map[string]any{{"title": header, "rows": rows}},
			},
		}

	default:
		return nil, fmt.Errorf("unsupported outbound kind %q", msg.Kind)
	}

	return base, nil
}
