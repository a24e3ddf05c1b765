package usecases

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"project_asisten/internal/entities"
	"project_asisten/internal/interfaces"
)

// DecisionService is the only component that talks to the reasoning model,
// and it has exactly two jobs: classify a message, and phrase a reply. It
// never decides business outcomes, and it never lets a model failure escape:
// every error path degrades to a safe default.
type DecisionService struct {
	reasoner interfaces.Reasoner
	now      func() time.Time
}

func NewDecisionService(reasoner interfaces.Reasoner) *DecisionService {
	return &DecisionService{reasoner: reasoner, now: time.Now}
}

const fallbackReply = "Sorry, I didn't quite get that. Could you rephrase? You can also ask to talk to a human."

// rawAnalysis mirrors the JSON shape requested from the model. Everything in
// it is untrusted until parsed onto the closed sets.
type rawAnalysis struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Tool       string  `json:"suggested_tool"`
	Entities   struct {
		Date    string            `json:"date"`
		Time    string            `json:"time"`
		Name    string            `json:"name"`
		Phone   string            `json:"phone"`
		Email   string            `json:"email"`
		Service string            `json:"service"`
		Extra   map[string]string `json:"extra"`
	} `json:"entities"`
}

// AnalyzeMessage classifies free text into an intent plus a typed entity bag.
// On any failure the caller gets {unknown, zero confidence}, never an error.
func (d *DecisionService) AnalyzeMessage(ctx context.Context, agent *entities.Agent, text, knowledgeContext string, history []entities.StoredMessage) entities.Analysis {
	fallback := entities.Analysis{Intent: entities.IntentUnknown}

	out, err := d.reasoner.Complete(ctx, interfaces.CompletionRequest{
		System:   analyzeSystemPrompt(agent),
		User:     analyzeUserPrompt(text, knowledgeContext, history, d.now()),
		JSONMode: true,
	})
	if err != nil {
		log.Printf("[DECISION] analyze failed, using fallback: %v", err)
		return fallback
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(extractJSON(out)), &raw); err != nil {
		log.Printf("[DECISION] malformed analysis %q, using fallback", truncate(out, 120))
		return fallback
	}

	analysis := entities.Analysis{
		Intent:        entities.ParseIntent(raw.Intent),
		Confidence:    clamp01(raw.Confidence),
		SuggestedTool: entities.ParseTool(raw.Tool),
	}
	analysis.Entities = entities.Entities{
		Date:    NormalizeDate(raw.Entities.Date, d.now()),
		Time:    NormalizeTime(raw.Entities.Time),
		Name:    strings.TrimSpace(raw.Entities.Name),
		Phone:   normalizePhone(raw.Entities.Phone),
		Email:   strings.TrimSpace(raw.Entities.Email),
		Service: strings.TrimSpace(raw.Entities.Service),
		Extra:   raw.Entities.Extra,
	}
	return analysis
}

// GenerateResponse phrases a result in the agent's voice. Text only; on
// failure the generic clarification comes back so the cycle still replies.
func (d *DecisionService) GenerateResponse(ctx context.Context, agent *entities.Agent, userText, knowledgeContext string, toolResult *entities.ToolResult) string {
	var sb strings.Builder
	sb.WriteString("The customer said: ")
	sb.WriteString(userText)
	sb.WriteString("\n")
	if knowledgeContext != "" {
		sb.WriteString("\nRelevant business information:\n")
		sb.WriteString(knowledgeContext)
	}
	if toolResult != nil {
		data, _ := json.Marshal(toolResult)
		sb.WriteString("\nResult of the action just performed:\n")
		sb.Write(data)
	}
	sb.WriteString("\nWrite the reply to the customer. Reply text only, no preamble, at most 3 short sentences.")

	out, err := d.reasoner.Complete(ctx, interfaces.CompletionRequest{
		System: personaPrompt(agent),
		User:   sb.String(),
	})
	if err != nil || strings.TrimSpace(out) == "" {
		log.Printf("[DECISION] generate failed, using fallback: %v", err)
		return fallbackReply
	}
	return strings.TrimSpace(out)
}

func personaPrompt(agent *entities.Agent) string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(agent.Name)
	sb.WriteString(", the assistant for ")
	sb.WriteString(agent.BusinessName)
	sb.WriteString(". Tone: ")
	sb.WriteString(agent.Tone)
	sb.WriteString(". Language: ")
	sb.WriteString(agent.Language)
	sb.WriteString(".\n")
	if agent.SystemPrompt != "" {
		sb.WriteString(agent.SystemPrompt)
		sb.WriteString("\n")
	}
	if agent.BusinessInfo != "" {
		sb.WriteString("About the business: ")
		sb.WriteString(agent.BusinessInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

func analyzeSystemPrompt(agent *entities.Agent) string {
	return personaPrompt(agent) + `
Classify the customer's message. Respond with a single JSON object:
{"intent": one of [greeting, book_appointment, cancel_appointment, reschedule_appointment, check_availability, question, human_handoff, goodbye, unknown],
 "confidence": 0..1,
 "suggested_tool": one of [check_availability, book_appointment, cancel_appointment, reschedule_appointment, capture_lead, human_handoff, search_knowledge] or "",
 "entities": {"date": "", "time": "", "name": "", "phone": "", "email": "", "service": "", "extra": {}}}
Leave fields empty when the message does not mention them. Dates may be relative ("tomorrow"); copy them as said.`
}

func analyzeUserPrompt(text, knowledgeContext string, history []entities.StoredMessage, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("Today is ")
	sb.WriteString(now.Format("Monday, 2006-01-02"))
	sb.WriteString(".\n")
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, m := range history {
			if m.Direction == entities.DirectionIn {
				sb.WriteString("customer: ")
			} else {
				sb.WriteString("assistant: ")
			}
			sb.WriteString(truncate(m.Content, 200))
			sb.WriteString("\n")
		}
	}
	if knowledgeContext != "" {
		sb.WriteString("Business knowledge that may be relevant:\n")
		sb.WriteString(knowledgeContext)
		sb.WriteString("\n")
	}
	sb.WriteString("Customer message: ")
	sb.WriteString(text)
	return sb.String()
}

// extractJSON trims whatever the model wrapped around the object, e.g.
// markdown fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// normalizePhone strips everything but digits and a leading plus.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var sb strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else if r == '+' && i == 0 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cutAtRune(s, n) + "…"
}
