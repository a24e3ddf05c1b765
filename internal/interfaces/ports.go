package interfaces

import (
	"context"

	"project_asisten/internal/entities"
)

// CompletionRequest is one reasoning call. JSONMode asks the model for a
// machine-parseable object; the caller still validates everything.
type CompletionRequest struct {
	System   string
	User     string
	JSONMode bool
}

// Reasoner is the only non-deterministic collaborator in the runtime, and
// only the decision layer may hold one.
type Reasoner interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Dispatcher delivers one formatted message over the platform API.
// It never retries; retry policy belongs to the caller.
type Dispatcher interface {
	Send(ctx context.Context, token, phoneNumberID string, msg entities.OutboundMessage) entities.SendResult
	SendSequence(ctx context.Context, token, phoneNumberID string, msgs []entities.OutboundMessage) []entities.SendResult
}

// OperatorNotifier signals a human that a conversation wants out of
// automation. Best effort.
type OperatorNotifier interface {
	NotifyHandoff(agentName, customerPhone, reason string, position int)
}

// TriggerSink accepts fire-and-forget side-effect events. Publish must not
// block the message cycle.
type TriggerSink interface {
	Publish(evt entities.TriggerEvent)
}
