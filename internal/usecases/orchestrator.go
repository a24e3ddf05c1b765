package usecases

import (
	"context"
	"log"
	"strings"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
	"project_asisten/internal/interfaces"
)

// Orchestrator runs one full agent cycle per inbound message: resolve the
// tenant, load conversation state, decide, act, compose, dispatch, persist.
// It is the only component that sees the whole pipeline.
type Orchestrator struct {
	resolver   *TenantResolver
	states     *StateManager
	decision   *DecisionService
	tools      *ToolEngine
	retriever  *KnowledgeRetriever
	composer   *Composer
	dispatcher interfaces.Dispatcher
	cipher     *infrastructure.CredentialCipher
}

func NewOrchestrator(resolver *TenantResolver, states *StateManager, decision *DecisionService,
	tools *ToolEngine, retriever *KnowledgeRetriever, composer *Composer,
	dispatcher interfaces.Dispatcher, cipher *infrastructure.CredentialCipher) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		states:     states,
		decision:   decision,
		tools:      tools,
		retriever:  retriever,
		composer:   composer,
		dispatcher: dispatcher,
		cipher:     cipher,
	}
}

// HandleInbound processes one normalized message end to end. The webhook has
// already been acknowledged; errors here are logged, never surfaced to the
// platform.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg entities.InboundMessage) {
	tenant, err := o.resolver.ResolveByChannelID(ctx, msg.ChannelID)
	if err != nil {
		log.Printf("[AGENT] tenant lookup failed for channel %s: %v", msg.ChannelID, err)
		return
	}
	if tenant == nil {
		// Unknown or inactive channel. Dropping silently is deliberate:
		// replying would leak that the number exists.
		log.Printf("[AGENT] dropping message for unknown channel %s", msg.ChannelID)
		return
	}

	conv, err := o.states.GetOrCreateConversation(ctx, tenant.Agent.ID, msg.From, msg.ProfileName)
	if err != nil {
		log.Printf("[AGENT] conversation load failed for %s: %v", msg.From, err)
		return
	}

	o.logInbound(ctx, conv, &msg)

	if conv.State == entities.StateHandoff {
		// An operator owns this conversation; the bot stays quiet.
		log.Printf("[AGENT] conversation %d is in handoff, skipping", conv.ID)
		return
	}

	body, options := o.runCycle(ctx, tenant, conv, &msg)
	if body == "" {
		return
	}
	o.deliver(ctx, tenant, conv, body, options)
}

// HandleStatus records delivery receipts. Logged only; the runtime does not
// reconcile receipts against the message log.
func (o *Orchestrator) HandleStatus(status entities.StatusUpdate) {
	log.Printf("[AGENT] status %s for message %s (to %s)", status.Status, status.MessageID, status.Recipient)
}

// runCycle picks and executes the branch for this message, returning the
// reply to send.
func (o *Orchestrator) runCycle(ctx context.Context, tenant *entities.ResolvedTenant, conv *entities.Conversation, msg *entities.InboundMessage) (string, []entities.ReplyOption) {
	agent := tenant.Agent

	if msg.IsInteractive() {
		if picked, ok := parseSlotReply(msg.ReplyID); ok {
			return o.continueWith(ctx, agent, conv, picked, msg.ReplyTitle)
		}
		// Unrecognized option id: fall through and treat the title as text.
		msg.Text = msg.ReplyTitle
	}

	if msg.Text == "" {
		// Media without a caption. The runtime is text only.
		return "I can only read text messages for now. Could you type that out?", nil
	}

	if conv.CurrentFlow != entities.FlowNone && conv.State == entities.StateCollectingInfo {
		return o.continueFlow(ctx, agent, conv, msg.Text)
	}

	return o.freshMessage(ctx, agent, conv, msg.Text)
}

// freshMessage classifies a message arriving outside any flow and routes on
// the intent.
func (o *Orchestrator) freshMessage(ctx context.Context, agent *entities.Agent, conv *entities.Conversation, text string) (string, []entities.ReplyOption) {
	knowledge, err := o.retriever.Retrieve(ctx, agent.ID, text)
	if err != nil {
		log.Printf("[AGENT] knowledge retrieval failed: %v", err)
		knowledge = ""
	}

	history, err := o.states.RecentHistory(ctx, conv.ID)
	if err != nil {
		log.Printf("[AGENT] history load failed: %v", err)
	}

	analysis := o.decision.AnalyzeMessage(ctx, agent, text, knowledge, history)
	conv.Collected.Merge(analysis.Entities)
	conv.Context.LastIntent = string(analysis.Intent)
	conv.Context.KnowledgeContext = knowledge

	switch analysis.Intent {
	case entities.IntentHumanHandoff:
		return o.startHandoff(ctx, agent, conv, text)

	case entities.IntentCheckAvailability:
		if !agent.HasCapability("booking") {
			reply := o.respond(ctx, agent, text, knowledge, nil)
			o.persist(ctx, conv)
			return reply, nil
		}
		result := o.tools.Execute(ctx, entities.ToolCheckAvail, o.toolInput(agent, conv, text))
		o.recordToolOutcome(ctx, conv, entities.ToolCheckAvail, result)
		// The extracted date carries into a later booking turn, so the
		// merge must hit storage even though no flow started.
		o.persist(ctx, conv)
		return result.Message, result.Options

	case entities.IntentBookAppointment, entities.IntentReschedule, entities.IntentCancelAppointment:
		if !agent.HasCapability("booking") {
			reply := o.respond(ctx, agent, text, knowledge, nil)
			o.persist(ctx, conv)
			return reply, nil
		}
		return o.startFlow(ctx, agent, conv, analysis.Intent.Flow())

	default:
		// greeting, goodbye, question, unknown: a conversational reply,
		// grounded on whatever knowledge matched.
		reply := o.respond(ctx, agent, text, knowledge, nil)
		o.persist(ctx, conv)
		return reply, nil
	}
}

// persist saves the conversation as already mutated in this cycle.
func (o *Orchestrator) persist(ctx context.Context, conv *entities.Conversation) {
	if err := o.states.UpdateState(ctx, conv, conv.State, entities.Entities{}, conv.Context); err != nil {
		log.Printf("[AGENT] state save failed: %v", err)
	}
}

// startFlow enters a collection flow, executing immediately when everything
// needed is already known.
func (o *Orchestrator) startFlow(ctx context.Context, agent *entities.Agent, conv *entities.Conversation, flow entities.FlowKind) (string, []entities.ReplyOption) {
	if err := o.states.StartFlow(ctx, conv, flow); err != nil {
		log.Printf("[AGENT] flow start failed: %v", err)
		return fallbackReply, nil
	}
	if len(conv.Context.MissingFields) > 0 {
		return fieldPrompt(conv.Context.MissingFields[0]), nil
	}
	return o.executeFlow(ctx, agent, conv)
}

// continueFlow merges newly extracted entities into an active flow and
// either executes or asks for the next missing field.
func (o *Orchestrator) continueFlow(ctx context.Context, agent *entities.Agent, conv *entities.Conversation, text string) (string, []entities.ReplyOption) {
	history, _ := o.states.RecentHistory(ctx, conv.ID)
	analysis := o.decision.AnalyzeMessage(ctx, agent, text, conv.Context.KnowledgeContext, history)

	// A blocked user can always bail out of a flow.
	if analysis.Intent == entities.IntentHumanHandoff {
		return o.startHandoff(ctx, agent, conv, text)
	}

	conv.Collected.Merge(analysis.Entities)
	ready, err := o.states.AdvanceFlow(ctx, conv)
	if err != nil {
		log.Printf("[AGENT] flow advance failed: %v", err)
		return fallbackReply, nil
	}
	if !ready {
		return fieldPrompt(conv.Context.MissingFields[0]), nil
	}
	return o.executeFlow(ctx, agent, conv)
}

// continueWith handles a picked interactive slot option: merge the date and
// time it encodes, then run or resume the booking path.
func (o *Orchestrator) continueWith(ctx context.Context, agent *entities.Agent, conv *entities.Conversation, picked entities.Entities, title string) (string, []entities.ReplyOption) {
	conv.Collected.Merge(picked)

	flow := conv.CurrentFlow
	if flow == entities.FlowNone {
		flow = entities.FlowBooking
	}
	if conv.CurrentFlow == entities.FlowNone {
		return o.startFlow(ctx, agent, conv, flow)
	}

	ready, err := o.states.AdvanceFlow(ctx, conv)
	if err != nil {
		log.Printf("[AGENT] flow advance failed: %v", err)
		return fallbackReply, nil
	}
	if !ready {
		return fieldPrompt(conv.Context.MissingFields[0]), nil
	}
	return o.executeFlow(ctx, agent, conv)
}

// executeFlow runs the tool a completed flow maps to and settles the
// conversation state from the result.
func (o *Orchestrator) executeFlow(ctx context.Context, agent *entities.Agent, conv *entities.Conversation) (string, []entities.ReplyOption) {
	tool := flowTool(conv.CurrentFlow)
	if tool == entities.ToolNone {
		if err := o.states.CompleteFlow(ctx, conv); err != nil {
			log.Printf("[AGENT] flow complete failed: %v", err)
		}
		return fallbackReply, nil
	}

	result := o.tools.Execute(ctx, tool, entities.ToolInput{
		Agent:          agent,
		ConversationID: conv.ID,
		CustomerPhone:  conv.CustomerPhone,
		Entities:       conv.Collected,
	})
	o.recordToolOutcome(ctx, conv, tool, result)

	switch {
	case result.Success:
		if err := o.states.CompleteFlow(ctx, conv); err != nil {
			log.Printf("[AGENT] flow complete failed: %v", err)
		}
	case len(result.Missing) > 0:
		conv.Context.MissingFields = result.Missing
		if err := o.states.UpdateState(ctx, conv, entities.StateCollectingInfo, entities.Entities{}, conv.Context); err != nil {
			log.Printf("[AGENT] state save failed: %v", err)
		}
	case len(result.Options) > 0:
		// Lost the slot. Drop the contested time, keep everything else, and
		// stay in the flow so the next pick lands back here.
		conv.Collected.Time = ""
		conv.Context.MissingFields = []string{"time"}
		if err := o.states.UpdateState(ctx, conv, entities.StateCollectingInfo, entities.Entities{}, conv.Context); err != nil {
			log.Printf("[AGENT] state save failed: %v", err)
		}
	default:
		if err := o.states.CompleteFlow(ctx, conv); err != nil {
			log.Printf("[AGENT] flow complete failed: %v", err)
		}
	}

	return result.Message, result.Options
}

// startHandoff enqueues the operator ticket and parks the conversation.
func (o *Orchestrator) startHandoff(ctx context.Context, agent *entities.Agent, conv *entities.Conversation, reason string) (string, []entities.ReplyOption) {
	result := o.tools.Execute(ctx, entities.ToolHumanHandoff, entities.ToolInput{
		Agent:          agent,
		ConversationID: conv.ID,
		CustomerPhone:  conv.CustomerPhone,
		Entities:       conv.Collected,
		Notes:          reason,
	})
	if result.Success {
		if err := o.states.EnterHandoff(ctx, conv); err != nil {
			log.Printf("[AGENT] handoff transition failed: %v", err)
		}
	}
	return result.Message, result.Options
}

// respond produces a conversational reply through the decision layer.
func (o *Orchestrator) respond(ctx context.Context, agent *entities.Agent, text, knowledge string, result *entities.ToolResult) string {
	return o.decision.GenerateResponse(ctx, agent, text, knowledge, result)
}

func (o *Orchestrator) toolInput(agent *entities.Agent, conv *entities.Conversation, query string) entities.ToolInput {
	return entities.ToolInput{
		Agent:          agent,
		ConversationID: conv.ID,
		CustomerPhone:  conv.CustomerPhone,
		Entities:       conv.Collected,
		Query:          query,
	}
}

func (o *Orchestrator) recordToolOutcome(ctx context.Context, conv *entities.Conversation, tool entities.Tool, result entities.ToolResult) {
	if result.Err != "" {
		log.Printf("[AGENT] tool %s failed: %s", tool, result.Err)
	}
	conv.Context.LastTool = string(tool)
}

// deliver composes, decrypts the channel credential, sends, and appends the
// outbound message to the log.
func (o *Orchestrator) deliver(ctx context.Context, tenant *entities.ResolvedTenant, conv *entities.Conversation, body string, options []entities.ReplyOption) {
	out := o.composer.Compose(conv.CustomerPhone, body, options)

	// Credentials live encrypted at rest and decrypt just before use.
	token := o.cipher.Decrypt(tenant.Binding.AccessToken)
	if token == "" {
		log.Printf("[AGENT] no usable credential for channel %s, reply dropped", tenant.Binding.PhoneNumberID)
		return
	}

	sent := o.dispatcher.Send(ctx, token, tenant.Binding.PhoneNumberID, out)
	if !sent.Success {
		log.Printf("[AGENT] dispatch failed for conversation %d: %s", conv.ID, sent.Err)
	}

	if err := o.states.SaveMessage(ctx, &entities.StoredMessage{
		ConversationID: conv.ID,
		Direction:      entities.DirectionOut,
		Kind:           string(out.Kind),
		Content:        body,
	}); err != nil {
		log.Printf("[AGENT] outbound log failed: %v", err)
	}
}

func (o *Orchestrator) logInbound(ctx context.Context, conv *entities.Conversation, msg *entities.InboundMessage) {
	content := msg.Text
	if msg.IsInteractive() {
		content = msg.ReplyTitle
	}
	if err := o.states.SaveMessage(ctx, &entities.StoredMessage{
		ConversationID: conv.ID,
		Direction:      entities.DirectionIn,
		Kind:           string(msg.Kind),
		Content:        content,
		MediaID:        msg.MediaID,
	}); err != nil {
		log.Printf("[AGENT] inbound log failed: %v", err)
	}
}

// parseSlotReply decodes an option id of the form slot:<date>:<time>.
func parseSlotReply(id string) (entities.Entities, bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != "slot" {
		return entities.Entities{}, false
	}
	return entities.Entities{Date: parts[1], Time: parts[2]}, true
}

func flowTool(flow entities.FlowKind) entities.Tool {
	switch flow {
	case entities.FlowBooking:
		return entities.ToolBookAppointment
	case entities.FlowReschedule:
		return entities.ToolReschedule
	case entities.FlowCancel:
		return entities.ToolCancel
	case entities.FlowLead:
		return entities.ToolCaptureLead
	default:
		return entities.ToolNone
	}
}
