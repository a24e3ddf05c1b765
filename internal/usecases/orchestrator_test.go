package usecases

import (
	"context"
	"testing"
	"time"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
	"project_asisten/internal/interfaces"
)

type scriptedReasoner struct {
	outs []string
	i    int
}

func (s *scriptedReasoner) Complete(_ context.Context, _ interfaces.CompletionRequest) (string, error) {
	if s.i >= len(s.outs) {
		return "Okay.", nil
	}
	out := s.outs[s.i]
	s.i++
	return out, nil
}

type fakeDispatcher struct {
	sent   []entities.OutboundMessage
	tokens []string
}

func (f *fakeDispatcher) Send(_ context.Context, token, _ string, msg entities.OutboundMessage) entities.SendResult {
	f.sent = append(f.sent, msg)
	f.tokens = append(f.tokens, token)
	return entities.SendResult{Success: true, MessageID: "wamid.out"}
}

func (f *fakeDispatcher) SendSequence(ctx context.Context, token, phoneNumberID string, msgs []entities.OutboundMessage) []entities.SendResult {
	out := make([]entities.SendResult, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, f.Send(ctx, token, phoneNumberID, m))
	}
	return out
}

type cycleFixture struct {
	orch       *Orchestrator
	src        *fakeBindingSource
	convs      *fakeConvStore
	appts      *fakeApptStore
	dispatcher *fakeDispatcher
	reasoner   *scriptedReasoner
	cipher     *infrastructure.CredentialCipher
}

func newCycleFixture(t *testing.T, outs ...string) *cycleFixture {
	t.Helper()

	cipher := infrastructure.NewCredentialCipher("cycle-test-secret")
	sealed, err := cipher.Encrypt("channel-token")
	if err != nil {
		t.Fatal(err)
	}

	src := activeTenantSource()
	src.agent = testAgent()
	src.binding.AgentID = src.agent.ID
	src.binding.AccessToken = sealed

	convs := &fakeConvStore{}
	appts := &fakeApptStore{}
	dispatcher := &fakeDispatcher{}
	reasoner := &scriptedReasoner{outs: outs}
	retriever := NewKnowledgeRetriever(&fakeKnowledge{})

	decision := NewDecisionService(reasoner)
	decision.now = func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	}

	tools := NewToolEngine(appts, &fakeLeads{}, &fakeHandoffs{}, retriever, &fakeNotifier{}, &fakeSink{})
	tools.now = decision.now

	orch := NewOrchestrator(
		NewTenantResolver(src),
		NewStateManager(convs),
		decision,
		tools,
		retriever,
		NewComposer(),
		dispatcher,
		cipher,
	)
	return &cycleFixture{
		orch: orch, src: src, convs: convs, appts: appts,
		dispatcher: dispatcher, reasoner: reasoner, cipher: cipher,
	}
}

func inboundText(text string) entities.InboundMessage {
	return entities.InboundMessage{
		PlatformID:  "wamid.in",
		From:        "628111",
		ProfileName: "Ana",
		ChannelID:   "1122",
		Kind:        entities.KindText,
		Text:        text,
		Timestamp:   time.Now(),
	}
}

func TestHandleInbound(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown channel is dropped without a reply", func(t *testing.T) {
		f := newCycleFixture(t)
		msg := inboundText("hello")
		msg.ChannelID = "9999"

		f.orch.HandleInbound(ctx, msg)

		if len(f.dispatcher.sent) != 0 {
			t.Errorf("dispatched %d messages, want none", len(f.dispatcher.sent))
		}
		if f.convs.conv != nil {
			t.Error("conversation created for unknown channel")
		}
	})

	t.Run("greeting gets a conversational reply", func(t *testing.T) {
		f := newCycleFixture(t,
			`{"intent": "greeting", "confidence": 0.95}`,
			"Hi Ana! How can I help today?",
		)

		f.orch.HandleInbound(ctx, inboundText("hello"))

		if len(f.dispatcher.sent) != 1 {
			t.Fatalf("dispatched %d messages", len(f.dispatcher.sent))
		}
		out := f.dispatcher.sent[0]
		if out.Kind != entities.OutText || out.Body != "Hi Ana! How can I help today?" {
			t.Errorf("out = %+v", out)
		}
		// The sealed credential was opened just for the send.
		if f.dispatcher.tokens[0] != "channel-token" {
			t.Errorf("token = %q", f.dispatcher.tokens[0])
		}
		// Both directions land in the log.
		if len(f.convs.appended) != 2 {
			t.Fatalf("logged %d messages", len(f.convs.appended))
		}
		if f.convs.appended[0].Direction != entities.DirectionIn || f.convs.appended[1].Direction != entities.DirectionOut {
			t.Errorf("log directions = %+v", f.convs.appended)
		}
	})

	t.Run("complete booking request executes in one turn", func(t *testing.T) {
		f := newCycleFixture(t, `{
			"intent": "book_appointment", "confidence": 0.9,
			"entities": {"name": "Ana", "phone": "628111", "date": "2025-03-12", "time": "9am"}
		}`)

		f.orch.HandleInbound(ctx, inboundText("book me wednesday 9am, Ana, 628111"))

		if len(f.appts.appts) != 1 {
			t.Fatalf("stored %d appointments", len(f.appts.appts))
		}
		got := f.appts.appts[0]
		if got.Date != "2025-03-12" || got.Time != "09:00" {
			t.Errorf("appointment %s %s", got.Date, got.Time)
		}
		if f.convs.conv.State != entities.StateIdle || f.convs.conv.CurrentFlow != entities.FlowNone {
			t.Errorf("conversation left in %q/%q", f.convs.conv.State, f.convs.conv.CurrentFlow)
		}
	})

	t.Run("partial booking request starts collecting", func(t *testing.T) {
		f := newCycleFixture(t, `{
			"intent": "book_appointment", "confidence": 0.9,
			"entities": {"date": "2025-03-12"}
		}`)

		f.orch.HandleInbound(ctx, inboundText("can I book something on wednesday?"))

		if f.convs.conv.State != entities.StateCollectingInfo {
			t.Fatalf("state = %q", f.convs.conv.State)
		}
		if len(f.dispatcher.sent) != 1 {
			t.Fatalf("dispatched %d messages", len(f.dispatcher.sent))
		}
		// The reply asks for the first missing field, not a model phrase.
		if f.dispatcher.sent[0].Body != fieldPrompt("name") {
			t.Errorf("reply = %q", f.dispatcher.sent[0].Body)
		}
	})

	t.Run("availability check keeps its date for the next turn", func(t *testing.T) {
		f := newCycleFixture(t,
			`{"intent": "check_availability", "confidence": 0.9, "entities": {"date": "2025-03-12"}}`,
			`{"intent": "book_appointment", "confidence": 0.9,
			  "entities": {"name": "Ana", "phone": "628111", "time": "9am"}}`,
		)

		f.orch.HandleInbound(ctx, inboundText("what's free on wednesday?"))

		// The date must land in storage, not just on the in-cycle copy.
		if f.convs.conv.Collected.Date != "2025-03-12" {
			t.Fatalf("persisted date = %q", f.convs.conv.Collected.Date)
		}

		f.orch.HandleInbound(ctx, inboundText("book me 9am then, Ana, 628111"))

		if len(f.appts.appts) != 1 {
			t.Fatalf("stored %d appointments", len(f.appts.appts))
		}
		got := f.appts.appts[0]
		if got.Date != "2025-03-12" || got.Time != "09:00" {
			t.Errorf("appointment %s %s, want the date from the first turn", got.Date, got.Time)
		}
	})

	t.Run("slot option reply books directly", func(t *testing.T) {
		f := newCycleFixture(t)
		f.convs.conv = &entities.Conversation{
			ID: 1, AgentID: f.src.agent.ID, CustomerPhone: "628111",
			State:       entities.StateCollectingInfo,
			CurrentFlow: entities.FlowBooking,
			Collected:   entities.Entities{Name: "Ana", Phone: "628111"},
		}

		msg := inboundText("")
		msg.Kind = entities.KindListReply
		msg.ReplyID = "slot:2025-03-12:10:00"
		msg.ReplyTitle = "10:00"

		f.orch.HandleInbound(ctx, msg)

		if len(f.appts.appts) != 1 {
			t.Fatalf("stored %d appointments", len(f.appts.appts))
		}
		if f.appts.appts[0].Time != "10:00" {
			t.Errorf("time = %q", f.appts.appts[0].Time)
		}
	})

	t.Run("handoff conversation stays silent", func(t *testing.T) {
		f := newCycleFixture(t)
		f.convs.conv = &entities.Conversation{
			ID: 1, AgentID: f.src.agent.ID, CustomerPhone: "628111",
			State: entities.StateHandoff,
		}

		f.orch.HandleInbound(ctx, inboundText("are you there?"))

		if len(f.dispatcher.sent) != 0 {
			t.Errorf("dispatched %d messages during handoff", len(f.dispatcher.sent))
		}
		// The inbound message is still logged for the operator.
		if len(f.convs.appended) != 1 {
			t.Errorf("logged %d messages", len(f.convs.appended))
		}
	})

	t.Run("captionless media gets the text-only notice", func(t *testing.T) {
		f := newCycleFixture(t)
		msg := inboundText("")
		msg.Kind = entities.KindAudio
		msg.MediaID = "media-1"

		f.orch.HandleInbound(ctx, msg)

		if len(f.dispatcher.sent) != 1 {
			t.Fatalf("dispatched %d messages", len(f.dispatcher.sent))
		}
		if f.dispatcher.sent[0].Kind != entities.OutText {
			t.Errorf("out = %+v", f.dispatcher.sent[0])
		}
	})
}
