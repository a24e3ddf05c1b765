package usecases

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"project_asisten/internal/entities"
	"project_asisten/internal/repository"
)

type fakeApptStore struct {
	appts      []*entities.Appointment
	nextID     int
	loseRaceAt string // "date time" on which Insert pretends another writer won
}

func (f *fakeApptStore) conflict(agentID int, date, slot string, skipID int) bool {
	for _, a := range f.appts {
		if a.ID != skipID && a.AgentID == agentID && a.Date == date && a.Time == slot && a.Status != entities.AppointmentCancelled {
			return true
		}
	}
	return false
}

func (f *fakeApptStore) Insert(_ context.Context, a *entities.Appointment) error {
	if f.loseRaceAt == a.Date+" "+a.Time {
		f.loseRaceAt = ""
		return repository.ErrSlotTaken
	}
	if f.conflict(a.AgentID, a.Date, a.Time, 0) {
		return repository.ErrSlotTaken
	}
	f.nextID++
	a.ID = f.nextID
	a.Status = entities.AppointmentConfirmed
	cp := *a
	f.appts = append(f.appts, &cp)
	return nil
}

func (f *fakeApptStore) BookedTimes(_ context.Context, agentID int, date string) ([]string, error) {
	var out []string
	for _, a := range f.appts {
		if a.AgentID == agentID && a.Date == date && a.Status != entities.AppointmentCancelled {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (f *fakeApptStore) GetByID(_ context.Context, agentID, id int) (*entities.Appointment, error) {
	for _, a := range f.appts {
		if a.AgentID == agentID && a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeApptStore) FindActiveByPhone(_ context.Context, agentID int, phone string) (*entities.Appointment, error) {
	for i := len(f.appts) - 1; i >= 0; i-- {
		a := f.appts[i]
		if a.AgentID == agentID && a.CustomerPhone == phone && a.Status == entities.AppointmentConfirmed {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeApptStore) UpdateStatus(_ context.Context, id int, status string) error {
	for _, a := range f.appts {
		if a.ID == id {
			a.Status = status
			return nil
		}
	}
	return fmt.Errorf("appointment %d not found", id)
}

func (f *fakeApptStore) Reschedule(_ context.Context, id int, date, timeSlot string) error {
	for _, a := range f.appts {
		if a.ID == id && a.Status == entities.AppointmentConfirmed {
			if f.conflict(a.AgentID, date, timeSlot, id) {
				return repository.ErrSlotTaken
			}
			a.Date, a.Time = date, timeSlot
			return nil
		}
	}
	return fmt.Errorf("appointment %d not confirmed", id)
}

type fakeLeads struct {
	upserts []entities.Lead
}

func (f *fakeLeads) Upsert(_ context.Context, l *entities.Lead) error {
	l.ID = len(f.upserts) + 1
	f.upserts = append(f.upserts, *l)
	return nil
}

type fakeHandoffs struct {
	tickets map[int]*entities.HandoffTicket
}

func (f *fakeHandoffs) Enqueue(_ context.Context, t *entities.HandoffTicket) error {
	if f.tickets == nil {
		f.tickets = make(map[int]*entities.HandoffTicket)
	}
	if existing, ok := f.tickets[t.ConversationID]; ok {
		*t = *existing
		return nil
	}
	t.ID = len(f.tickets) + 1
	t.Status = entities.TicketPending
	t.Position = len(f.tickets) + 1
	cp := *t
	f.tickets[t.ConversationID] = &cp
	return nil
}

type fakeSink struct {
	events []entities.TriggerEvent
}

func (f *fakeSink) Publish(evt entities.TriggerEvent) {
	f.events = append(f.events, evt)
}

type fakeNotifier struct {
	calls int
	last  string
}

func (f *fakeNotifier) NotifyHandoff(agentName, customerPhone, reason string, position int) {
	f.calls++
	f.last = customerPhone
}

func testAgent() *entities.Agent {
	return &entities.Agent{
		ID:          7,
		Name:        "Asti",
		OpenHour:    9,
		CloseHour:   11,
		SlotMinutes: 60,
		ClosedDay:   int(time.Sunday),
		TriggerURL:  "https://example.test/hook",
		Status:      entities.AgentActive,
	}
}

type engineFixture struct {
	engine   *ToolEngine
	appts    *fakeApptStore
	leads    *fakeLeads
	handoffs *fakeHandoffs
	sink     *fakeSink
	notifier *fakeNotifier
}

func newEngineFixture(entries []entities.KnowledgeEntry) *engineFixture {
	f := &engineFixture{
		appts:    &fakeApptStore{},
		leads:    &fakeLeads{},
		handoffs: &fakeHandoffs{},
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
	}
	retriever := NewKnowledgeRetriever(&fakeKnowledge{entries: entries})
	f.engine = NewToolEngine(f.appts, f.leads, f.handoffs, retriever, f.notifier, f.sink)
	// Pin the clock to a Monday so closed-day and past-date checks are stable.
	f.engine.now = func() time.Time {
		return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	}
	return f
}

func bookingInput(agent *entities.Agent) entities.ToolInput {
	return entities.ToolInput{
		Agent:          agent,
		ConversationID: 1,
		CustomerPhone:  "628111",
		Entities: entities.Entities{
			Name:  "Ana",
			Phone: "628111",
			Date:  "2025-03-12",
			Time:  "09:00",
		},
	}
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("asks for the date", func(t *testing.T) {
		f := newEngineFixture(nil)
		res := f.engine.Execute(ctx, entities.ToolCheckAvail, entities.ToolInput{Agent: agent})
		if res.Success || len(res.Missing) != 1 || res.Missing[0] != "date" {
			t.Errorf("result = %+v, want missing date", res)
		}
	})

	t.Run("lists open slots", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Date: "2025-03-12"}}
		res := f.engine.Execute(ctx, entities.ToolCheckAvail, in)
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		if len(res.Options) != 2 {
			t.Fatalf("options = %v, want 09:00 and 10:00", res.Options)
		}
		if res.Options[0].ID != "slot:2025-03-12:09:00" {
			t.Errorf("option id = %q", res.Options[0].ID)
		}
	})

	t.Run("excludes booked slots", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.appts.appts = append(f.appts.appts, &entities.Appointment{
			ID: 1, AgentID: agent.ID, Date: "2025-03-12", Time: "09:00", Status: entities.AppointmentConfirmed,
		})
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Date: "2025-03-12"}}
		res := f.engine.Execute(ctx, entities.ToolCheckAvail, in)
		if len(res.Options) != 1 || res.Options[0].Title != "10:00" {
			t.Errorf("options = %v, want only 10:00", res.Options)
		}
	})

	t.Run("full day offers later dates", func(t *testing.T) {
		f := newEngineFixture(nil)
		for _, slot := range []string{"09:00", "10:00"} {
			f.appts.appts = append(f.appts.appts, &entities.Appointment{
				AgentID: agent.ID, Date: "2025-03-12", Time: slot, Status: entities.AppointmentConfirmed,
			})
		}
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Date: "2025-03-12"}}
		res := f.engine.Execute(ctx, entities.ToolCheckAvail, in)
		if !res.Success || len(res.Options) == 0 {
			t.Fatalf("result = %+v, want alternatives", res)
		}
		for _, o := range res.Options {
			if strings.Contains(o.ID, "2025-03-12") {
				t.Errorf("alternative %q is on the full day", o.ID)
			}
		}
	})

	t.Run("closed weekday has no slots", func(t *testing.T) {
		f := newEngineFixture(nil)
		// 2025-03-16 is a Sunday, the configured closed day.
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Date: "2025-03-16"}}
		res := f.engine.Execute(ctx, entities.ToolCheckAvail, in)
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		for _, o := range res.Options {
			if strings.Contains(o.ID, "2025-03-16") {
				t.Errorf("offered %q on the closed day", o.ID)
			}
		}
	})
}

func TestBookAppointment(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("asks for missing fields in order", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Date: "2025-03-12"}}
		res := f.engine.Execute(ctx, entities.ToolBookAppointment, in)
		if res.Success {
			t.Fatalf("result = %+v", res)
		}
		want := []string{"name", "phone", "time"}
		if len(res.Missing) != len(want) {
			t.Fatalf("missing = %v, want %v", res.Missing, want)
		}
		for i := range want {
			if res.Missing[i] != want[i] {
				t.Errorf("missing[%d] = %q, want %q", i, res.Missing[i], want[i])
			}
		}
	})

	t.Run("books, records the lead and fires the event", func(t *testing.T) {
		f := newEngineFixture(nil)
		res := f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		if len(f.appts.appts) != 1 {
			t.Fatalf("stored %d appointments", len(f.appts.appts))
		}
		if len(f.leads.upserts) != 1 || f.leads.upserts[0].Phone != "628111" {
			t.Errorf("lead upserts = %+v", f.leads.upserts)
		}
		if len(f.sink.events) != 1 {
			t.Fatalf("events = %+v", f.sink.events)
		}
		evt := f.sink.events[0]
		if evt.Type != entities.EventAppointmentBooked || evt.TargetURL != agent.TriggerURL || evt.EventID == "" {
			t.Errorf("event = %+v", evt)
		}
	})

	t.Run("race loser gets alternatives, not an error", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.appts.loseRaceAt = "2025-03-12 09:00"

		res := f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		if res.Success {
			t.Fatalf("result = %+v, want unsuccessful", res)
		}
		if res.Err != "" {
			t.Errorf("lost race surfaced as error: %q", res.Err)
		}
		if !strings.Contains(res.Message, "just taken") {
			t.Errorf("message = %q", res.Message)
		}
		if len(res.Options) == 0 {
			t.Error("want alternative slots after losing the race")
		}
		if len(f.sink.events) != 0 {
			t.Errorf("no event may fire for a failed booking, got %+v", f.sink.events)
		}
	})

	t.Run("exactly one of two same-slot bookings wins", func(t *testing.T) {
		f := newEngineFixture(nil)
		first := f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		second := f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		if !first.Success || second.Success {
			t.Errorf("first=%v second=%v, want exactly one winner", first.Success, second.Success)
		}
		if len(f.appts.appts) != 1 {
			t.Errorf("stored %d appointments, want 1", len(f.appts.appts))
		}
	})

	t.Run("rejects past dates", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := bookingInput(agent)
		in.Entities.Date = "2025-03-01"
		res := f.engine.Execute(ctx, entities.ToolBookAppointment, in)
		if res.Success || len(res.Missing) == 0 || res.Missing[0] != "date" {
			t.Errorf("result = %+v, want date re-asked", res)
		}
	})
}

func TestCancelAppointment(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("nothing to cancel", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{Phone: "628111"}}
		res := f.engine.Execute(ctx, entities.ToolCancel, in)
		if res.Success {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("cancels the active booking by phone", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))

		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{Phone: "628111"}}
		res := f.engine.Execute(ctx, entities.ToolCancel, in)
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		if f.appts.appts[0].Status != entities.AppointmentCancelled {
			t.Errorf("status = %q", f.appts.appts[0].Status)
		}
	})

	t.Run("cancelled slot frees up again", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{Phone: "628111"}}
		f.engine.Execute(ctx, entities.ToolCancel, in)

		res := f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		if !res.Success {
			t.Errorf("rebooking a cancelled slot failed: %+v", res)
		}
	})
}

func TestRescheduleAppointment(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("moves the booking", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))

		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{
			Phone: "628111", Date: "2025-03-13", Time: "10:00",
		}}
		res := f.engine.Execute(ctx, entities.ToolReschedule, in)
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		got := f.appts.appts[0]
		if got.Date != "2025-03-13" || got.Time != "10:00" {
			t.Errorf("appointment now %s %s", got.Date, got.Time)
		}
	})

	t.Run("target slot occupied", func(t *testing.T) {
		f := newEngineFixture(nil)
		f.engine.Execute(ctx, entities.ToolBookAppointment, bookingInput(agent))
		other := bookingInput(agent)
		other.Entities.Phone = "628222"
		other.Entities.Time = "10:00"
		other.CustomerPhone = "628222"
		f.engine.Execute(ctx, entities.ToolBookAppointment, other)

		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{
			Phone: "628111", Date: "2025-03-12", Time: "10:00",
		}}
		res := f.engine.Execute(ctx, entities.ToolReschedule, in)
		if res.Success {
			t.Fatalf("result = %+v, want refusal", res)
		}
		if len(res.Options) == 0 {
			t.Error("want alternatives when the target slot is taken")
		}
	})

	t.Run("needs the new date and time", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, CustomerPhone: "628111", Entities: entities.Entities{Phone: "628111"}}
		res := f.engine.Execute(ctx, entities.ToolReschedule, in)
		if res.Success || len(res.Missing) != 2 {
			t.Errorf("result = %+v, want missing date and time", res)
		}
	})
}

func TestCaptureLead(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("falls back to the sender's phone", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, CustomerPhone: "628999", Entities: entities.Entities{Name: "Budi"}}
		res := f.engine.Execute(ctx, entities.ToolCaptureLead, in)
		if !res.Success {
			t.Fatalf("result = %+v", res)
		}
		if f.leads.upserts[0].Phone != "628999" {
			t.Errorf("lead phone = %q", f.leads.upserts[0].Phone)
		}
		if len(f.sink.events) != 1 || f.sink.events[0].Type != entities.EventLeadCaptured {
			t.Errorf("events = %+v", f.sink.events)
		}
	})

	t.Run("no phone at all", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, Entities: entities.Entities{Name: "Budi"}}
		res := f.engine.Execute(ctx, entities.ToolCaptureLead, in)
		if res.Success || len(res.Missing) != 1 {
			t.Errorf("result = %+v, want missing phone", res)
		}
	})
}

func TestHumanHandoff(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()
	f := newEngineFixture(nil)
	in := entities.ToolInput{Agent: agent, ConversationID: 5, CustomerPhone: "628111", Notes: "complicated request"}

	res := f.engine.Execute(ctx, entities.ToolHumanHandoff, in)
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Message, "position 1") {
		t.Errorf("message = %q", res.Message)
	}
	if f.notifier.calls != 1 || f.notifier.last != "628111" {
		t.Errorf("notifier calls=%d last=%q", f.notifier.calls, f.notifier.last)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != entities.EventHandoffRequested {
		t.Errorf("events = %+v", f.sink.events)
	}

	// Asking twice keeps the original ticket.
	again := f.engine.Execute(ctx, entities.ToolHumanHandoff, in)
	if !again.Success || !strings.Contains(again.Message, "position 1") {
		t.Errorf("repeat result = %+v", again)
	}
}

func TestSearchKnowledge(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()

	t.Run("returns matched context", func(t *testing.T) {
		f := newEngineFixture([]entities.KnowledgeEntry{
			{Title: "Hours", Content: "Open 9 to 5 on weekdays."},
		})
		in := entities.ToolInput{Agent: agent, Query: "opening hours"}
		res := f.engine.Execute(ctx, entities.ToolSearchKnowledge, in)
		if !res.Success || !strings.Contains(res.Message, "Open 9 to 5") {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("no match offers handoff", func(t *testing.T) {
		f := newEngineFixture(nil)
		in := entities.ToolInput{Agent: agent, Query: "quantum pricing"}
		res := f.engine.Execute(ctx, entities.ToolSearchKnowledge, in)
		if res.Success {
			t.Errorf("result = %+v", res)
		}
	})
}
