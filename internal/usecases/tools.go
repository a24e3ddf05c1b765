package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"project_asisten/internal/entities"
	"project_asisten/internal/interfaces"
	"project_asisten/internal/repository"
)

// Forward search bounds when a requested date has no capacity.
const (
	maxForwardDays = 7
	maxAltDates    = 3
	maxAltSlots    = 9
)

type appointmentStore interface {
	Insert(ctx context.Context, a *entities.Appointment) error
	BookedTimes(ctx context.Context, agentID int, date string) ([]string, error)
	GetByID(ctx context.Context, agentID, id int) (*entities.Appointment, error)
	FindActiveByPhone(ctx context.Context, agentID int, phone string) (*entities.Appointment, error)
	UpdateStatus(ctx context.Context, id int, status string) error
	Reschedule(ctx context.Context, id int, date, timeSlot string) error
}

type leadStore interface {
	Upsert(ctx context.Context, l *entities.Lead) error
}

type handoffStore interface {
	Enqueue(ctx context.Context, t *entities.HandoffTicket) error
}

// ToolEngine runs the deterministic business operations. Handlers never
// throw for expected conditions: missing input and lost slot races are
// ordinary unsuccessful results with a user-facing message.
type ToolEngine struct {
	appointments appointmentStore
	leads        leadStore
	handoffs     handoffStore
	retriever    *KnowledgeRetriever
	notifier     interfaces.OperatorNotifier
	triggers     interfaces.TriggerSink
	now          func() time.Time
}

func NewToolEngine(appointments appointmentStore, leads leadStore, handoffs handoffStore,
	retriever *KnowledgeRetriever, notifier interfaces.OperatorNotifier, triggers interfaces.TriggerSink) *ToolEngine {
	return &ToolEngine{
		appointments: appointments,
		leads:        leads,
		handoffs:     handoffs,
		retriever:    retriever,
		notifier:     notifier,
		triggers:     triggers,
		now:          time.Now,
	}
}

// Execute dispatches on the closed tool set.
func (e *ToolEngine) Execute(ctx context.Context, tool entities.Tool, in entities.ToolInput) entities.ToolResult {
	switch tool {
	case entities.ToolCheckAvail:
		return e.checkAvailability(ctx, in)
	case entities.ToolBookAppointment:
		return e.bookAppointment(ctx, in)
	case entities.ToolCancel:
		return e.cancelAppointment(ctx, in)
	case entities.ToolReschedule:
		return e.rescheduleAppointment(ctx, in)
	case entities.ToolCaptureLead:
		return e.captureLead(ctx, in)
	case entities.ToolHumanHandoff:
		return e.humanHandoff(ctx, in)
	case entities.ToolSearchKnowledge:
		return e.searchKnowledge(ctx, in)
	default:
		return entities.ToolResult{Message: "I can't do that yet.", Err: fmt.Sprintf("unknown tool %q", tool)}
	}
}

func missingResult(fields []string) entities.ToolResult {
	return entities.ToolResult{
		Message: fieldPrompt(fields[0]),
		Missing: fields,
	}
}

// slotsForDate expands the agent's availability window into fixed-duration
// slots. The configured closed weekday yields no slots.
func slotsForDate(agent *entities.Agent, date string) []string {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil
	}
	if agent.ClosedDay >= 0 && day.Weekday() == time.Weekday(agent.ClosedDay) {
		return nil
	}

	open, clos, step := agent.OpenHour, agent.CloseHour, agent.SlotMinutes
	if open <= 0 && clos <= 0 {
		open, clos = 9, 17 // default business-hours template
	}
	if step <= 0 {
		step = 60
	}

	slots := []string{}
	for cur := fmt.Sprintf("%02d:00", open); cur != "" && cur < fmt.Sprintf("%02d:00", clos); cur = addSlot(cur, step) {
		slots = append(slots, cur)
	}
	return slots
}

// availableSlots subtracts already-booked times for the date.
func (e *ToolEngine) availableSlots(ctx context.Context, agent *entities.Agent, date string) ([]string, error) {
	slots := slotsForDate(agent, date)
	if len(slots) == 0 {
		return nil, nil
	}
	booked, err := e.appointments.BookedTimes(ctx, agent.ID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}
	free := []string{}
	for _, s := range slots {
		if _, is := taken[s]; !is {
			free = append(free, s)
		}
	}
	return free, nil
}

// alternatives searches forward day by day for dates with capacity.
func (e *ToolEngine) alternatives(ctx context.Context, agent *entities.Agent, fromDate string) []entities.ReplyOption {
	start, err := time.Parse(dateLayout, fromDate)
	if err != nil {
		start = e.now()
	}

	options := []entities.ReplyOption{}
	dates := 0
	for i := 0; i <= maxForwardDays && dates < maxAltDates; i++ {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		free, err := e.availableSlots(ctx, agent, date)
		if err != nil || len(free) == 0 {
			continue
		}
		dates++
		for _, slot := range free {
			options = append(options, entities.ReplyOption{
				ID:          fmt.Sprintf("slot:%s:%s", date, slot),
				Title:       slot,
				Description: friendlyDate(date),
			})
			if len(options) >= maxAltSlots {
				return options
			}
		}
	}
	return options
}

func (e *ToolEngine) checkAvailability(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	date := in.Entities.Date
	if date == "" {
		return missingResult([]string{"date"})
	}

	free, err := e.availableSlots(ctx, in.Agent, date)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't check the schedule just now. Please try again.", Err: err.Error()}
	}

	if len(free) == 0 {
		alts := e.alternatives(ctx, in.Agent, nextDay(date))
		if len(alts) == 0 {
			return entities.ToolResult{
				Success: true,
				Message: fmt.Sprintf("We're fully booked on %s and the days after. Please try a later week.", friendlyDate(date)),
			}
		}
		return entities.ToolResult{
			Success: true,
			Message: fmt.Sprintf("We're fully booked on %s. Here are the nearest openings:", friendlyDate(date)),
			Options: alts,
		}
	}

	options := make([]entities.ReplyOption, 0, len(free))
	for _, slot := range free {
		options = append(options, entities.ReplyOption{
			ID:          fmt.Sprintf("slot:%s:%s", date, slot),
			Title:       slot,
			Description: friendlyDate(date),
		})
	}
	return entities.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Here's what's open on %s:", friendlyDate(date)),
		Options: options,
		Data:    map[string]any{"date": date, "slots": free},
	}
}

func (e *ToolEngine) bookAppointment(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	missing := []string{}
	for _, f := range entities.FlowBooking.RequiredFields() {
		if in.Entities.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return missingResult(missing)
	}

	date, slot := in.Entities.Date, in.Entities.Time
	if date < e.now().Format(dateLayout) {
		return entities.ToolResult{Message: "That date has already passed. Which upcoming day works for you?", Missing: []string{"date"}}
	}

	// Optimistic check before the insert. The storage unique index is the
	// real guarantee; this only avoids a pointless write in the common case.
	free, err := e.availableSlots(ctx, in.Agent, date)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't check the schedule just now. Please try again.", Err: err.Error()}
	}
	if !contains(free, slot) {
		return e.slotTakenResult(ctx, in.Agent, date, slot)
	}

	appt := &entities.Appointment{
		AgentID:        in.Agent.ID,
		ConversationID: in.ConversationID,
		CustomerName:   in.Entities.Name,
		CustomerPhone:  in.Entities.Phone,
		Service:        in.Entities.Service,
		Date:           date,
		Time:           slot,
	}
	err = e.appointments.Insert(ctx, appt)
	if errors.Is(err, repository.ErrSlotTaken) {
		// A second writer won the race between check and insert. Expected,
		// recoverable: offer fresh alternatives.
		return e.slotTakenResult(ctx, in.Agent, date, slot)
	}
	if err != nil {
		return entities.ToolResult{Message: "Something went wrong saving the booking. Please try again.", Err: err.Error()}
	}

	e.upsertLeadQuietly(ctx, in, "Booked "+in.Entities.Service+" for "+date+" "+slot)
	e.publish(in.Agent, entities.EventAppointmentBooked, map[string]any{
		"appointment_id": appt.ID,
		"customer_name":  appt.CustomerName,
		"customer_phone": appt.CustomerPhone,
		"service":        appt.Service,
		"date":           appt.Date,
		"time":           appt.Time,
	})

	return entities.ToolResult{
		Success: true,
		Message: fmt.Sprintf("You're booked, %s. See you on %s at %s.", appt.CustomerName, friendlyDate(date), slot),
		Data: map[string]any{
			"appointment_id": appt.ID,
			"date":           appt.Date,
			"time":           appt.Time,
		},
	}
}

func (e *ToolEngine) slotTakenResult(ctx context.Context, agent *entities.Agent, date, slot string) entities.ToolResult {
	alts := e.alternatives(ctx, agent, date)
	msg := fmt.Sprintf("Sorry, %s at %s was just taken.", friendlyDate(date), slot)
	if len(alts) > 0 {
		msg += " Here are the nearest openings:"
	}
	return entities.ToolResult{Message: msg, Options: alts}
}

// locate finds the appointment the customer is talking about: explicit id
// first, then their active booking by phone.
func (e *ToolEngine) locate(ctx context.Context, in entities.ToolInput) (*entities.Appointment, error) {
	if in.Entities.AppointmentID != 0 {
		return e.appointments.GetByID(ctx, in.Agent.ID, in.Entities.AppointmentID)
	}
	phone := in.Entities.Phone
	if phone == "" {
		phone = in.CustomerPhone
	}
	if phone == "" {
		return nil, nil
	}
	return e.appointments.FindActiveByPhone(ctx, in.Agent.ID, phone)
}

func (e *ToolEngine) cancelAppointment(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	appt, err := e.locate(ctx, in)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't look that up just now. Please try again.", Err: err.Error()}
	}
	if appt == nil || appt.Status != entities.AppointmentConfirmed {
		return entities.ToolResult{Message: "I couldn't find an active appointment under your number."}
	}

	if err := e.appointments.UpdateStatus(ctx, appt.ID, entities.AppointmentCancelled); err != nil {
		return entities.ToolResult{Message: "Something went wrong cancelling. Please try again.", Err: err.Error()}
	}
	return entities.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Your appointment on %s at %s is cancelled.", friendlyDate(appt.Date), appt.Time),
		Data:    map[string]any{"appointment_id": appt.ID},
	}
}

func (e *ToolEngine) rescheduleAppointment(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	missing := []string{}
	for _, f := range []string{"date", "time"} {
		if in.Entities.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return missingResult(missing)
	}

	appt, err := e.locate(ctx, in)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't look that up just now. Please try again.", Err: err.Error()}
	}
	if appt == nil || appt.Status != entities.AppointmentConfirmed {
		return entities.ToolResult{Message: "I couldn't find an active appointment under your number."}
	}

	date, slot := in.Entities.Date, in.Entities.Time
	free, err := e.availableSlots(ctx, in.Agent, date)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't check the schedule just now. Please try again.", Err: err.Error()}
	}
	// Moving within the same date back onto its own slot is allowed.
	ownSlot := appt.Date == date && appt.Time == slot
	if !contains(free, slot) && !ownSlot {
		return e.slotTakenResult(ctx, in.Agent, date, slot)
	}

	err = e.appointments.Reschedule(ctx, appt.ID, date, slot)
	if errors.Is(err, repository.ErrSlotTaken) {
		return e.slotTakenResult(ctx, in.Agent, date, slot)
	}
	if err != nil {
		return entities.ToolResult{Message: "Something went wrong rescheduling. Please try again.", Err: err.Error()}
	}
	return entities.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Done. You're now booked for %s at %s.", friendlyDate(date), slot),
		Data:    map[string]any{"appointment_id": appt.ID, "date": date, "time": slot},
	}
}

func (e *ToolEngine) captureLead(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	phone := in.Entities.Phone
	if phone == "" {
		phone = in.CustomerPhone
	}
	if phone == "" {
		return missingResult([]string{"phone"})
	}

	lead := &entities.Lead{
		AgentID: in.Agent.ID,
		Name:    in.Entities.Name,
		Phone:   phone,
		Email:   in.Entities.Email,
		Notes:   in.Notes,
		Fields:  in.Entities.Extra,
	}
	if err := e.leads.Upsert(ctx, lead); err != nil {
		return entities.ToolResult{Message: "I couldn't save your details just now. Please try again.", Err: err.Error()}
	}

	e.publish(in.Agent, entities.EventLeadCaptured, map[string]any{
		"lead_id": lead.ID,
		"phone":   lead.Phone,
		"name":    lead.Name,
	})
	return entities.ToolResult{
		Success: true,
		Message: "Thanks! We've noted your details and will be in touch.",
		Data:    map[string]any{"lead_id": lead.ID},
	}
}

func (e *ToolEngine) humanHandoff(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	ticket := &entities.HandoffTicket{
		AgentID:        in.Agent.ID,
		ConversationID: in.ConversationID,
		Reason:         in.Notes,
	}
	// Enqueue is idempotent: a pending ticket for this conversation comes
	// back with its existing queue position instead of a duplicate.
	if err := e.handoffs.Enqueue(ctx, ticket); err != nil {
		return entities.ToolResult{Message: "I couldn't reach the team just now. Please try again.", Err: err.Error()}
	}

	if e.notifier != nil {
		e.notifier.NotifyHandoff(in.Agent.Name, in.CustomerPhone, in.Notes, ticket.Position)
	}
	e.publish(in.Agent, entities.EventHandoffRequested, map[string]any{
		"ticket_id":       ticket.ID,
		"conversation_id": in.ConversationID,
		"position":        ticket.Position,
	})

	return entities.ToolResult{
		Success: true,
		Message: fmt.Sprintf("You're in the queue for a human agent (position %d). Someone will reply here shortly.", ticket.Position),
		Data:    map[string]any{"ticket_id": ticket.ID, "position": ticket.Position},
	}
}

func (e *ToolEngine) searchKnowledge(ctx context.Context, in entities.ToolInput) entities.ToolResult {
	found, err := e.retriever.Retrieve(ctx, in.Agent.ID, in.Query)
	if err != nil {
		return entities.ToolResult{Message: "I couldn't search our info just now. Please try again.", Err: err.Error()}
	}
	if found == "" {
		return entities.ToolResult{Message: "I don't have information on that. Would you like to talk to a human?"}
	}
	return entities.ToolResult{Success: true, Message: found, Data: map[string]any{"context": found}}
}

// upsertLeadQuietly records the customer as a lead without letting a failure
// disturb the booking result.
func (e *ToolEngine) upsertLeadQuietly(ctx context.Context, in entities.ToolInput, note string) {
	lead := &entities.Lead{
		AgentID: in.Agent.ID,
		Name:    in.Entities.Name,
		Phone:   in.Entities.Phone,
		Email:   in.Entities.Email,
		Notes:   note,
		Fields:  in.Entities.Extra,
	}
	if err := e.leads.Upsert(ctx, lead); err != nil {
		log.Printf("[TOOLS] lead upsert after booking failed: %v", err)
	}
}

func (e *ToolEngine) publish(agent *entities.Agent, eventType string, payload map[string]any) {
	if e.triggers == nil {
		return
	}
	e.triggers.Publish(entities.TriggerEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		AgentID:    agent.ID,
		TargetURL:  agent.TriggerURL,
		Payload:    payload,
		OccurredAt: e.now(),
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func nextDay(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(dateLayout)
}
