package infrastructure

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"project_asisten/internal/entities"
)

// TriggerPublisher is a one-way outbound queue for side-effect events.
// Publish never blocks the message cycle: a full queue drops the event with a
// log line. Delivery gets its own retry policy, decoupled from the runtime.
type TriggerPublisher struct {
	queue      chan entities.TriggerEvent
	httpClient *http.Client
	maxRetries int
	done       chan struct{}
}

func NewTriggerPublisher(queueSize int) *TriggerPublisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &TriggerPublisher{
		queue:      make(chan entities.TriggerEvent, queueSize),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		done:       make(chan struct{}),
	}
	go p.worker()
	return p
}

// Publish enqueues an event for delivery. Events without a target URL are
// dropped silently; not every tenant configures fan-out.
func (p *TriggerPublisher) Publish(evt entities.TriggerEvent) {
	if evt.TargetURL == "" {
		return
	}
	select {
	case p.queue <- evt:
	default:
		log.Printf("[TRIGGER] queue full, dropping %s for agent %d", evt.Type, evt.AgentID)
	}
}

// Close stops the worker after draining what is already queued.
func (p *TriggerPublisher) Close() {
	close(p.queue)
	<-p.done
}

func (p *TriggerPublisher) worker() {
	defer close(p.done)
	for evt := range p.queue {
		p.deliver(evt)
	}
}

func (p *TriggerPublisher) deliver(evt entities.TriggerEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[TRIGGER] marshal %s: %v", evt.Type, err)
		return
	}

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		resp, err := p.httpClient.Post(evt.TargetURL, "application/json", bytes.NewReader(data))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			err = &statusError{code: resp.StatusCode}
		}
		if attempt < p.maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		log.Printf("[TRIGGER] giving up on %s for agent %d: %v", evt.Type, evt.AgentID, err)
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
