package trace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/irqsim/internal/dispatch"
)

// Recorder persists dispatcher notifications to a Store.
//
// It implements dispatch.Notifier and dispatch.ConditionNotifier. Write
// failures are logged and dropped: the trace is an observer and must never
// affect scheduling, so there is no error path back into the dispatcher.
type Recorder struct {
	store *Store
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// InstanceAdmitted persists an admission event.
func (r *Recorder) InstanceAdmitted(ev dispatch.Event) {
	r.write(Event{
		Token:    ev.Token,
		Kind:     KindAdmitted,
		Name:     ev.Name,
		Priority: ev.Priority,
		Seq:      ev.Seq,
		At:       ev.Time,
	})
}

// InstanceFinished persists a completion event.
func (r *Recorder) InstanceFinished(ev dispatch.Event) {
	r.write(Event{
		Token:    ev.Token,
		Kind:     KindFinished,
		Name:     ev.Name,
		Priority: ev.Priority,
		Seq:      ev.Seq,
		At:       ev.Time,
	})
}

// HandlerSkipped persists a no-handler condition.
func (r *Recorder) HandlerSkipped(ev dispatch.Event) {
	r.write(Event{
		Token:    ev.Token,
		Kind:     KindSkipped,
		Name:     ev.Name,
		Priority: ev.Priority,
		Seq:      ev.Seq,
		At:       ev.Time,
		Detail:   "no handler registered",
	})
}

// HandlerFault persists a recovered handler panic.
func (r *Recorder) HandlerFault(ev dispatch.Event, err error) {
	r.write(Event{
		Token:    ev.Token,
		Kind:     KindFault,
		Name:     ev.Name,
		Priority: ev.Priority,
		Seq:      ev.Seq,
		At:       ev.Time,
		Detail:   err.Error(),
	})
}

func (r *Recorder) write(ev Event) {
	if err := r.store.WriteEvent(context.Background(), ev); err != nil {
		slog.Error("trace write failed",
			"token", ev.Token,
			"kind", ev.Kind,
			"interrupt", ev.Name,
			"error", err,
		)
	}
}

// Collector keeps dispatcher notifications in memory, in arrival order.
//
// Used by tests and by one-shot scenario runs that render a timeline
// without persisting anything. Implements the same observer interfaces as
// Recorder.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// InstanceAdmitted records an admission event.
func (c *Collector) InstanceAdmitted(ev dispatch.Event) {
	c.append(ev, KindAdmitted, "")
}

// InstanceFinished records a completion event.
func (c *Collector) InstanceFinished(ev dispatch.Event) {
	c.append(ev, KindFinished, "")
}

// HandlerSkipped records a no-handler condition.
func (c *Collector) HandlerSkipped(ev dispatch.Event) {
	c.append(ev, KindSkipped, "no handler registered")
}

// HandlerFault records a recovered handler panic.
func (c *Collector) HandlerFault(ev dispatch.Event, err error) {
	c.append(ev, KindFault, err.Error())
}

func (c *Collector) append(ev dispatch.Event, kind Kind, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{
		Token:    ev.Token,
		Kind:     kind,
		Name:     ev.Name,
		Priority: ev.Priority,
		Seq:      ev.Seq,
		At:       ev.Time,
		Detail:   detail,
	})
}

// Events returns a copy of the collected events in arrival order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
