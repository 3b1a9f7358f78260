package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Dispatcher owns all interrupt state: the definition registry, the handler
// table, the pending queue, the active stack, both masks and the completion
// latch. Every read and write of that state happens inside the single mutex.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine
//   - Handler callbacks run OUTSIDE the critical section, one goroutine per
//     admitted instance, unbounded (a burst of triggers at strictly
//     increasing priority creates arbitrarily many concurrent handlers)
//   - Notifiers run INSIDE the critical section and must not call back
//
// INVARIANTS:
//   - The pending queue is ordered by priority desc, then arrival seq asc
//   - The active stack is pushed in admission order, removed by token
//   - Equal priority never preempts: admission requires strictly greater
//     priority than the current stack top
//   - One admission decision per step, never a drain loop
type Dispatcher struct {
	mu sync.Mutex

	defs     map[string]*definition
	handlers map[string]Handler
	pending  *pendingQueue
	active   []*Instance

	globalMask bool

	// Completion latch: idle is true exactly when the last admission step
	// observed the pending queue empty. idleCh is closed while idle holds
	// and replaced when a trigger is accepted.
	idle   bool
	idleCh chan struct{}

	clock     *Clock
	tokens    TokenGenerator
	notifiers []Notifier
	now       func() time.Time

	stats Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTokenGenerator overrides the instance token generator.
// Use FixedGenerator in tests for deterministic tokens.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(d *Dispatcher) {
		d.tokens = gen
	}
}

// WithClock overrides the logical clock.
// Use NewClockAt in tests that need predictable seq values.
func WithClock(clock *Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithNotifier registers an observer for admission/completion events.
// May be given multiple times; notifiers fire in registration order.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifiers = append(d.notifiers, n)
	}
}

// WithNowFunc overrides the wall-clock source for event timestamps.
// Tests use a fixed or stepping function for reproducible traces.
func WithNowFunc(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New creates a Dispatcher with no registered interrupts.
//
// The completion latch starts cleared: WaitForCompletion on a fresh
// dispatcher blocks until the first admission step observes an empty queue.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defs:     make(map[string]*definition),
		handlers: make(map[string]Handler),
		pending:  newPendingQueue(),
		idleCh:   make(chan struct{}),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register registers an interrupt name with a priority and (optionally) a
// handler. Registering an existing name updates its priority in place and is
// not an error. Definitions are never removed.
//
// Returns a snapshot of the definition after the call.
func (d *Dispatcher) Register(name string, priority int, handler Handler) DefinitionInfo {
	name = canonicalName(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	def, ok := d.defs[name]
	if ok {
		slog.Warn("interrupt already registered, updating priority",
			"interrupt", name,
			"old_priority", def.priority,
			"new_priority", priority,
		)
		def.priority = priority
	} else {
		def = &definition{name: name, priority: priority}
		d.defs[name] = def
		slog.Info("registered interrupt", "interrupt", name, "priority", priority)
	}

	if handler != nil {
		d.registerHandlerLocked(name, handler)
	}

	return DefinitionInfo{Name: def.name, Priority: def.priority, Masked: def.masked}
}

// RegisterHandler attaches a callback to an interrupt name, overwriting any
// previous callback. Registering a handler for a name with no definition is
// permitted - the callback is simply stored for future use.
func (d *Dispatcher) RegisterHandler(name string, fn Handler) {
	name = canonicalName(name)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.registerHandlerLocked(name, fn)
}

func (d *Dispatcher) registerHandlerLocked(name string, fn Handler) {
	d.handlers[name] = fn
	slog.Info("registered handler", "interrupt", name)
}

// Trigger raises an interrupt by name with an opaque payload.
//
// Mask checks happen in order: global mask, unknown name, per-definition
// mask; each rejection returns false with no state change. An accepted
// trigger enqueues a new instance, clears the completion latch, runs exactly
// one admission step and returns true. Trigger never waits for the handler.
func (d *Dispatcher) Trigger(name string, payload any) bool {
	name = canonicalName(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.globalMask {
		d.stats.Rejected++
		slog.Info("trigger ignored (globally masked)", "interrupt", name)
		return false
	}

	def, ok := d.defs[name]
	if !ok {
		d.stats.Rejected++
		slog.Error("trigger of unknown interrupt", "interrupt", name)
		return false
	}

	if def.masked {
		d.stats.Rejected++
		slog.Info("trigger ignored (masked)", "interrupt", name)
		return false
	}

	// Priority and handler are snapshots: later Register or RegisterHandler
	// calls do not retroactively affect this instance.
	inst := &Instance{
		Token:    d.tokens.Generate(),
		Name:     name,
		Priority: def.priority,
		Payload:  payload,
		Seq:      d.clock.Next(),
		handler:  d.handlers[name],
	}
	d.pending.Push(inst)
	d.stats.Triggered++

	slog.Info("triggered interrupt",
		"interrupt", name,
		"priority", inst.Priority,
		"token", inst.Token,
		"seq", inst.Seq,
	)

	// New work exists: clear the completion latch.
	if d.idle {
		d.idle = false
		d.idleCh = make(chan struct{})
	}

	d.tryAdmitOneLocked()
	return true
}

// tryAdmitOneLocked makes at most ONE admission decision.
//
// It is deliberately not a drain loop: if two pending instances both exceed
// the stack top, the second only becomes eligible on the next trigger or
// completion. Draining here would change observable scheduling order.
//
// Called with d.mu held.
func (d *Dispatcher) tryAdmitOneLocked() {
	if d.pending.Len() == 0 {
		if !d.idle {
			d.idle = true
			close(d.idleCh)
		}
		return
	}

	p := d.pending.Peek()

	if len(d.active) > 0 {
		top := d.active[len(d.active)-1]
		// Strictly greater only: equal priority never preempts.
		if p.Priority > top.Priority {
			slog.Info("interrupt preempting",
				"interrupt", p.Name,
				"preempted", top.Name,
				"priority", p.Priority,
				"top_priority", top.Priority,
			)
			d.admitLocked(p)
		} else {
			slog.Debug("interrupt left queued",
				"interrupt", p.Name,
				"priority", p.Priority,
				"top_priority", top.Priority,
			)
		}
		return
	}

	d.admitLocked(p)
}

// admitLocked moves p from the pending queue to the active stack and starts
// its handler goroutine. Called with d.mu held.
func (d *Dispatcher) admitLocked(p *Instance) {
	d.pending.Pop()
	p.active = true
	d.active = append(d.active, p)
	d.stats.Admitted++

	slog.Info("handling interrupt",
		"interrupt", p.Name,
		"priority", p.Priority,
		"token", p.Token,
		"stack_depth", len(d.active),
	)

	ev := d.eventLocked(p)
	for _, n := range d.notifiers {
		n.InstanceAdmitted(ev)
	}

	go d.runAndFinish(p)
}

// runAndFinish executes the instance's callback on its own goroutine.
//
// A missing callback is an immediate no-op completion; a panicking callback
// is recovered at this boundary. Either way the instance is finished and
// removed from the active stack - no condition may leave the stack
// inconsistent.
func (d *Dispatcher) runAndFinish(inst *Instance) {
	defer func() {
		if r := recover(); r != nil {
			err := NewHandlerPanicError(inst.Name, inst.Token, r)
			slog.Error("handler fault",
				"interrupt", inst.Name,
				"token", inst.Token,
				"error", err,
			)
			d.recordFault(inst, err)
		}
		d.finish(inst)
	}()

	if inst.handler == nil {
		slog.Warn("no handler for interrupt", "interrupt", inst.Name, "token", inst.Token)
		d.recordSkipped(inst)
		return
	}

	slog.Debug("handler starting", "interrupt", inst.Name, "priority", inst.Priority)
	inst.handler(inst)
	slog.Debug("handler completed", "interrupt", inst.Name, "priority", inst.Priority)
}

// finish removes inst from the active stack by token (it may not be at the
// top - concurrently admitted instances complete in any order), marks it
// inactive and runs one more admission step, since a previously blocked
// pending instance may now qualify.
func (d *Dispatcher) finish(inst *Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, a := range d.active {
		if a.Token == inst.Token {
			d.active = append(d.active[:i], d.active[i+1:]...)
			break
		}
	}
	inst.active = false
	d.stats.Finished++

	if len(d.active) > 0 {
		slog.Info("finished interrupt",
			"interrupt", inst.Name,
			"token", inst.Token,
			"resumed", d.active[len(d.active)-1].Name,
		)
	} else {
		slog.Info("finished interrupt", "interrupt", inst.Name, "token", inst.Token)
	}

	ev := d.eventLocked(inst)
	for _, n := range d.notifiers {
		n.InstanceFinished(ev)
	}

	d.tryAdmitOneLocked()
}

// MaskInterrupt sets or clears the per-definition mask for name.
// Returns false only if name is unknown. Masking is purely an admission-time
// filter: already-pending and already-active instances are unaffected.
func (d *Dispatcher) MaskInterrupt(name string, masked bool) bool {
	name = canonicalName(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	def, ok := d.defs[name]
	if !ok {
		slog.Error("mask of unknown interrupt", "interrupt", name)
		return false
	}

	def.masked = masked
	slog.Info("interrupt mask changed", "interrupt", name, "masked", masked)
	return true
}

// MaskAll sets or clears the global mask. Like MaskInterrupt it never
// touches the pending queue or the active stack.
func (d *Dispatcher) MaskAll(masked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.globalMask = masked
	slog.Info("global mask changed", "masked", masked)
}

// WaitForCompletion blocks until the completion latch is observed true or
// ctx is done, and reports which happened.
//
// The latch means "pending queue observed empty at the end of the last
// admission step" - handlers may still be running when it returns true.
// Callers must not rely on it as a barrier for handler side effects.
func (d *Dispatcher) WaitForCompletion(ctx context.Context) bool {
	d.mu.Lock()
	ch := d.idleCh
	d.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// Definitions returns a snapshot of all registered interrupts, sorted by
// name for stable output.
func (d *Dispatcher) Definitions() []DefinitionInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]DefinitionInfo, 0, len(d.defs))
	for _, def := range d.defs {
		infos = append(infos, DefinitionInfo{Name: def.name, Priority: def.priority, Masked: def.masked})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Active returns a snapshot of the active stack in push order, bottom first.
func (d *Dispatcher) Active() []InstanceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]InstanceInfo, 0, len(d.active))
	for _, inst := range d.active {
		infos = append(infos, InstanceInfo{
			Token:    inst.Token,
			Name:     inst.Name,
			Priority: inst.Priority,
			Seq:      inst.Seq,
		})
	}
	return infos
}

// PendingLen returns the number of triggered, not-yet-admitted instances.
func (d *Dispatcher) PendingLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len()
}

// Stats returns a snapshot of the lifetime counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Clock returns the dispatcher's logical clock.
// Used by external code that wants to stamp its own records in the same
// sequence domain as dispatcher events.
func (d *Dispatcher) Clock() *Clock {
	return d.clock
}

// eventLocked builds a notification event for inst, stamped with its own
// seq. Called with d.mu held.
func (d *Dispatcher) eventLocked(inst *Instance) Event {
	return Event{
		Token:    inst.Token,
		Name:     inst.Name,
		Priority: inst.Priority,
		Seq:      d.clock.Next(),
		Time:     d.now(),
	}
}

// recordSkipped counts a no-handler completion and informs condition
// observers.
func (d *Dispatcher) recordSkipped(inst *Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.SkippedHandler++
	ev := d.eventLocked(inst)
	for _, n := range d.notifiers {
		if cn, ok := n.(ConditionNotifier); ok {
			cn.HandlerSkipped(ev)
		}
	}
}

// recordFault counts a recovered handler panic and informs condition
// observers. The dispatcher's own consistency is unaffected.
func (d *Dispatcher) recordFault(inst *Instance, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.HandlerFaults++
	ev := d.eventLocked(inst)
	for _, n := range d.notifiers {
		if cn, ok := n.(ConditionNotifier); ok {
			cn.HandlerFault(ev, err)
		}
	}
}
