package dispatch

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// Handler is the user-supplied callback invoked for an admitted instance.
//
// Handlers run on their own goroutine, outside the dispatcher's critical
// section. They must not assume any lock is held and may freely call back
// into the dispatcher (Trigger from inside a handler is the nested-interrupt
// case).
type Handler func(inst *Instance)

// definition is the registered record for one interrupt name.
//
// Owned by the dispatcher registry and guarded by its mutex. Created by
// Register, mutated only by re-registration (priority) or MaskInterrupt,
// never deleted.
type definition struct {
	name     string
	priority int
	masked   bool
}

// Instance is one triggered occurrence of a registered interrupt.
//
// Priority and handler are snapshots taken at trigger time - changing the
// definition afterwards does not affect in-flight instances. The active flag
// is guarded by the dispatcher mutex; external observers read it through
// InstanceInfo snapshots.
type Instance struct {
	// Token uniquely identifies this occurrence. Active-stack removal is
	// by token, not position, because handlers complete in any order.
	Token string

	// Name is the canonical interrupt name.
	Name string

	// Priority is the definition's priority at trigger time.
	Priority int

	// Payload is the opaque data supplied to Trigger, passed through
	// unmodified.
	Payload any

	// Seq is the arrival sequence number. FIFO tie-break key among equal
	// priorities; never reused.
	Seq int64

	handler Handler
	active  bool
}

// DefinitionInfo is a read-only snapshot of a registered interrupt.
type DefinitionInfo struct {
	Name     string
	Priority int
	Masked   bool
}

// InstanceInfo is a read-only snapshot of a currently-active instance.
type InstanceInfo struct {
	Token    string
	Name     string
	Priority int
	Seq      int64
}

// Event is the notification payload delivered to observers on admission and
// completion (and, via ConditionNotifier, on skipped or faulted handlers).
type Event struct {
	Token    string
	Name     string
	Priority int

	// Seq is the notification's own logical clock stamp. It totally orders
	// all events from one dispatcher, unlike wall-clock Time.
	Seq  int64
	Time time.Time
}

// Notifier receives the two scheduling notifications an external consumer
// (visualizer, trace store) is allowed to observe.
//
// Notifiers are invoked inside the dispatcher's critical section: they must
// return promptly and must NOT call back into the dispatcher. They have no
// way to influence an admission decision.
type Notifier interface {
	InstanceAdmitted(ev Event)
	InstanceFinished(ev Event)
}

// ConditionNotifier is an optional extension of Notifier for observers that
// also want non-fatal handler conditions.
type ConditionNotifier interface {
	// HandlerSkipped reports an admitted instance that had no registered
	// callback. The instance still completes immediately.
	HandlerSkipped(ev Event)

	// HandlerFault reports a callback that panicked. The panic is recovered
	// at the runner boundary and the instance still completes.
	HandlerFault(ev Event, err error)
}

// Stats are monotonic counters over the dispatcher's lifetime.
type Stats struct {
	Triggered      int64 // accepted Trigger calls
	Rejected       int64 // Trigger calls refused by mask or unknown name
	Admitted       int64 // instances moved to the active stack
	Finished       int64 // instances removed from the active stack
	SkippedHandler int64 // admitted instances with no callback
	HandlerFaults  int64 // callbacks that panicked
}

// canonicalName normalizes an interrupt name to NFC so visually identical
// names cannot create distinct registry entries.
func canonicalName(name string) string {
	return norm.NFC.String(name)
}
