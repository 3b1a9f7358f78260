// Package dispatch implements the irqsim interrupt dispatcher.
//
// The dispatcher is the heart of irqsim - it owns the interrupt registry,
// the pending priority queue, the active nesting stack and the mask state,
// and decides when a triggered interrupt is admitted for handling.
//
// ARCHITECTURE:
//
// Single Critical Section:
// All dispatcher state lives behind one mutex. Internal steps are expressed
// as *Locked helpers called with the mutex held, so the finish-then-readmit
// chain is a plain call sequence inside a single lock acquisition. There is
// no recursive locking anywhere.
//
// Admission Flow:
// 1. Trigger() validates masks and registry, enqueues a new Instance
// 2. tryAdmitOneLocked() makes at most ONE admission decision
// 3. An admitted instance runs its handler on its own goroutine
// 4. Handler completion calls finish(), which removes the instance from the
//    active stack and runs exactly one more admission step
//
// Admission is deliberately single-step, not a drain loop: a second eligible
// pending instance only gets its chance on the next trigger or completion.
// Changing this to a drain changes observable scheduling order.
//
// "Preemption" here means concurrent admission. A higher-priority instance
// is admitted while a lower-priority handler keeps running; nothing is ever
// suspended or cancelled. The active stack is therefore pushed in admission
// order but popped by identity, because handlers finish in any order.
//
// Completion Latch:
// WaitForCompletion observes a level-triggered latch that means "the pending
// queue was empty at the end of the most recent admission step". It does NOT
// mean all handlers have returned - handlers may still be running when the
// latch is set. Callers must not treat it as a barrier for handler side
// effects.
package dispatch
