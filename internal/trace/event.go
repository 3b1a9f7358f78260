package trace

import "time"

// Kind identifies the dispatcher notification an event records.
type Kind string

const (
	// KindAdmitted records an instance moving to the active stack.
	KindAdmitted Kind = "admitted"
	// KindFinished records an instance leaving the active stack.
	KindFinished Kind = "finished"
	// KindSkipped records an admitted instance that had no handler.
	KindSkipped Kind = "handler_skipped"
	// KindFault records a handler panic recovered at the runner boundary.
	KindFault Kind = "handler_fault"
)

// Event is one recorded dispatcher notification.
type Event struct {
	// Token identifies the instance. Together with Kind it is unique.
	Token string `json:"token"`

	// Kind is the notification type.
	Kind Kind `json:"kind"`

	// Name is the interrupt name.
	Name string `json:"name"`

	// Priority is the instance's priority snapshot.
	Priority int `json:"priority"`

	// Seq is the dispatcher's logical clock stamp. The trace's only
	// ordering key.
	Seq int64 `json:"seq"`

	// At is the wall-clock time of the notification. Informational only -
	// never used for ordering.
	At time.Time `json:"at"`

	// Detail carries extra context for condition events (e.g. the fault
	// message). Empty for admitted/finished.
	Detail string `json:"detail,omitempty"`
}
