package trace

import (
	"context"
	"fmt"
)

// WriteEvent inserts an event record into the store.
// Uses ON CONFLICT(token, kind) DO NOTHING for idempotency - an instance is
// admitted once and finished once, so duplicate writes are silently ignored.
// Other constraint violations (e.g. NOT NULL) still return errors.
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(token, kind, name, priority, seq, at_ns, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token, kind) DO NOTHING
	`,
		ev.Token,
		string(ev.Kind),
		ev.Name,
		ev.Priority,
		ev.Seq,
		ev.At.UnixNano(),
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
