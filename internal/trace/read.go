package trace

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReadEvents returns every recorded event in deterministic order:
// ORDER BY seq ASC, token ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no events exist.
func (s *Store) ReadEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, kind, name, priority, seq, at_ns, detail
		FROM events
		ORDER BY seq ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ReadTimeline returns the admitted/finished events for one interrupt name
// in seq order. Condition events are excluded - the timeline renderer only
// consumes the two scheduling notifications.
func (s *Store) ReadTimeline(ctx context.Context, name string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, kind, name, priority, seq, at_ns, detail
		FROM events
		WHERE name = ? AND kind IN (?, ?)
		ORDER BY seq ASC, token COLLATE BINARY ASC
	`, name, string(KindAdmitted), string(KindFinished))
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := []Event{}
	for rows.Next() {
		var ev Event
		var kind string
		var atNS int64
		if err := rows.Scan(&ev.Token, &kind, &ev.Name, &ev.Priority, &ev.Seq, &atNS, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		ev.At = time.Unix(0, atNS).UTC()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
