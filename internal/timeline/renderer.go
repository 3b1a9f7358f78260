// Package timeline renders dispatcher traces as a textual Gantt chart.
//
// The renderer is a pure function over recorded events: one row per
// interrupt name (highest priority first), one column per scheduling event
// in seq order, a bar spanning admission to completion. Because columns are
// logical steps rather than wall time, identical schedules render
// identically - which is what makes golden-file testing possible.
//
// The renderer consumes exactly the two scheduling notifications (admitted,
// finished); condition events are listed underneath the chart and never
// affect its geometry.
package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/irqsim/internal/trace"
)

const (
	barChar  = '#'
	idleChar = '.'
)

// Render produces the timeline chart for a recorded trace.
//
// Events are re-sorted by seq, so callers may pass store reads or collector
// output interchangeably. An empty trace renders a one-line placeholder.
func Render(events []trace.Event) string {
	sorted := make([]trace.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	var sched, conditions []trace.Event
	for _, ev := range sorted {
		switch ev.Kind {
		case trace.KindAdmitted, trace.KindFinished:
			sched = append(sched, ev)
		default:
			conditions = append(conditions, ev)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "interrupt timeline (%d events)\n", len(sched))

	if len(sched) == 0 {
		b.WriteString("\n(no activity recorded)\n")
		return b.String()
	}

	rows := rowOrder(sched)
	nameWidth := 0
	for _, r := range rows {
		if len(r.name) > nameWidth {
			nameWidth = len(r.name)
		}
	}

	grid := buildGrid(sched, rows)

	b.WriteByte('\n')
	for i, r := range rows {
		fmt.Fprintf(&b, "%-*s %4d |%s|\n", nameWidth, r.name, r.priority, grid[i])
	}

	if len(conditions) > 0 {
		b.WriteString("\nconditions:\n")
		for _, ev := range conditions {
			fmt.Fprintf(&b, "  %s %s (seq %d): %s\n", ev.Kind, ev.Name, ev.Seq, ev.Detail)
		}
	}

	return b.String()
}

type row struct {
	name     string
	priority int
}

// rowOrder returns one row per interrupt name, highest priority first,
// name as the tie-break.
func rowOrder(sched []trace.Event) []row {
	seen := make(map[string]bool)
	var rows []row
	for _, ev := range sched {
		if !seen[ev.Name] {
			seen[ev.Name] = true
			rows = append(rows, row{name: ev.Name, priority: ev.Priority})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].priority != rows[j].priority {
			return rows[i].priority > rows[j].priority
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

// buildGrid walks the scheduling events once, and after applying each event
// marks every row that has at least one live instance. A bar therefore
// starts in the column of its admission event and ends in the column before
// its completion event.
func buildGrid(sched []trace.Event, rows []row) []string {
	rowIdx := make(map[string]int, len(rows))
	for i, r := range rows {
		rowIdx[r.name] = i
	}

	liveByName := make(map[string]int)
	cells := make([][]byte, len(rows))
	for i := range cells {
		cells[i] = []byte(strings.Repeat(string(idleChar), len(sched)))
	}

	for col, ev := range sched {
		switch ev.Kind {
		case trace.KindAdmitted:
			liveByName[ev.Name]++
		case trace.KindFinished:
			liveByName[ev.Name]--
		}
		for name, live := range liveByName {
			if live > 0 {
				cells[rowIdx[name]][col] = barChar
			}
		}
	}

	grid := make([]string, len(rows))
	for i := range cells {
		grid[i] = string(cells[i])
	}
	return grid
}
