package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/irqsim/internal/dispatch"
	"github.com/roach88/irqsim/internal/trace"
)

// settlePoll is how often the runner re-checks for quiescence after the
// script ends.
const settlePoll = 5 * time.Millisecond

// Result captures everything a scenario run produced.
type Result struct {
	// Scenario is the scenario name.
	Scenario string

	// Events is the recorded dispatcher activity in arrival order.
	Events []trace.Event

	// Stats is the dispatcher's final counter snapshot.
	Stats dispatch.Stats

	// Rejected lists script triggers that returned false, by name, in
	// script order. Nested triggers from inside handlers are not included.
	Rejected []string
}

// Run executes a scenario against a fresh dispatcher and waits for all
// handlers to settle before returning.
//
// Extra dispatcher options (fixed token generators, additional notifiers
// such as a trace.Recorder) are applied before the runner's own collector.
// Expectations, if present, are evaluated after settling; expectation
// failures are returned as errors wrapping ExpectationError.
func Run(ctx context.Context, sc *Scenario, opts ...dispatch.Option) (*Result, error) {
	collector := trace.NewCollector()
	opts = append(opts, dispatch.WithNotifier(collector))
	d := dispatch.New(opts...)

	for _, spec := range sc.Interrupts {
		var handler dispatch.Handler
		if !spec.NoHandler {
			handler = simulatedHandler(d, spec)
		}
		d.Register(spec.Name, spec.Priority, handler)
		if spec.Masked {
			d.MaskInterrupt(spec.Name, true)
		}
	}

	result := &Result{Scenario: sc.Name, Rejected: []string{}}

	slog.Info("scenario starting", "scenario", sc.Name, "steps", len(sc.Script))

	for i, step := range sc.Script {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("script[%d]: %w", i, err)
		}

		switch {
		case step.Trigger != "":
			var payload any
			if step.Payload != "" {
				payload = step.Payload
			}
			if !d.Trigger(step.Trigger, payload) {
				result.Rejected = append(result.Rejected, step.Trigger)
			}

		case step.Sleep != 0:
			select {
			case <-time.After(step.Sleep.Std()):
			case <-ctx.Done():
				return nil, fmt.Errorf("script[%d]: %w", i, ctx.Err())
			}

		case step.Mask != nil:
			if !d.MaskInterrupt(step.Mask.Name, step.Mask.Masked) {
				return nil, fmt.Errorf("script[%d]: mask of unknown interrupt %q", i, step.Mask.Name)
			}

		case step.MaskAll != nil:
			d.MaskAll(*step.MaskAll)

		case step.Wait != 0:
			waitCtx, cancel := context.WithTimeout(ctx, step.Wait.Std())
			ok := d.WaitForCompletion(waitCtx)
			cancel()
			if !ok {
				return nil, fmt.Errorf("script[%d]: wait for completion timed out after %s", i, step.Wait.Std())
			}
		}
	}

	// The completion latch is not a handler barrier, so the runner settles
	// on its own terms: every admitted instance has finished and nothing
	// is left pending.
	if err := awaitQuiescent(ctx, d); err != nil {
		return nil, err
	}

	result.Events = collector.Events()
	result.Stats = d.Stats()

	slog.Info("scenario finished",
		"scenario", sc.Name,
		"admitted", result.Stats.Admitted,
		"finished", result.Stats.Finished,
		"rejected", result.Stats.Rejected,
	)

	if sc.Expect != nil {
		if err := evaluate(sc.Expect, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// simulatedHandler builds the callback for one interrupt spec: run for
// Work, raising any nested triggers at their offsets along the way.
func simulatedHandler(d *dispatch.Dispatcher, spec InterruptSpec) dispatch.Handler {
	triggers := make([]NestedTrigger, len(spec.Triggers))
	copy(triggers, spec.Triggers)
	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].After < triggers[j].After })

	return func(inst *dispatch.Instance) {
		elapsed := time.Duration(0)
		for _, tr := range triggers {
			if after := tr.After.Std(); after > elapsed {
				time.Sleep(after - elapsed)
				elapsed = after
			}
			payload := tr.Payload
			if payload == "" {
				payload = fmt.Sprintf("nested from %s", spec.Name)
			}
			d.Trigger(tr.Name, payload)
		}
		if work := spec.Work.Std(); work > elapsed {
			time.Sleep(work - elapsed)
		}
	}
}

// awaitQuiescent polls until every admitted instance has finished and the
// pending queue is empty, or ctx expires.
func awaitQuiescent(ctx context.Context, d *dispatch.Dispatcher) error {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	for {
		s := d.Stats()
		if s.Admitted == s.Finished && d.PendingLen() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("scenario did not settle: %w", ctx.Err())
		}
	}
}
