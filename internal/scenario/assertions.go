package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/irqsim/internal/trace"
)

// ExpectationError is returned when a scenario expectation fails.
// It includes the full admission order for debugging context.
type ExpectationError struct {
	Field    string   // which expectation failed
	Expected string   // human-readable expected outcome
	Actual   string   // human-readable actual outcome
	Admitted []string // full admission order for context
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nadmission order:\n")
	for i, name := range e.Admitted {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, name)
	}

	return buf.String()
}

// IsExpectationError reports whether err is an ExpectationError.
// Uses errors.As to handle wrapped errors.
func IsExpectationError(err error) bool {
	var ee *ExpectationError
	return errors.As(err, &ee)
}

// evaluate checks all expectations against a run result. All failures are
// collected and joined rather than stopping at the first.
func evaluate(expect *Expectations, result *Result) error {
	admitted := admittedNames(result.Events)

	var errs []error

	if expect.AdmissionOrder != nil && !equalStrings(expect.AdmissionOrder, admitted) {
		errs = append(errs, &ExpectationError{
			Field:    "admission_order",
			Expected: fmt.Sprintf("%v", expect.AdmissionOrder),
			Actual:   fmt.Sprintf("%v", admitted),
			Admitted: admitted,
		})
	}

	if expect.Rejected != nil && !equalStrings(expect.Rejected, result.Rejected) {
		errs = append(errs, &ExpectationError{
			Field:    "rejected",
			Expected: fmt.Sprintf("%v", expect.Rejected),
			Actual:   fmt.Sprintf("%v", result.Rejected),
			Admitted: admitted,
		})
	}

	if expect.Finished != nil && int64(*expect.Finished) != result.Stats.Finished {
		errs = append(errs, &ExpectationError{
			Field:    "finished",
			Expected: fmt.Sprintf("%d", *expect.Finished),
			Actual:   fmt.Sprintf("%d", result.Stats.Finished),
			Admitted: admitted,
		})
	}

	return errors.Join(errs...)
}

// admittedNames extracts the admitted interrupt names in seq order.
func admittedNames(events []trace.Event) []string {
	names := []string{}
	for _, ev := range events {
		if ev.Kind == trace.KindAdmitted {
			names = append(names, ev.Name)
		}
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
