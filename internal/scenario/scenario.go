// Package scenario loads and runs irqsim demo scripts.
//
// A scenario is a YAML file describing an interrupt table, a script of
// trigger/mask/sleep/wait steps, and optional expectations about the
// resulting schedule. Handlers are simulated: each interrupt declares how
// long its handler works and which interrupts it raises mid-handler, which
// is how the nested-preemption demos are expressed as data.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one runnable demo script.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description,omitempty"`

	// Interrupts is the interrupt table to register before the script runs.
	Interrupts []InterruptSpec `yaml:"interrupts"`

	// Script is the step sequence executed in order.
	Script []Step `yaml:"script"`

	// Expect holds optional assertions evaluated after the run settles.
	Expect *Expectations `yaml:"expect,omitempty"`
}

// InterruptSpec declares one interrupt and its simulated handler.
type InterruptSpec struct {
	// Name is the interrupt name (registry key).
	Name string `yaml:"name"`

	// Priority is the admission priority; larger is more urgent.
	Priority int `yaml:"priority"`

	// Masked registers the interrupt pre-masked.
	Masked bool `yaml:"masked,omitempty"`

	// Work is how long the simulated handler runs (e.g. "50ms").
	Work Duration `yaml:"work,omitempty"`

	// NoHandler registers the interrupt without any callback, so triggers
	// complete immediately with a skipped-handler condition.
	NoHandler bool `yaml:"no_handler,omitempty"`

	// Triggers are interrupts the handler raises mid-run, the nested
	// preemption case. After is measured from handler start and must not
	// exceed Work.
	Triggers []NestedTrigger `yaml:"triggers,omitempty"`
}

// NestedTrigger is an interrupt raised from inside a simulated handler.
type NestedTrigger struct {
	Name    string   `yaml:"name"`
	After   Duration `yaml:"after,omitempty"`
	Payload string   `yaml:"payload,omitempty"`
}

// Step is one script action. Exactly one field group must be set.
type Step struct {
	// Trigger raises the named interrupt with an optional payload.
	Trigger string `yaml:"trigger,omitempty"`
	Payload string `yaml:"payload,omitempty"`

	// Sleep pauses the script, giving handlers wall-clock time to run.
	Sleep Duration `yaml:"sleep,omitempty"`

	// Mask sets or clears a per-interrupt mask.
	Mask *MaskOp `yaml:"mask,omitempty"`

	// MaskAll sets or clears the global mask.
	MaskAll *bool `yaml:"mask_all,omitempty"`

	// Wait blocks until the dispatcher's completion latch fires, up to the
	// given timeout. Note the latch means "pending queue observed empty",
	// not "all handlers returned".
	Wait Duration `yaml:"wait,omitempty"`
}

// MaskOp names a per-interrupt mask change.
type MaskOp struct {
	Name   string `yaml:"name"`
	Masked bool   `yaml:"masked"`
}

// Expectations are post-run assertions.
type Expectations struct {
	// AdmissionOrder is the exact sequence of admitted interrupt names.
	AdmissionOrder []string `yaml:"admission_order,omitempty"`

	// Rejected is the exact sequence of script triggers that returned
	// false, by name.
	Rejected []string `yaml:"rejected,omitempty"`

	// Finished is the total number of completed instances.
	Finished *int `yaml:"finished,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"250ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse parses scenario YAML bytes with strict field validation.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &sc, nil
}

// validate checks that required fields are present and consistent.
func validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Interrupts) == 0 {
		return fmt.Errorf("interrupts list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Interrupts))
	for i, spec := range s.Interrupts {
		if spec.Name == "" {
			return fmt.Errorf("interrupts[%d]: name is required", i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("interrupts[%d]: duplicate interrupt %q", i, spec.Name)
		}
		seen[spec.Name] = true

		if spec.NoHandler && (spec.Work != 0 || len(spec.Triggers) != 0) {
			return fmt.Errorf("interrupts[%d]: no_handler excludes work and triggers", i)
		}
		for j, tr := range spec.Triggers {
			if tr.Name == "" {
				return fmt.Errorf("interrupts[%d].triggers[%d]: name is required", i, j)
			}
			if tr.After.Std() > spec.Work.Std() {
				return fmt.Errorf("interrupts[%d].triggers[%d]: after exceeds handler work", i, j)
			}
		}
	}

	if len(s.Script) == 0 {
		return fmt.Errorf("script is required and must be non-empty")
	}

	for i, step := range s.Script {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep enforces the one-of shape of a script step.
func validateStep(index int, step *Step) error {
	set := 0
	if step.Trigger != "" {
		set++
	}
	if step.Sleep != 0 {
		set++
	}
	if step.Mask != nil {
		set++
	}
	if step.MaskAll != nil {
		set++
	}
	if step.Wait != 0 {
		set++
	}

	switch set {
	case 0:
		return fmt.Errorf("script[%d]: step must set one of trigger/sleep/mask/mask_all/wait", index)
	case 1:
		// ok
	default:
		return fmt.Errorf("script[%d]: step must set exactly one of trigger/sleep/mask/mask_all/wait", index)
	}

	if step.Payload != "" && step.Trigger == "" {
		return fmt.Errorf("script[%d]: payload requires trigger", index)
	}
	if step.Mask != nil && step.Mask.Name == "" {
		return fmt.Errorf("script[%d].mask: name is required", index)
	}

	return nil
}
