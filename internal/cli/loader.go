package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Vector is one interrupt declared in a CUE vector table.
//
// A vector table registers interrupt names and priorities without handlers;
// scenarios reference them by name. Decoded from CUE files of the form:
//
//	vectors: [
//		{name: "clock", priority: 100},
//		{name: "disk", priority: 50, masked: true},
//	]
type Vector struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Masked   bool   `json:"masked,omitempty"`
}

// LoadVectors loads a vector table from a directory of CUE files.
// All files in the directory are unified into one CUE instance, so a table
// may be split across files.
func LoadVectors(dir string) ([]Vector, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("vectors directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing vectors directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE instance: %w", err)
	}

	vectorsVal := value.LookupPath(cue.ParsePath("vectors"))
	if !vectorsVal.Exists() {
		return nil, fmt.Errorf("no \"vectors\" list found in %s", dir)
	}

	var vectors []Vector
	if err := vectorsVal.Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding vectors: %w", err)
	}

	if err := validateVectors(vectors); err != nil {
		return nil, err
	}

	return vectors, nil
}

// validateVectors checks the decoded table for structural problems the CUE
// schema cannot express on its own.
func validateVectors(vectors []Vector) error {
	if len(vectors) == 0 {
		return fmt.Errorf("vector table is empty")
	}

	seen := make(map[string]bool, len(vectors))
	for i, v := range vectors {
		if v.Name == "" {
			return fmt.Errorf("vectors[%d]: name is required", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("vectors[%d]: duplicate vector %q", i, v.Name)
		}
		seen[v.Name] = true
	}

	return nil
}
