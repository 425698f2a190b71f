// Package conformance runs YAML-described scripts under both execution
// engines and requires byte-identical output: the standing form of the
// engine-equivalence property.
package conformance

// TestSuite is one YAML file of test cases.
type TestSuite struct {
	Name  string     `yaml:"name"`
	Tests []TestCase `yaml:"tests"`
}

// TestCase is a single script with its expected observable behavior.
// Either Output (expected stdout, both engines) or Error (expected error
// kind, both engines) is set.
type TestCase struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
	Output string `yaml:"output,omitempty"`
	Error  string `yaml:"error,omitempty"`
}
