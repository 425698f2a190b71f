package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuiteDir is the directory of YAML suites, relative to this package.
const SuiteDir = "suites"

// LoadedSuite pairs a suite with the file it came from.
type LoadedSuite struct {
	File  string
	Suite TestSuite
}

// LoadAllSuites reads every YAML file under SuiteDir.
func LoadAllSuites() ([]LoadedSuite, error) {
	entries, err := os.ReadDir(SuiteDir)
	if err != nil {
		return nil, fmt.Errorf("could not read suite directory %s: %w", SuiteDir, err)
	}

	var loaded []LoadedSuite
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(SuiteDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", path, err)
		}
		var suite TestSuite
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
		if suite.Name == "" {
			suite.Name = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		loaded = append(loaded, LoadedSuite{File: path, Suite: suite})
	}
	return loaded, nil
}
