package conformance

import (
	"bytes"
	"testing"

	"smallscript/pkg/driver"
	"smallscript/pkg/errors"
)

// runEngine executes a script under one engine, returning its stdout and
// error.
func runEngine(t *testing.T, engine driver.Engine, script string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	sess := driver.NewSession(engine, &out)
	err := sess.RunString(script)
	return out.String(), err
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if serr, ok := err.(errors.ScriptError); ok {
		return serr.Kind()
	}
	return "unknown"
}

func TestConformanceSuites(t *testing.T) {
	suites, err := LoadAllSuites()
	if err != nil {
		t.Fatalf("loading suites: %v", err)
	}
	if len(suites) == 0 {
		t.Fatal("no conformance suites found")
	}

	engines := []driver.Engine{driver.EngineAST, driver.EngineBytecode}

	for _, loaded := range suites {
		loaded := loaded
		t.Run(loaded.Suite.Name, func(t *testing.T) {
			for _, tc := range loaded.Suite.Tests {
				tc := tc
				t.Run(tc.Name, func(t *testing.T) {
					outputs := make(map[driver.Engine]string, len(engines))
					errs := make(map[driver.Engine]error, len(engines))
					for _, engine := range engines {
						outputs[engine], errs[engine] = runEngine(t, engine, tc.Script)
					}

					if tc.Error != "" {
						for _, engine := range engines {
							if errs[engine] == nil {
								t.Fatalf("[%s] expected %s error, got none (output %q)",
									engine, tc.Error, outputs[engine])
							}
							if kind := errorKind(errs[engine]); kind != tc.Error {
								t.Errorf("[%s] expected %s error, got %s: %v",
									engine, tc.Error, kind, errs[engine])
							}
						}
						return
					}

					for _, engine := range engines {
						if errs[engine] != nil {
							t.Fatalf("[%s] unexpected error: %v", engine, errs[engine])
						}
						if outputs[engine] != tc.Output {
							t.Errorf("[%s] output mismatch\nwant: %q\ngot:  %q",
								engine, tc.Output, outputs[engine])
						}
					}
					// Engine equivalence: outputs must be byte-identical.
					if outputs[driver.EngineAST] != outputs[driver.EngineBytecode] {
						t.Errorf("engines diverge\nast:      %q\nbytecode: %q",
							outputs[driver.EngineAST], outputs[driver.EngineBytecode])
					}
				})
			}
		})
	}
}
