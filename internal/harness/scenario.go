// Package harness runs end-to-end persistence scenarios against a real
// store, the persist middleware, and an in-memory engine.
//
// A scenario is a YAML file naming a middleware policy, a dispatch
// sequence, and per-step save expectations. The runner dispatches each
// step, waits for the announced save to settle when one is expected, and
// records a trace of everything the pipeline observed. Traces are
// compared against golden files.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one persistence conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Policy configures the middleware under test.
	Policy PolicySettings `yaml:"policy"`

	// Initial is the store's initial state. Keys "applied" and "saves"
	// are maintained by the harness reducer.
	Initial map[string]any `yaml:"initial,omitempty"`

	// Steps is the dispatch sequence.
	Steps []Step `yaml:"steps"`
}

// PolicySettings mirrors the middleware options exercised by scenarios.
type PolicySettings struct {
	Blacklist []string `yaml:"blacklist,omitempty"`

	// Whitelist is a pointer so scenarios can distinguish "no whitelist"
	// from "empty whitelist rejects everything".
	Whitelist *[]string `yaml:"whitelist,omitempty"`

	OriginMeta bool `yaml:"originMeta,omitempty"`
}

// Step dispatches one action and states whether it must produce a save.
type Step struct {
	// Type is the action type to dispatch.
	Type string `yaml:"type"`

	// Payload is the action payload, if any.
	Payload any `yaml:"payload,omitempty"`

	// Saved declares whether this step must trigger a persisted snapshot
	// and its save announcement. The runner waits for the announcement
	// when true and asserts silence when false.
	Saved bool `yaml:"saved"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	return &sc, nil
}
