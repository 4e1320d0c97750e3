// Package harness runs conversation scenarios from YAML files and
// compares the resulting order state against golden snapshots. Scenarios
// document the reducer's observable behavior end to end, independent of
// any storage.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/textilio/intake/internal/engine"
	"github.com/textilio/intake/internal/order"
)

// Scenario defines one conversation to fold and snapshot.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains the behavior this scenario pins down.
	Description string `yaml:"description"`

	// Messages is the conversation, applied in order.
	Messages []order.Message `yaml:"messages"`

	// ExpectError marks scenarios whose conversation must fail to
	// parse. Their snapshot records the error instead of a state.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Result holds the outcome of running a scenario.
type Result struct {
	State  order.State
	Replay []engine.ReplayEntry
	Err    error
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected to catch typos like "message:" for "messages:".
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every scenario file in a directory, sorted by
// file name for deterministic test ordering.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// Run folds the reducer over the scenario's conversation from an empty
// state. The fold is strict: a contradictory message fails the run, and
// the failure lands in Result.Err for ExpectError scenarios to assert
// on.
func Run(r *engine.Reducer, scenario *Scenario) *Result {
	state, entries, err := r.Replay(order.State{Variants: []order.Variant{}}, scenario.Messages, 0)
	return &Result{State: state, Replay: entries, Err: err}
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Messages) == 0 {
		return fmt.Errorf("messages list is required and must be non-empty")
	}

	for i, msg := range s.Messages {
		switch msg.Role {
		case order.RoleUser, order.RoleAssistant:
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return fmt.Errorf("messages[%d]: content is required", i)
		}
	}

	return nil
}
