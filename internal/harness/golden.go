package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/textilio/intake/internal/engine"
	"github.com/textilio/intake/internal/order"
)

// Snapshot is the canonical serialization of a scenario outcome. JSON
// map keys serialize sorted, so the same state always produces the same
// bytes.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Messages     int          `json:"messages"`
	State        *order.State `json:"state,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// RunWithGolden runs a scenario and compares its snapshot against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *engine.Reducer, scenario *Scenario) {
	t.Helper()

	result := Run(r, scenario)

	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		Messages:     len(scenario.Messages),
	}
	switch {
	case scenario.ExpectError:
		if result.Err == nil {
			t.Fatalf("scenario %s: expected a parse failure, got none", scenario.Name)
		}
		snapshot.Error = result.Err.Error()
	case result.Err != nil:
		t.Fatalf("scenario %s: unexpected failure: %v", scenario.Name, result.Err)
	default:
		snapshot.State = &result.State
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("scenario %s: marshal snapshot: %v", scenario.Name, err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
}
