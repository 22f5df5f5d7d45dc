package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/ivi-bench/platform-sim/sim"
	"github.com/ivi-bench/platform-sim/sim/workload"
)

// ScenarioTask is one submission in a YAML scenario file, the input format
// of the external test-automation layer.
type ScenarioTask struct {
	ID       string `yaml:"id"`
	At       int64  `yaml:"at"`
	Priority int    `yaml:"priority"`
	Cost     int64  `yaml:"cost"`
	Memory   int64  `yaml:"memory"`
	Deadline int64  `yaml:"deadline"`
	Period   int64  `yaml:"period"`
	Mode     string `yaml:"mode"` // rt | multitask | empty = auto
}

// Scenario mirrors the scenario YAML document.
type Scenario struct {
	Tasks []ScenarioTask `yaml:"tasks"`
}

// LoadScenario reads a scenario file into a submission sequence.
func LoadScenario(path string) ([]workload.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	subs := make([]workload.Submission, 0, len(sc.Tasks))
	for i, st := range sc.Tasks {
		if st.At < 0 {
			return nil, fmt.Errorf("scenario task %d (%s): negative arrival tick %d", i, st.ID, st.At)
		}
		t := sim.NewTask(st.ID, st.Priority, st.Cost, st.Memory, st.Deadline, sim.PlatformMode(st.Mode))
		t.Period = st.Period
		t.SubmitTime = st.At
		subs = append(subs, workload.Submission{At: st.At, Task: t})
	}
	return subs, nil
}
