package round

import (
	"context"
	"fmt"
	"slices"

	"github.com/biobot-lab/biobot/internal/mailbox"
)

// State is the derived phase of an experiment.
type State string

const (
	StateStart                State = "START"
	StateAwaitingIntervention State = "AWAITING_INTERVENTION"
	StateAwaitingObservation  State = "AWAITING_OBSERVATION"
)

// Status is the derived state of one experiment.
type Status struct {
	Index int    `json:"index" yaml:"index"`
	ID    string `json:"id" yaml:"id"`
	State State  `json:"state" yaml:"state"`
	// Iteration is the highest observation iteration, -1 in START.
	Iteration     int      `json:"iteration" yaml:"iteration"`
	Observations  []int    `json:"observations" yaml:"observations"`
	Interventions []int    `json:"interventions" yaml:"interventions"`
	Next          string   `json:"next,omitempty" yaml:"next,omitempty"`
	Anomalies     []string `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

// String renders the state with its iteration, e.g.
// "AWAITING_INTERVENTION(20240101120000, 3)".
func (s Status) String() string {
	if s.State == StateStart {
		return string(StateStart)
	}
	return fmt.Sprintf("%s(%s, %d)", s.State, s.ID, s.Iteration)
}

// Inspect derives the status of the experiment at index.
func (c *Controller) Inspect(ctx context.Context, index int) (Status, error) {
	if err := validateIndex(index); err != nil {
		return Status{}, err
	}
	id, err := c.registry.Resolve(ctx, index)
	if err != nil {
		return Status{}, err
	}
	return c.derive(ctx, index, id)
}

// Experiments returns the status of every registered experiment in index
// order.
func (c *Controller) Experiments(ctx context.Context) ([]Status, error) {
	ids, err := c.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(ids))
	for i, id := range ids {
		st, err := c.derive(ctx, i, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Controller) derive(ctx context.Context, index int, id string) (Status, error) {
	obs, err := c.mailbox.Iterations(ctx, mailbox.Observations, id)
	if err != nil {
		return Status{}, err
	}
	ints, err := c.mailbox.Iterations(ctx, mailbox.Interventions, id)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Index:         index,
		ID:            id,
		Iteration:     -1,
		Observations:  nonNil(obs),
		Interventions: nonNil(ints),
	}
	st.Anomalies = anomalies(obs, ints)

	if len(obs) == 0 {
		st.State = StateStart
		return st, nil
	}
	n := obs[len(obs)-1]
	st.Iteration = n
	if slices.Contains(ints, n) {
		st.State = StateAwaitingObservation
		st.Next = fmt.Sprintf("capture-observation %d %d", index, n)
	} else {
		st.State = StateAwaitingIntervention
		st.Next = fmt.Sprintf("propose-intervention %d %d", index, n)
	}
	return st, nil
}

// anomalies lists gaps in the round history: a missing observation or
// intervention below the latest observation, or an intervention with no
// observation at the same iteration.
func anomalies(obs, ints []int) []string {
	var out []string
	n := -1
	if len(obs) > 0 {
		n = obs[len(obs)-1]
	}
	for k := range n {
		if !slices.Contains(obs, k) {
			out = append(out, fmt.Sprintf("observation %d missing", k))
		}
		if !slices.Contains(ints, k) {
			out = append(out, fmt.Sprintf("intervention %d missing", k))
		}
	}
	for _, k := range ints {
		if !slices.Contains(obs, k) {
			out = append(out, fmt.Sprintf("intervention %d has no matching observation", k))
		}
	}
	return out
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
