// Package sim runs the toy signal-propagation model that animates a
// sandbox circuit: a pulse spreads breadth-first from stimulated neurons
// along directed connections, weakening at each hop, and the pattern of
// fired neurons is classified into a worm behavior. This is a teaching
// heuristic, not a biophysical neuron model.
package sim

import "neuroquest/internal/models"

const (
	// hop attenuation and firing threshold chosen so an unbranched
	// pulse dies out after four hops
	attenuation = 0.7
	threshold   = 0.2
	maxSteps    = 12
)

// Behavior labels the worm's reaction to a stimulated circuit.
type Behavior string

const (
	BehaviorQuiescent    Behavior = "quiescent"
	BehaviorTwitch       Behavior = "twitch"
	BehaviorForwardCrawl Behavior = "forward-crawl"
	BehaviorFullBodyWave Behavior = "full-body-wave"
)

// Result describes one propagation run.
type Result struct {
	// Steps lists the neuron ids that fired at each step; step 0 is the
	// stimulated set.
	Steps [][]string `json:"steps"`
	// Fired is every neuron that fired, in firing order.
	Fired []string `json:"fired"`
	// Behavior is the classification of the run.
	Behavior Behavior `json:"behavior"`
}

// Propagate runs the pulse over the circuit. Unknown stimulated ids are
// ignored; a neuron fires at most once; cycles are harmless because the
// run is capped at maxSteps. The walk visits neurons in list order, so
// results are deterministic for a given circuit.
func Propagate(neurons []models.Neuron, stimulated []string) Result {
	byID := make(map[string]*models.Neuron, len(neurons))
	for i := range neurons {
		byID[neurons[i].ID] = &neurons[i]
	}

	fired := make(map[string]bool, len(neurons))
	var order []string
	var steps [][]string

	// step 0: the stimulated set, full strength
	type pulse struct {
		id       string
		strength float64
	}
	var frontier []pulse
	var step0 []string
	for _, id := range stimulated {
		if _, ok := byID[id]; !ok || fired[id] {
			continue
		}
		fired[id] = true
		order = append(order, id)
		step0 = append(step0, id)
		frontier = append(frontier, pulse{id: id, strength: 1.0})
	}
	if len(step0) > 0 {
		steps = append(steps, step0)
	}

	for step := 1; step <= maxSteps && len(frontier) > 0; step++ {
		// accumulate incoming strength per target before thresholding,
		// so convergent weak inputs can still fire a neuron
		incoming := make(map[string]float64)
		for _, p := range frontier {
			for _, target := range byID[p.id].Connections {
				if _, ok := byID[target]; !ok || fired[target] {
					continue
				}
				incoming[target] += p.strength * attenuation
			}
		}

		frontier = frontier[:0]
		var stepFired []string
		for _, n := range neurons {
			strength, ok := incoming[n.ID]
			if !ok || strength < threshold {
				continue
			}
			fired[n.ID] = true
			order = append(order, n.ID)
			stepFired = append(stepFired, n.ID)
			frontier = append(frontier, pulse{id: n.ID, strength: strength})
		}
		if len(stepFired) == 0 {
			break
		}
		steps = append(steps, stepFired)
	}

	return Result{
		Steps:    steps,
		Fired:    order,
		Behavior: classify(len(neurons), len(order)),
	}
}

// classify maps the fraction of the circuit that fired onto a behavior:
// a handful of firing neurons reads as a twitch, a majority as
// coordinated movement.
func classify(total, firedCount int) Behavior {
	if total == 0 || firedCount == 0 {
		return BehaviorQuiescent
	}
	ratio := float64(firedCount) / float64(total)
	switch {
	case ratio < 0.34:
		return BehaviorTwitch
	case ratio < 0.75:
		return BehaviorForwardCrawl
	default:
		return BehaviorFullBodyWave
	}
}
