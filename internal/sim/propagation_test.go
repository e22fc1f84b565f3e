package sim

import (
	"testing"

	"neuroquest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func circuit(links map[string][]string, ids ...string) []models.Neuron {
	neurons := make([]models.Neuron, 0, len(ids))
	for _, id := range ids {
		neurons = append(neurons, models.Neuron{ID: id, Connections: links[id]})
	}
	return neurons
}

func TestPropagateChain(t *testing.T) {
	neurons := circuit(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
	}, "a", "b", "c", "d")

	result := Propagate(neurons, []string{"a"})

	assert.Equal(t, []string{"a", "b", "c", "d"}, result.Fired)
	require.Len(t, result.Steps, 4)
	assert.Equal(t, []string{"a"}, result.Steps[0])
	assert.Equal(t, []string{"d"}, result.Steps[3])
	assert.Equal(t, BehaviorFullBodyWave, result.Behavior)
}

func TestPropagateAttenuationStopsLongChains(t *testing.T) {
	// a ten-hop chain: the pulse drops below threshold well before the end
	links := map[string][]string{}
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"}
	for i := 0; i < len(ids)-1; i++ {
		links[ids[i]] = []string{ids[i+1]}
	}

	result := Propagate(circuit(links, ids...), []string{"n0"})

	assert.Less(t, len(result.Fired), len(ids))
	assert.Greater(t, len(result.Fired), 1)
}

func TestPropagateCycleTerminates(t *testing.T) {
	neurons := circuit(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}, "a", "b", "c")

	result := Propagate(neurons, []string{"a"})

	// each neuron fires at most once, so a cycle cannot loop
	assert.Equal(t, []string{"a", "b", "c"}, result.Fired)
}

func TestPropagateConvergentInputsAccumulate(t *testing.T) {
	// d receives two attenuated inputs that individually could still
	// fire it; the point is they are summed, not raced
	neurons := circuit(map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
	}, "a", "b", "c", "d")

	result := Propagate(neurons, []string{"a"})

	assert.Contains(t, result.Fired, "d")
	require.Len(t, result.Steps, 3)
	assert.Equal(t, []string{"b", "c"}, result.Steps[1])
}

func TestPropagateNoStimulus(t *testing.T) {
	neurons := circuit(map[string][]string{"a": {"b"}}, "a", "b")

	result := Propagate(neurons, nil)

	assert.Empty(t, result.Fired)
	assert.Empty(t, result.Steps)
	assert.Equal(t, BehaviorQuiescent, result.Behavior)
}

func TestPropagateUnknownStimulusIgnored(t *testing.T) {
	neurons := circuit(map[string][]string{}, "a")

	result := Propagate(neurons, []string{"ghost"})

	assert.Empty(t, result.Fired)
	assert.Equal(t, BehaviorQuiescent, result.Behavior)
}

func TestPropagateDanglingConnection(t *testing.T) {
	// links to removed neurons are tolerated, mirroring how the sandbox
	// leaves connections behind when a target node is deleted
	neurons := circuit(map[string][]string{"a": {"gone", "b"}}, "a", "b")

	result := Propagate(neurons, []string{"a"})

	assert.Equal(t, []string{"a", "b"}, result.Fired)
}

func TestClassifyBands(t *testing.T) {
	assert.Equal(t, BehaviorQuiescent, classify(0, 0))
	assert.Equal(t, BehaviorQuiescent, classify(10, 0))
	assert.Equal(t, BehaviorTwitch, classify(10, 3))
	assert.Equal(t, BehaviorForwardCrawl, classify(10, 5))
	assert.Equal(t, BehaviorFullBodyWave, classify(10, 8))
}
