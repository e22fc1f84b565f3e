// Package names generates the human-readable labels the sandbox hands
// out: participant display names, cursor colors, and room identifiers.
// Every generator takes an explicit *rand.Rand so callers seed once per
// session and tests stay deterministic; nothing here keeps state.
package names

import (
	"fmt"
	"math/rand"
	"strings"
)

// Palette is the fixed set of cursor/highlight colors. The first entry
// doubles as the fallback for participants that never published a color.
var Palette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#06b6d4", // cyan
	"#3b82f6", // blue
	"#8b5cf6", // violet
	"#ec4899", // pink
}

var adjectives = []string{
	"Curious", "Brave", "Gentle", "Rapid", "Quiet", "Vivid",
	"Patient", "Restless", "Lucid", "Nimble", "Steady", "Bright",
}

var nouns = []string{
	"Axon", "Dendrite", "Synapse", "Soma", "Ganglion", "Interneuron",
	"Myelin", "Cortex", "Nematode", "Vesicle", "Receptor", "Neurite",
}

// PickRandom returns a uniformly random element of list.
func PickRandom[T any](list []T, rng *rand.Rand) T {
	return list[rng.Intn(len(list))]
}

// DisplayName produces an adjective+noun participant label such as
// "Curious Axon". Labels are not unique; identity disambiguates.
func DisplayName(rng *rand.Rand) string {
	return PickRandom(adjectives, rng) + " " + PickRandom(nouns, rng)
}

// CursorColor picks a session color from the palette.
func CursorColor(rng *rand.Rand) string {
	return PickRandom(Palette, rng)
}

// DefaultColor is assigned to participants whose presence record carried
// no color.
func DefaultColor() string {
	return Palette[0]
}

// RoomID mints a freeform, human-readable room identifier, e.g.
// "brave-ganglion-41". Uniqueness is probabilistic; rooms are namespaces,
// not resources, so a collision just means sharing a sandbox.
func RoomID(rng *rand.Rand) string {
	return fmt.Sprintf("%s-%s-%02d",
		strings.ToLower(PickRandom(adjectives, rng)),
		strings.ToLower(PickRandom(nouns, rng)),
		rng.Intn(100),
	)
}
