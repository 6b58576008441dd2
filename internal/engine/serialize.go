package engine

import "encoding/json"

// ToJSON serializes the full engine state for persistence under
// engine:{code} in the KV store.
func (g *GameEngine) ToJSON() ([]byte, error) {
	return json.Marshal(g)
}

// FromJSON rehydrates an engine from its persisted JSON. Callers must
// call SetRNG before invoking any operation that shuffles a deck — a
// rehydrated engine carries no RNG, by design, since the entropy source
// is a process-local resource, not state.
func FromJSON(data []byte) (*GameEngine, error) {
	var g GameEngine
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
