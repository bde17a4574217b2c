// Package agentcard loads an agent's discovery document from disk and
// serves it over HTTP. The on-disk format is YAML, matching this
// module's configuration files; the wire format is the JSON the A2A
// discovery endpoint publishes.
package agentcard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// LoadFile reads and parses an agent card definition from a YAML file.
func LoadFile(path string) (*a2a.AgentCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentcard: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses an agent card definition from YAML bytes, validates it and
// fills in the default input and output modes the file omits. It leaves
// the capabilities as the file states them; WithRuntimeCapabilities sets
// those.
func Load(data []byte) (*a2a.AgentCard, error) {
	var card a2a.AgentCard
	if err := yaml.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("agentcard: parse: %w", err)
	}
	if err := validate(&card); err != nil {
		return nil, err
	}
	return &card, nil
}

func validate(card *a2a.AgentCard) error {
	if card.Name == "" {
		return fmt.Errorf("agentcard: name is required")
	}
	if card.URL == "" {
		return fmt.Errorf("agentcard: url is required")
	}
	if len(card.DefaultInputModes) == 0 {
		card.DefaultInputModes = []string{"text/plain"}
	}
	if len(card.DefaultOutputModes) == 0 {
		card.DefaultOutputModes = []string{"text/plain"}
	}
	return nil
}

// WithRuntimeCapabilities returns a copy of card with Capabilities set to
// reflect what this server build actually supports, overriding whatever
// the static file declared — a card should never advertise a feature
// the running process cannot deliver.
func WithRuntimeCapabilities(card *a2a.AgentCard, streaming, pushNotifications bool) *a2a.AgentCard {
	cp := *card
	cp.Capabilities = a2a.AgentCapabilities{
		Streaming:              streaming,
		PushNotifications:      pushNotifications,
		StateTransitionHistory: true,
	}
	return &cp
}
