package entity

import (
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// Settings are the operator-tunable knobs consulted on every run.
type Settings struct {
	AutoApproveThreshold float64             `json:"auto_approve_threshold" yaml:"auto_approve_threshold"`
	MaterialSynonyms     map[string][]string `json:"material_synonyms" yaml:"material_synonyms"`
	DefaultReceiver      string              `json:"default_receiver" yaml:"default_receiver"`
	CustomInstructions   string              `json:"custom_instructions,omitempty" yaml:"custom_instructions"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	syn := make(map[string][]string, len(constants.DefaultMaterialSynonyms))
	for k, v := range constants.DefaultMaterialSynonyms {
		syn[k] = append([]string(nil), v...)
	}
	return Settings{
		AutoApproveThreshold: 80,
		MaterialSynonyms:     syn,
		DefaultReceiver:      constants.DefaultReceiver,
	}
}

// WithDefaults fills zero values from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.AutoApproveThreshold <= 0 {
		s.AutoApproveThreshold = d.AutoApproveThreshold
	}
	if len(s.MaterialSynonyms) == 0 {
		s.MaterialSynonyms = d.MaterialSynonyms
	}
	if s.DefaultReceiver == "" {
		s.DefaultReceiver = d.DefaultReceiver
	}
	return s
}

// Threshold bounds accepted when the auto-approve threshold is changed.
const (
	MinAutoApproveThreshold = 60
	MaxAutoApproveThreshold = 99
)

// ValidThreshold reports whether t is an accepted auto-approve threshold.
func ValidThreshold(t float64) bool {
	return t >= MinAutoApproveThreshold && t <= MaxAutoApproveThreshold
}

// Clone deep-copies the synonym map.
func (s Settings) Clone() Settings {
	out := s
	out.MaterialSynonyms = make(map[string][]string, len(s.MaterialSynonyms))
	for k, v := range s.MaterialSynonyms {
		out.MaterialSynonyms[k] = append([]string(nil), v...)
	}
	return out
}

// AddSynonym appends synonym to category, creating the category when missing. Duplicates are ignored.
func (s *Settings) AddSynonym(category, synonym string) {
	if s.MaterialSynonyms == nil {
		s.MaterialSynonyms = map[string][]string{}
	}
	for _, existing := range s.MaterialSynonyms[category] {
		if existing == synonym {
			return
		}
	}
	s.MaterialSynonyms[category] = append(s.MaterialSynonyms[category], synonym)
}

func (s *Settings) RemoveSynonym(category, synonym string) {
	list, ok := s.MaterialSynonyms[category]
	if !ok {
		return
	}
	kept := list[:0:0]
	for _, existing := range list {
		if existing != synonym {
			kept = append(kept, existing)
		}
	}
	s.MaterialSynonyms[category] = kept
}

func (s *Settings) AddCategory(category string) {
	if s.MaterialSynonyms == nil {
		s.MaterialSynonyms = map[string][]string{}
	}
	if _, ok := s.MaterialSynonyms[category]; !ok {
		s.MaterialSynonyms[category] = []string{}
	}
}

func (s *Settings) RemoveCategory(category string) {
	delete(s.MaterialSynonyms, category)
}

// ParseSettingsYAML reads settings from YAML; omitted keys take their defaults.
func ParseSettingsYAML(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	return s.WithDefaults(), nil
}
