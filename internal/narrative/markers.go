package narrative

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Section bounds one extracted block of the generated report. An empty End
// means the section runs to the end of the text.
type Section struct {
	Start         string `yaml:"start" json:"start"`
	End           string `yaml:"end,omitempty" json:"end,omitempty"`
	Fallback      string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	FallbackToRaw bool   `yaml:"fallback_to_raw,omitempty" json:"fallback_to_raw,omitempty"`
}

// CategoryRule matches when every phrase in AllOf occurs in the text.
type CategoryRule struct {
	Label string   `yaml:"label" json:"label"`
	AllOf []string `yaml:"all_of" json:"all_of"`
}

// ConfidenceLabels are the display names stored for each confidence level.
type ConfidenceLabels struct {
	High     string `yaml:"high" json:"high"`
	Moderate string `yaml:"moderate" json:"moderate"`
	Low      string `yaml:"low" json:"low"`
}

// MarkerSet is the versioned vocabulary the parser searches for. It must
// follow the wording of the prompt template it was written against.
type MarkerSet struct {
	Version            string           `yaml:"version" json:"version"`
	Analysis           Section          `yaml:"analysis" json:"analysis"`
	Diagnosis          Section          `yaml:"diagnosis" json:"diagnosis"`
	Recommendations    Section          `yaml:"recommendations" json:"recommendations"`
	ConfidenceHigh     []string         `yaml:"confidence_high" json:"confidence_high"`
	ConfidenceModerate []string         `yaml:"confidence_moderate" json:"confidence_moderate"`
	ConfidenceLabels   ConfidenceLabels `yaml:"confidence_labels" json:"confidence_labels"`
	Categories         []CategoryRule   `yaml:"categories" json:"categories"`
	DefaultCategory    string           `yaml:"default_category" json:"default_category"`
}

var ErrInvalidMarkers = errors.New("invalid marker set")

// Validate rejects marker sets that could never extract anything.
func (m MarkerSet) Validate() error {
	switch {
	case m.Version == "":
		return fmt.Errorf("%w: version is required", ErrInvalidMarkers)
	case m.Analysis.Start == "":
		return fmt.Errorf("%w: analysis.start is required", ErrInvalidMarkers)
	case m.Diagnosis.Start == "":
		return fmt.Errorf("%w: diagnosis.start is required", ErrInvalidMarkers)
	case m.Recommendations.Start == "":
		return fmt.Errorf("%w: recommendations.start is required", ErrInvalidMarkers)
	case m.DefaultCategory == "":
		return fmt.Errorf("%w: default_category is required", ErrInvalidMarkers)
	}

	for i, rule := range m.Categories {
		if rule.Label == "" || len(rule.AllOf) == 0 {
			return fmt.Errorf("%w: category rule %d needs a label and at least one phrase", ErrInvalidMarkers, i)
		}
	}
	return nil
}

// CategoryLabels lists every label the set can produce, default last.
func (m MarkerSet) CategoryLabels() []string {
	out := make([]string, 0, len(m.Categories)+1)
	for _, rule := range m.Categories {
		out = append(out, rule.Label)
	}
	return append(out, m.DefaultCategory)
}

// ParseMarkerSet decodes and validates a YAML marker set.
func ParseMarkerSet(data []byte) (MarkerSet, error) {
	var m MarkerSet
	if err := yaml.Unmarshal(data, &m); err != nil {
		return MarkerSet{}, fmt.Errorf("failed to decode marker set: %w", err)
	}
	if err := m.Validate(); err != nil {
		return MarkerSet{}, err
	}
	return m, nil
}

// LoadMarkerFile reads a marker set from disk, for wording changes that
// ship ahead of a new built-in profile.
func LoadMarkerFile(path string) (MarkerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MarkerSet{}, fmt.Errorf("failed to read marker file: %w", err)
	}
	return ParseMarkerSet(data)
}
