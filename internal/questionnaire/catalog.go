package questionnaire

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Question is one catalog entry.
type Question struct {
	Number int    `json:"number" yaml:"number"`
	Domain Domain `json:"domain" yaml:"domain"`
	Text   string `json:"text" yaml:"text"`
}

// Catalog is the versioned set of question texts shown to patients.
type Catalog struct {
	Version   string       `json:"version" yaml:"version"`
	Title     string       `json:"title" yaml:"title"`
	Questions []Question   `json:"questions" yaml:"questions"`
	Scale     []ScalePoint `json:"scale" yaml:"-"`
}

// ParseCatalog decodes a YAML catalog and checks it against the partition.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.Scale = Scale()
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Questions) != QuestionCount {
		return fmt.Errorf("catalog %q has %d questions, expected %d", c.Version, len(c.Questions), QuestionCount)
	}

	seen := make(map[int]bool, QuestionCount)
	for _, q := range c.Questions {
		if seen[q.Number] {
			return fmt.Errorf("catalog %q lists question %d twice", c.Version, q.Number)
		}
		seen[q.Number] = true

		want, ok := DomainOf(q.Number)
		if !ok {
			return fmt.Errorf("catalog %q has out of range question %d", c.Version, q.Number)
		}
		if q.Domain != want {
			return fmt.Errorf("catalog %q places question %d in %s, partition says %s", c.Version, q.Number, q.Domain, want)
		}
	}
	return nil
}

// ByDomain returns the catalog questions of d in ascending order.
func (c *Catalog) ByDomain(d Domain) []Question {
	out := make([]Question, 0, 17)
	for _, q := range c.Questions {
		if q.Domain == d {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// DefaultCatalog returns the embedded pt-BR catalog.
func DefaultCatalog() (*Catalog, error) {
	return loadDefault()
}
