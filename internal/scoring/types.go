package scoring

import (
	"math"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
)

// Classification is the categorical band of a domain percentage.
type Classification string

const (
	Weak     Classification = "weak"
	Moderate Classification = "moderate"
	High     Classification = "high"
)

var classificationLabels = map[Classification]string{
	Weak:     "Fraco",
	Moderate: "Moderado",
	High:     "Alto",
}

// Label returns the Portuguese band name used in prompts and reports.
func (c Classification) Label() string {
	if label, ok := classificationLabels[c]; ok {
		return label
	}
	return string(c)
}

type DomainScore struct {
	Domain         questionnaire.Domain `json:"domain"`
	Questions      []int                `json:"questions"`
	Score          int                  `json:"score"`
	MaxScore       int                  `json:"max_score"`
	Percentage     float64              `json:"percentage"`
	Classification Classification       `json:"classification"`
}

// RoundedPercentage is the storage form of the percentage.
func (ds DomainScore) RoundedPercentage() int {
	return int(math.Round(ds.Percentage))
}

// Result holds one DomainScore per domain, in partition order.
type Result struct {
	Domains []DomainScore `json:"domains"`
}

// Domain looks up the score of d.
func (r Result) Domain(d questionnaire.Domain) (DomainScore, bool) {
	for _, ds := range r.Domains {
		if ds.Domain == d {
			return ds, true
		}
	}
	return DomainScore{}, false
}

// RoundedPercentages maps every domain to its rounded percentage.
func (r Result) RoundedPercentages() map[questionnaire.Domain]int {
	out := make(map[questionnaire.Domain]int, len(r.Domains))
	for _, ds := range r.Domains {
		out[ds.Domain] = ds.RoundedPercentage()
	}
	return out
}
