// Package questionnaire holds the static structure of the 68-question
// overexcitability instrument: the domain partition, the answer scale and
// the question catalog.
package questionnaire

import (
	"errors"
	"fmt"
)

// Domain identifies one of the five overexcitability domains.
type Domain string

const (
	Intellectual Domain = "intellectual"
	Emotional    Domain = "emotional"
	Imaginative  Domain = "imaginative"
	Sensory      Domain = "sensory"
	Motor        Domain = "motor"
)

const (
	// QuestionCount is the fixed length of every answer vector.
	QuestionCount = 68
	// MaxAnswerValue is the highest point on the answer scale.
	MaxAnswerValue = 4
)

var domainLabels = map[Domain]string{
	Intellectual: "Intelectual",
	Emotional:    "Emocional",
	Imaginative:  "Imaginativa",
	Sensory:      "Sensorial",
	Motor:        "Motora",
}

// Label returns the Portuguese display name used by the instrument.
func (d Domain) Label() string {
	if label, ok := domainLabels[d]; ok {
		return label
	}
	return string(d)
}

// Valid reports whether d is one of the five known domains.
func (d Domain) Valid() bool {
	_, ok := domainLabels[d]
	return ok
}

// DomainQuestions is one row of the partition: a domain and its 1-based
// question numbers in ascending order.
type DomainQuestions struct {
	Domain    Domain `json:"domain"`
	Questions []int  `json:"questions"`
}

// First returns the lowest question number of the domain.
func (dq DomainQuestions) First() int { return dq.Questions[0] }

// Last returns the highest question number of the domain.
func (dq DomainQuestions) Last() int { return dq.Questions[len(dq.Questions)-1] }

// MaxScore is the highest reachable sum for the domain.
func (dq DomainQuestions) MaxScore() int { return MaxAnswerValue * len(dq.Questions) }

var partition = []DomainQuestions{
	{Domain: Intellectual, Questions: span(1, 16)},
	{Domain: Emotional, Questions: span(17, 32)},
	{Domain: Imaginative, Questions: span(33, 49)},
	{Domain: Sensory, Questions: span(50, 58)},
	{Domain: Motor, Questions: span(59, 68)},
}

func span(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for q := from; q <= to; q++ {
		out = append(out, q)
	}
	return out
}

// Partition returns a copy of the domain partition in instrument order.
func Partition() []DomainQuestions {
	out := make([]DomainQuestions, len(partition))
	for i, dq := range partition {
		out[i] = DomainQuestions{
			Domain:    dq.Domain,
			Questions: append([]int(nil), dq.Questions...),
		}
	}
	return out
}

// Domains returns the five domains in partition order.
func Domains() []Domain {
	out := make([]Domain, len(partition))
	for i, dq := range partition {
		out[i] = dq.Domain
	}
	return out
}

// DomainOf returns the domain that owns question number q.
func DomainOf(q int) (Domain, bool) {
	for _, dq := range partition {
		if q >= dq.First() && q <= dq.Last() {
			return dq.Domain, true
		}
	}
	return "", false
}

// ScalePoint is one allowed answer value with its label.
type ScalePoint struct {
	Value int    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

var scale = []ScalePoint{
	{Value: 0, Label: "Nunca"},
	{Value: 1, Label: "Às vezes"},
	{Value: 3, Label: "Frequentemente"},
	{Value: 4, Label: "Sempre"},
}

// Scale returns the answer scale.
func Scale() []ScalePoint {
	return append([]ScalePoint(nil), scale...)
}

// IsValidAnswer reports whether v is a point on the answer scale.
func IsValidAnswer(v int) bool {
	for _, p := range scale {
		if p.Value == v {
			return true
		}
	}
	return false
}

// ErrInvalidAnswers is wrapped by every ValidateAnswers failure.
var ErrInvalidAnswers = errors.New("invalid answer vector")

// ValidateAnswers checks the shape of a submitted answer vector. Scoring
// itself stays lenient; this is the gate applied at submission time.
func ValidateAnswers(answers []int) error {
	if len(answers) != QuestionCount {
		return fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidAnswers, QuestionCount, len(answers))
	}
	for i, v := range answers {
		if !IsValidAnswer(v) {
			return fmt.Errorf("%w: question %d has value %d, allowed values are 0, 1, 3 and 4", ErrInvalidAnswers, i+1, v)
		}
	}
	return nil
}
