// Package scoring turns a 68-answer vector into per-domain sums,
// percentages and classification bands.
package scoring

import "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"

var (
	moderateThreshold = 50.0
	highThreshold     = 70.0
)

// Classify maps a percentage to its band. Bounds are inclusive on the low
// side: exactly 50 is Moderate and exactly 70 is High.
func Classify(percentage float64) Classification {
	switch {
	case percentage < moderateThreshold:
		return Weak
	case percentage < highThreshold:
		return Moderate
	default:
		return High
	}
}

// answerAt returns the value of 1-based question q, or 0 when the vector
// does not reach it.
func answerAt(answers []int, q int) int {
	i := q - 1
	if i < 0 || i >= len(answers) {
		return 0
	}
	return answers[i]
}

func sumQuestions(answers []int, questions []int) int {
	s := 0
	for _, q := range questions {
		s += answerAt(answers, q)
	}
	return s
}

// percentage normalises by the top of the scale times the domain size.
func percentage(score, size int) float64 {
	return float64(score) / float64(questionnaire.MaxAnswerValue*size) * 100
}

// Score computes every domain of the partition. Values are summed as given:
// nothing is range checked and short vectors score 0 for missing positions.
func Score(answers []int) Result {
	partition := questionnaire.Partition()
	res := Result{Domains: make([]DomainScore, 0, len(partition))}

	for _, dq := range partition {
		score := sumQuestions(answers, dq.Questions)
		pct := percentage(score, len(dq.Questions))
		res.Domains = append(res.Domains, DomainScore{
			Domain:         dq.Domain,
			Questions:      dq.Questions,
			Score:          score,
			MaxScore:       dq.MaxScore(),
			Percentage:     pct,
			Classification: Classify(pct),
		})
	}

	return res
}
