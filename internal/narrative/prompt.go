// Package narrative builds the prompt sent to the text-generation service
// and parses its free-text answer back into report fields.
package narrative

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/scoring"
)

// Format selects between free-text and JSON responses.
type Format string

const (
	FormatText       Format = "text"
	FormatStructured Format = "structured"
)

// absentAnswer marks a position the answer vector does not reach.
const absentAnswer = "-"

// PatientMeta is the optional patient context rendered into the prompt.
type PatientMeta struct {
	Name        string
	Age         *int
	EvaluatedAt *time.Time
}

// Prompt is the system/user message pair for the generation service.
type Prompt struct {
	Version    string `json:"version"`
	Structured bool   `json:"structured"`
	System     string `json:"system"`
	User       string `json:"user"`
}

type Builder struct {
	profile *Profile
	format  Format
}

func NewBuilder(profile *Profile, format Format) *Builder {
	if format == "" {
		format = FormatText
	}
	return &Builder{profile: profile, format: format}
}

// Profile returns the profile the builder renders with.
func (b *Builder) Profile() *Profile { return b.profile }

// Format returns the response format the builder asks for.
func (b *Builder) Format() Format { return b.format }

type promptDomain struct {
	Key            string
	Label          string
	Questions      string
	Answers        string
	First, Last    int
	Score          int
	Percentage     string
	Classification string
}

type promptData struct {
	PatientName    string
	PatientAge     string
	EvaluationDate string
	QuestionCount  int
	Scale          string
	Domains        []promptDomain
}

type structuredData struct {
	ConfidenceLevels string
	Categories       string
}

func renderAnswer(answers []int, q int) string {
	if q < 1 || q > len(answers) {
		return absentAnswer
	}
	return strconv.Itoa(answers[q-1])
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func renderScale() string {
	points := questionnaire.Scale()
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%d = %s", p.Value, p.Label)
	}
	return strings.Join(parts, " | ")
}

func quoteAll(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Quote(v)
	}
	return strings.Join(parts, ", ")
}

func newPromptData(answers []int, res scoring.Result, meta PatientMeta) promptData {
	data := promptData{
		PatientName:   strings.TrimSpace(meta.Name),
		QuestionCount: questionnaire.QuestionCount,
		Scale:         renderScale(),
		Domains:       make([]promptDomain, 0, len(res.Domains)),
	}
	if meta.Age != nil && *meta.Age > 0 {
		data.PatientAge = strconv.Itoa(*meta.Age)
	}
	if meta.EvaluatedAt != nil && !meta.EvaluatedAt.IsZero() {
		data.EvaluationDate = meta.EvaluatedAt.Format("02/01/2006")
	}

	for _, ds := range res.Domains {
		if len(ds.Questions) == 0 {
			continue
		}
		rendered := make([]string, len(ds.Questions))
		for i, q := range ds.Questions {
			rendered[i] = renderAnswer(answers, q)
		}
		data.Domains = append(data.Domains, promptDomain{
			Key:            strings.ToUpper(string(ds.Domain)),
			Label:          ds.Domain.Label(),
			Questions:      joinInts(ds.Questions),
			Answers:        strings.Join(rendered, ", "),
			First:          ds.Questions[0],
			Last:           ds.Questions[len(ds.Questions)-1],
			Score:          ds.Score,
			Percentage:     strconv.FormatFloat(ds.Percentage, 'f', 1, 64),
			Classification: ds.Classification.Label(),
		})
	}
	return data
}

// Build renders the two messages. Every domain of res is rendered with its
// full question/answer list.
func (b *Builder) Build(answers []int, res scoring.Result, meta PatientMeta) (Prompt, error) {
	var sys, user bytes.Buffer

	if err := b.profile.system.Execute(&sys, nil); err != nil {
		return Prompt{}, fmt.Errorf("failed to render system prompt: %w", err)
	}
	if err := b.profile.user.Execute(&user, newPromptData(answers, res, meta)); err != nil {
		return Prompt{}, fmt.Errorf("failed to render user prompt: %w", err)
	}

	structured := b.format == FormatStructured
	if structured {
		labels := b.profile.Markers.ConfidenceLabels
		err := b.profile.structured.Execute(&user, structuredData{
			ConfidenceLevels: quoteAll([]string{labels.High, labels.Moderate, labels.Low}),
			Categories:       quoteAll(b.profile.Markers.CategoryLabels()),
		})
		if err != nil {
			return Prompt{}, fmt.Errorf("failed to render response format: %w", err)
		}
	}

	return Prompt{
		Version:    b.profile.Version,
		Structured: structured,
		System:     strings.TrimSpace(sys.String()),
		User:       strings.TrimSpace(user.String()),
	}, nil
}
