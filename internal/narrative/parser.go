package narrative

import (
	"encoding/json"
	"strings"
)

// Confidence is the level the generated report states for its conclusion.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
)

// Result is the set of report fields extracted from one generated text.
type Result struct {
	ClinicalAnalysis string     `json:"clinical_analysis"`
	Diagnosis        string     `json:"diagnosis"`
	Recommendations  string     `json:"recommendations"`
	Confidence       Confidence `json:"confidence"`
	ConfidenceLabel  string     `json:"confidence_label"`
	GiftednessType   string     `json:"giftedness_type"`
	MarkerVersion    string     `json:"marker_version"`
	Structured       bool       `json:"structured"`
}

// Parser extracts report fields. It never fails: every field has a
// fallback when the text lacks the expected structure.
type Parser struct {
	markers MarkerSet
}

func NewParser(markers MarkerSet) *Parser {
	return &Parser{markers: markers}
}

// Markers returns the marker set in use.
func (p *Parser) Markers() MarkerSet { return p.markers }

// extractSection returns the trimmed text between the section markers. The
// start marker itself is excluded. A missing start marker, or an empty
// section, yields the fallback.
func extractSection(text string, s Section) string {
	fallback := s.Fallback
	if s.FallbackToRaw {
		fallback = text
	}

	start := strings.Index(text, s.Start)
	if start < 0 {
		return fallback
	}
	rest := text[start+len(s.Start):]

	if s.End != "" {
		if end := strings.Index(rest, s.End); end >= 0 {
			rest = rest[:end]
		}
	}

	if content := strings.TrimSpace(rest); content != "" {
		return content
	}
	return fallback
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func containsAll(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if !strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

func (p *Parser) confidence(text string) Confidence {
	switch {
	case containsAny(text, p.markers.ConfidenceHigh):
		return ConfidenceHigh
	case containsAny(text, p.markers.ConfidenceModerate):
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// ConfidenceLabel returns the display name of c in the marker set language.
func (p *Parser) ConfidenceLabel(c Confidence) string {
	labels := p.markers.ConfidenceLabels
	switch c {
	case ConfidenceHigh:
		return labels.High
	case ConfidenceModerate:
		return labels.Moderate
	default:
		return labels.Low
	}
}

// category walks the rules in order; the first full match wins.
func (p *Parser) category(text string) string {
	for _, rule := range p.markers.Categories {
		if containsAll(text, rule.AllOf) {
			return rule.Label
		}
	}
	return p.markers.DefaultCategory
}

// Parse extracts the report fields from raw. A JSON object in the expected
// shape is read directly; anything else goes through marker extraction.
func (p *Parser) Parse(raw string) Result {
	if res, ok := p.parseStructured(raw); ok {
		return res
	}
	return p.parseMarkers(raw)
}

func (p *Parser) parseMarkers(raw string) Result {
	conf := p.confidence(raw)
	return Result{
		ClinicalAnalysis: extractSection(raw, p.markers.Analysis),
		Diagnosis:        extractSection(raw, p.markers.Diagnosis),
		Recommendations:  extractSection(raw, p.markers.Recommendations),
		Confidence:       conf,
		ConfidenceLabel:  p.ConfidenceLabel(conf),
		GiftednessType:   p.category(raw),
		MarkerVersion:    p.markers.Version,
	}
}

type structuredResponse struct {
	ClinicalAnalysis string `json:"clinical_analysis"`
	Diagnosis        string `json:"diagnosis"`
	Recommendations  string `json:"recommendations"`
	ConfidenceLevel  string `json:"confidence_level"`
	GiftednessType   string `json:"giftedness_type"`
	Report           string `json:"report"`
}

// jsonObject cuts the outermost {...} out of raw, which tolerates code
// fences and stray prose around the object.
func jsonObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func (p *Parser) confidenceFromLabel(label string) (Confidence, bool) {
	label = strings.TrimSpace(label)
	labels := p.markers.ConfidenceLabels
	switch {
	case label == "":
		return "", false
	case strings.EqualFold(label, labels.High), strings.EqualFold(label, string(ConfidenceHigh)):
		return ConfidenceHigh, true
	case strings.EqualFold(label, labels.Moderate), strings.EqualFold(label, string(ConfidenceModerate)):
		return ConfidenceModerate, true
	case strings.EqualFold(label, labels.Low), strings.EqualFold(label, string(ConfidenceLow)):
		return ConfidenceLow, true
	}
	return "", false
}

func (p *Parser) knownCategory(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, known := range p.markers.CategoryLabels() {
		if strings.EqualFold(label, known) {
			return known, true
		}
	}
	return "", false
}

// parseStructured reads the JSON response format. Fields the object leaves
// empty or out of vocabulary are taken from marker extraction over the
// report text instead.
func (p *Parser) parseStructured(raw string) (Result, bool) {
	obj, ok := jsonObject(raw)
	if !ok {
		return Result{}, false
	}

	var sr structuredResponse
	if err := json.Unmarshal([]byte(obj), &sr); err != nil {
		return Result{}, false
	}
	if sr.ClinicalAnalysis == "" && sr.Diagnosis == "" && sr.Recommendations == "" && sr.Report == "" {
		return Result{}, false
	}

	text := sr.Report
	if text == "" {
		text = strings.Join([]string{sr.ClinicalAnalysis, sr.Diagnosis, sr.Recommendations}, "\n\n")
	}
	res := p.parseMarkers(text)
	res.Structured = true

	if v := strings.TrimSpace(sr.ClinicalAnalysis); v != "" {
		res.ClinicalAnalysis = v
	}
	if v := strings.TrimSpace(sr.Diagnosis); v != "" {
		res.Diagnosis = v
	}
	if v := strings.TrimSpace(sr.Recommendations); v != "" {
		res.Recommendations = v
	}
	if c, ok := p.confidenceFromLabel(sr.ConfidenceLevel); ok {
		res.Confidence = c
		res.ConfidenceLabel = p.ConfidenceLabel(c)
	}
	if category, ok := p.knownCategory(sr.GiftednessType); ok {
		res.GiftednessType = category
	}
	return res, true
}
