package narrative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(defaultProfile(t).Markers)
}

const sampleReport = `1. EXTRAÇÃO PRECISA DE DADOS
Tabela de respostas.

2. INTERPRETAÇÃO CLÍNICA POR DOMÍNIO
Intelectual elevado, com curiosidade marcante.

3. ANÁLISE DO PERFIL MULTIDIMENSIONAL
Padrão heterogêneo.

5. DIAGNÓSTICO FINAL
Presença de altas habilidades. Alta confiança. Perfil Superdotado Criativo.

7. RECOMENDAÇÕES CLÍNICAS
Avaliação de QI complementar.`

func TestParseMarkerSections(t *testing.T) {
	res := defaultParser(t).Parse(sampleReport)

	assert.Equal(t, "POR DOMÍNIO\nIntelectual elevado, com curiosidade marcante.\n\n3.", res.ClinicalAnalysis)
	assert.Equal(t, "Presença de altas habilidades. Alta confiança. Perfil Superdotado Criativo.\n\n7.", res.Diagnosis)
	assert.Equal(t, "Avaliação de QI complementar.", res.Recommendations)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, "Alta", res.ConfidenceLabel)
	// Heading text is upper case, so only the diagnosis wording matches.
	assert.Equal(t, "Superdotado Criativo", res.GiftednessType)
	assert.Equal(t, DefaultVersion, res.MarkerVersion)
	assert.False(t, res.Structured)
}

func TestParseFallbacks(t *testing.T) {
	raw := "Texto livre sem nenhuma das seções esperadas."
	res := defaultParser(t).Parse(raw)

	assert.Equal(t, raw, res.ClinicalAnalysis)
	assert.Equal(t, "Análise em andamento", res.Diagnosis)
	assert.Equal(t, "Recomendações serão fornecidas após análise completa", res.Recommendations)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, "Baixa", res.ConfidenceLabel)
	assert.Equal(t, "Padrão de Superdotação Detectado", res.GiftednessType)
}

func TestParseEmptyText(t *testing.T) {
	res := defaultParser(t).Parse("")

	assert.Equal(t, "", res.ClinicalAnalysis)
	assert.Equal(t, "Análise em andamento", res.Diagnosis)
	assert.Equal(t, ConfidenceLow, res.Confidence)
}

func TestExtractSection(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		section  Section
		expected string
	}{
		{
			name:     "bounded by end marker",
			text:     "A START middle END tail",
			section:  Section{Start: "START", End: "END", Fallback: "fb"},
			expected: "middle",
		},
		{
			name:     "runs to end of text without end marker",
			text:     "A START middle and tail  ",
			section:  Section{Start: "START", End: "END", Fallback: "fb"},
			expected: "middle and tail",
		},
		{
			name:     "no end configured",
			text:     "START everything",
			section:  Section{Start: "START", Fallback: "fb"},
			expected: "everything",
		},
		{
			name:     "missing start uses fallback",
			text:     "nothing here",
			section:  Section{Start: "START", Fallback: "fb"},
			expected: "fb",
		},
		{
			name:     "missing start falls back to raw",
			text:     "nothing here",
			section:  Section{Start: "START", FallbackToRaw: true},
			expected: "nothing here",
		},
		{
			name:     "empty section uses fallback",
			text:     "START   END",
			section:  Section{Start: "START", End: "END", Fallback: "fb"},
			expected: "fb",
		},
		{
			name:     "end marker before start is ignored",
			text:     "END x START content",
			section:  Section{Start: "START", End: "END", Fallback: "fb"},
			expected: "content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractSection(tt.text, tt.section))
		})
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Confidence
	}{
		{name: "high phrase", text: "Diagnóstico com Alta confiança.", expected: ConfidenceHigh},
		{name: "inverted high phrase", text: "Nível de confiança alta.", expected: ConfidenceHigh},
		{name: "high wins over moderate", text: "Moderada em parte, mas Alta confiança.", expected: ConfidenceHigh},
		{name: "capitalised moderate", text: "Confiança: Moderada", expected: ConfidenceModerate},
		{name: "lowercase moderate", text: "evidência moderada", expected: ConfidenceModerate},
		{name: "matching is case sensitive", text: "ALTA CONFIANÇA", expected: ConfidenceLow},
		{name: "nothing recognised", text: "Confiança baixa.", expected: ConfidenceLow},
	}

	p := defaultParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Parse(tt.text).Confidence)
		})
	}
}

func TestParseCategoryPriority(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "multidimensional beats creative", text: "perfil Criativo e Multidimensional", expected: "Superdotado Multidimensional"},
		{name: "creative", text: "perfil Criativo", expected: "Superdotado Criativo"},
		{name: "creative beats emotional pair", text: "Criativo, Emocional e Sensível", expected: "Superdotado Criativo"},
		{name: "emotional needs sensitive too", text: "perfil Emocional apenas", expected: "Padrão de Superdotação Detectado"},
		{name: "emotional and sensitive", text: "perfil Emocional e Sensível", expected: "Superdotado Emocional/Sensível"},
		{name: "pure intellectual", text: "Intelectual Puro", expected: "Superdotado Intelectual Puro"},
		{name: "motor", text: "predominância Motora", expected: "Superdotado Motora"},
		{name: "default", text: "sem classificação", expected: "Padrão de Superdotação Detectado"},
	}

	p := defaultParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Parse(tt.text).GiftednessType)
		})
	}
}

func TestParseStructured(t *testing.T) {
	raw := "```json\n" + `{
  "clinical_analysis": "Intelectual elevado.",
  "diagnosis": "Altas habilidades presentes.",
  "recommendations": "Avaliação de QI.",
  "confidence_level": "Moderada",
  "giftedness_type": "superdotado criativo",
  "report": "Relatório completo."
}` + "\n```"

	res := defaultParser(t).Parse(raw)

	assert.True(t, res.Structured)
	assert.Equal(t, "Intelectual elevado.", res.ClinicalAnalysis)
	assert.Equal(t, "Altas habilidades presentes.", res.Diagnosis)
	assert.Equal(t, "Avaliação de QI.", res.Recommendations)
	assert.Equal(t, ConfidenceModerate, res.Confidence)
	assert.Equal(t, "Moderada", res.ConfidenceLabel)
	assert.Equal(t, "Superdotado Criativo", res.GiftednessType)
}

func TestParseStructuredFillsGapsFromReport(t *testing.T) {
	raw := `{"confidence_level": "desconhecida", "giftedness_type": "outro", "report": "DIAGNÓSTICO FINAL Alta confiança, perfil Motora RECOMENDAÇÕES CLÍNICAS Acompanhamento."}`

	res := defaultParser(t).Parse(raw)

	assert.True(t, res.Structured)
	assert.Equal(t, "Alta confiança, perfil Motora", res.Diagnosis)
	assert.Equal(t, "Acompanhamento.", res.Recommendations)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, "Superdotado Motora", res.GiftednessType)
}

func TestParseMalformedJSONFallsBackToMarkers(t *testing.T) {
	raw := `{"diagnosis": "cortado` + "\nDIAGNÓSTICO FINAL conclusão"

	res := defaultParser(t).Parse(raw)

	assert.False(t, res.Structured)
	assert.Equal(t, "conclusão", res.Diagnosis)
}

func TestCustomMarkerSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: en/v1
analysis: {start: "ANALYSIS", end: "PROFILE", fallback_to_raw: true}
diagnosis: {start: "DIAGNOSIS", end: "RECOMMENDATIONS", fallback: "pending"}
recommendations: {start: "RECOMMENDATIONS", fallback: "none yet"}
confidence_high: ["high confidence"]
confidence_moderate: ["moderate"]
confidence_labels: {high: High, moderate: Moderate, low: Low}
categories:
  - {label: Creative, all_of: [creative]}
default_category: Generic
`), 0o600))

	markers, err := LoadMarkerFile(path)
	require.NoError(t, err)

	res := NewParser(markers).Parse("DIAGNOSIS creative, moderate RECOMMENDATIONS rest")
	assert.Equal(t, "creative, moderate", res.Diagnosis)
	assert.Equal(t, "rest", res.Recommendations)
	assert.Equal(t, ConfidenceModerate, res.Confidence)
	assert.Equal(t, "Moderate", res.ConfidenceLabel)
	assert.Equal(t, "Creative", res.GiftednessType)
	assert.Equal(t, "en/v1", res.MarkerVersion)
}

func TestParseMarkerSetRejectsIncompleteSets(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing version", yaml: `analysis: {start: A}`},
		{name: "missing diagnosis", yaml: "version: x\nanalysis: {start: A}\nrecommendations: {start: R}\ndefault_category: D"},
		{name: "rule without phrases", yaml: "version: x\nanalysis: {start: A}\ndiagnosis: {start: D}\nrecommendations: {start: R}\ndefault_category: D\ncategories: [{label: L}]"},
		{name: "not yaml", yaml: ": : :"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarkerSet([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
