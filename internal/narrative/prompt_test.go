package narrative

import (
	"strings"
	"testing"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := LoadProfile(DefaultVersion)
	require.NoError(t, err)
	return p
}

func intellectualOnly() []int {
	answers := make([]int, questionnaire.QuestionCount)
	for i := 0; i < 16; i++ {
		answers[i] = 4
	}
	return answers
}

func TestBuildRendersEveryDomain(t *testing.T) {
	answers := intellectualOnly()
	b := NewBuilder(defaultProfile(t), FormatText)

	p, err := b.Build(answers, scoring.Score(answers), PatientMeta{})
	require.NoError(t, err)

	assert.Equal(t, DefaultVersion, p.Version)
	assert.False(t, p.Structured)
	assert.Contains(t, p.System, "especialista clínico em superdotação")

	assert.Contains(t, p.User, "INTELLECTUAL: Questões 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16 = [4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4]")
	assert.Contains(t, p.User, "SE Intelectual - Questões de 1 a 16: Pontuação 64 (100.0%) - Alto")
	assert.Contains(t, p.User, "SE Emocional - Questões de 17 a 32: Pontuação 0 (0.0%) - Fraco")
	assert.Contains(t, p.User, "SE Imaginativa - Questões de 33 a 49")
	assert.Contains(t, p.User, "SE Sensorial - Questões de 50 a 58")
	assert.Contains(t, p.User, "SE Motora - Questões de 59 a 68")
	assert.Contains(t, p.User, "ESCALA DE RESPOSTA: 0 = Nunca | 1 = Às vezes | 3 = Frequentemente | 4 = Sempre")
}

func TestBuildDomainOrderFollowsPartition(t *testing.T) {
	answers := intellectualOnly()
	p, err := NewBuilder(defaultProfile(t), FormatText).Build(answers, scoring.Score(answers), PatientMeta{})
	require.NoError(t, err)

	last := -1
	for _, d := range questionnaire.Domains() {
		idx := strings.Index(p.User, "SE "+d.Label()+" -")
		require.GreaterOrEqual(t, idx, 0, d)
		assert.Greater(t, idx, last, d)
		last = idx
	}
}

func TestBuildPatientMeta(t *testing.T) {
	answers := intellectualOnly()
	res := scoring.Score(answers)
	b := NewBuilder(defaultProfile(t), FormatText)

	age := 34
	zero := 0
	when := time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		meta     PatientMeta
		contains []string
	}{
		{
			name: "all absent",
			meta: PatientMeta{},
			contains: []string{
				"- Nome: Não informado",
				"- Idade: Não informada",
				"- Data da Avaliação: Não informada",
			},
		},
		{
			name: "all present",
			meta: PatientMeta{Name: "Maria Silva", Age: &age, EvaluatedAt: &when},
			contains: []string{
				"- Nome: Maria Silva",
				"- Idade: 34",
				"- Data da Avaliação: 05/03/2024",
			},
		},
		{
			name:     "non-positive age counts as absent",
			meta:     PatientMeta{Name: "  ", Age: &zero},
			contains: []string{"- Nome: Não informado", "- Idade: Não informada"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.Build(answers, res, tt.meta)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, p.User, s)
			}
		})
	}
}

func TestBuildShortVectorMarksAbsentAnswers(t *testing.T) {
	answers := []int{4, 3}
	p, err := NewBuilder(defaultProfile(t), FormatText).Build(answers, scoring.Score(answers), PatientMeta{})
	require.NoError(t, err)

	assert.Contains(t, p.User, "= [4, 3, -, -, -, -, -, -, -, -, -, -, -, -, -, -]")
	assert.Contains(t, p.User, "Pontuação 7 (10.9%) - Fraco")
}

func TestBuildStructuredAppendsResponseFormat(t *testing.T) {
	answers := intellectualOnly()
	res := scoring.Score(answers)
	profile := defaultProfile(t)

	text, err := NewBuilder(profile, FormatText).Build(answers, res, PatientMeta{})
	require.NoError(t, err)
	assert.NotContains(t, text.User, "clinical_analysis")

	structured, err := NewBuilder(profile, FormatStructured).Build(answers, res, PatientMeta{})
	require.NoError(t, err)
	assert.True(t, structured.Structured)
	assert.True(t, strings.HasPrefix(structured.User, text.User))
	assert.Contains(t, structured.User, `"confidence_level": um de "Alta", "Moderada", "Baixa"`)
	assert.Contains(t, structured.User, `"Superdotado Multidimensional"`)
	assert.Contains(t, structured.User, `"Padrão de Superdotação Detectado"`)
}

func TestNewBuilderDefaultsToText(t *testing.T) {
	b := NewBuilder(defaultProfile(t), "")
	assert.Equal(t, FormatText, b.Format())
}

func TestVersions(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	assert.Contains(t, versions, DefaultVersion)

	_, err = LoadProfile("xx/v0")
	assert.Error(t, err)
}
