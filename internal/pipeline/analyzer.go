package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/llm"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/privacy"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/resilience"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/scoring"
)

// GeneratorService names the text-generation dependency in retry policies,
// circuit breakers and degradation tracking.
const GeneratorService = "narrative_generator"

// AnalyzerConfig tunes the generation call
type AnalyzerConfig struct {
	Provider    string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxAttempts int
}

// Analyzer scores an answer set, asks the generator for the narrative and
// stores the parsed result.
type Analyzer struct {
	store       Store
	generator   llm.Provider
	builder     *narrative.Builder
	parser      *narrative.Parser
	config      AnalyzerConfig
	retries     *resilience.RetryManager
	breaker     *resilience.CircuitBreaker
	degradation *resilience.DegradationManager
	logger      *slog.Logger
}

// NewAnalyzer wires the analysis step. breaker and degradation may be shared
// with the health check so it can report the generator state.
func NewAnalyzer(
	store Store,
	generator llm.Provider,
	builder *narrative.Builder,
	parser *narrative.Parser,
	config AnalyzerConfig,
	breaker *resilience.CircuitBreaker,
	degradation *resilience.DegradationManager,
	logger *slog.Logger,
) *Analyzer {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if degradation == nil {
		degradation = resilience.NewDegradationManager(resilience.DefaultDegradationConfig())
	}
	degradation.RegisterService(GeneratorService)
	if logger == nil {
		logger = slog.Default()
	}

	retries := resilience.NewRetryManager()
	retries.RegisterPolicy(GeneratorService, resilience.GenerationRetryPolicy(config.MaxAttempts))

	return &Analyzer{
		store:       store,
		generator:   generator,
		builder:     builder,
		parser:      parser,
		config:      config,
		retries:     retries,
		breaker:     breaker,
		degradation: degradation,
		logger:      logger,
	}
}

// Analyze produces and stores the narrative for resp. A response that
// already has one is left alone.
func (a *Analyzer) Analyze(ctx context.Context, resp *database.AssessmentResponse) error {
	if _, err := a.store.GetAssessmentByResponse(ctx, resp.ID); err == nil {
		a.logger.Info("Narrative already stored, skipping analysis", "response_id", resp.ID)
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	scores := scoring.Score(resp.Answers)

	meta := narrative.PatientMeta{Name: privacy.PatientLabel, EvaluatedAt: &resp.CompletedAt}
	if patient, err := a.store.PatientByID(ctx, resp.PatientID); err == nil {
		meta.Age = patient.Age
	} else {
		a.logger.Warn("Patient lookup failed, analysing without age", "response_id", resp.ID, "error", err)
	}

	prompt, err := a.builder.Build(resp.Answers, scores, meta)
	if err != nil {
		return fmt.Errorf("failed to build prompt: %w", err)
	}

	started := time.Now()
	raw, err := a.generate(ctx, prompt)
	a.degradation.RecordResult(GeneratorService, err)
	if err != nil {
		return fmt.Errorf("narrative generation failed for response %d: %w", resp.ID, err)
	}

	parsed := a.parser.Parse(raw)

	assessment := &database.Assessment{
		ResponseID:       resp.ID,
		PatientID:        resp.PatientID,
		ClinicalAnalysis: parsed.ClinicalAnalysis,
		Diagnosis:        parsed.Diagnosis,
		Recommendations:  parsed.Recommendations,
		ConfidenceLevel:  parsed.ConfidenceLabel,
		GiftednessType:   parsed.GiftednessType,
		MarkerVersion:    parsed.MarkerVersion,
		Structured:       parsed.Structured,
	}
	assessment.SetDomainScores(scores.RoundedPercentages())

	err = a.store.CreateAssessment(ctx, assessment)
	if errors.Is(err, database.ErrAssessmentExists) {
		a.logger.Info("Narrative stored concurrently, discarding this one", "response_id", resp.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store assessment: %w", err)
	}

	a.logger.Info("Analysis completed",
		"response_id", resp.ID,
		"assessment_id", assessment.ID,
		"giftedness_type", assessment.GiftednessType,
		"confidence", parsed.Confidence,
		"structured", parsed.Structured,
		"generation_ms", time.Since(started).Milliseconds())

	return nil
}

// generate calls the generator under the timeout, retry policy and
// circuit breaker. Disabled generation fails fast without retries.
func (a *Analyzer) generate(ctx context.Context, prompt narrative.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var raw string
	err := a.retries.Execute(ctx, GeneratorService, func() error {
		return a.breaker.Call(func() error {
			out, err := a.generator.Complete(ctx, prompt.System, prompt.User, a.config.MaxTokens, a.config.Temperature)
			if err != nil {
				return classifyGeneratorError(a.config.Provider, err)
			}
			raw = out
			return nil
		})
	})
	return raw, err
}

func classifyGeneratorError(provider string, err error) error {
	switch {
	case errors.Is(err, llm.ErrDisabled):
		return apperrors.NewConfigurationError("Narrative generation is disabled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Narrative generation timed out", err)
	default:
		return apperrors.NewExternalAPIError(provider, err)
	}
}
