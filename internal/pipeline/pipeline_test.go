package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/llm"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/resilience"
)

const generatedReport = `INTERPRETAÇÃO CLÍNICA POR DOMÍNIO
Intelectual elevado.

ANÁLISE DO PERFIL
Heterogêneo.

DIAGNÓSTICO FINAL
Perfil Superdotado Criativo. Alta confiança.

RECOMENDAÇÕES CLÍNICAS
Acompanhamento psicoeducativo.`

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
	delay   time.Duration
}

func (f *fakeProvider) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, user)
	reply, err, delay := f.reply, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingObserver struct {
	accepted atomic.Int64
	rejected sync.Map
	finished atomic.Int64
	failed   atomic.Int64
}

func (o *countingObserver) SubmissionAccepted() { o.accepted.Add(1) }

func (o *countingObserver) SubmissionRejected(reason string) {
	v, _ := o.rejected.LoadOrStore(reason, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (o *countingObserver) AnalysisFinished(_ time.Duration, err error) {
	o.finished.Add(1)
	if err != nil {
		o.failed.Add(1)
	}
}

func (o *countingObserver) Rejected(reason string) int64 {
	v, ok := o.rejected.Load(reason)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

type harness struct {
	repo       *database.Repository
	provider   *fakeProvider
	observer   *countingObserver
	dispatcher *Dispatcher
	breaker    *resilience.CircuitBreaker
	service    *Service
	psy        *database.Psychologist
	patient    *database.Patient
}

func newHarness(t *testing.T, cfg AnalyzerConfig) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(database.DriverPure, t.TempDir())
	require.NoError(t, err)
	repo := database.NewRepository(db)

	psy, err := repo.CreatePsychologist(ctx, "Dra. Ana", "ana@clinic.test")
	require.NoError(t, err)
	age := 34
	patient := &database.Patient{PsychologistID: psy.ID, Name: "Maria Souza", Age: &age}
	require.NoError(t, repo.CreatePatient(ctx, patient))

	profile, err := narrative.LoadProfile(narrative.DefaultVersion)
	require.NoError(t, err)

	provider := &fakeProvider{reply: generatedReport}
	observer := &countingObserver{}
	dispatcher := NewDispatcher(nil)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 100})

	if cfg.Provider == "" {
		cfg.Provider = "fake"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	analyzer := NewAnalyzer(repo, provider,
		narrative.NewBuilder(profile, narrative.FormatText),
		narrative.NewParser(profile.Markers),
		cfg, breaker, nil, nil)

	h := &harness{
		repo:       repo,
		provider:   provider,
		observer:   observer,
		dispatcher: dispatcher,
		breaker:    breaker,
		service:    NewService(repo, analyzer, dispatcher, observer, nil),
		psy:        psy,
		patient:    patient,
	}

	t.Cleanup(func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dispatcher.Wait(waitCtx)
		db.Close()
	})
	return h
}

func (h *harness) newLink(t *testing.T, expiresIn time.Duration) *database.AssessmentLink {
	t.Helper()
	token, err := invitation.NewToken()
	require.NoError(t, err)

	expires := time.Now().Add(expiresIn)
	link := &database.AssessmentLink{PatientID: h.patient.ID, Token: token, ExpiresAt: &expires, ExpiryDays: 1}
	require.NoError(t, h.repo.CreateLink(context.Background(), link))
	return link
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.dispatcher.Wait(ctx))
}

func uniform(value int) []int {
	out := make([]int, questionnaire.QuestionCount)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestSubmitStoresAndAnalyses(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(4))
	require.NoError(t, err)
	assert.True(t, sub.Success)
	assert.NotZero(t, sub.ResponseID)
	assert.NotEmpty(t, sub.JobID)

	h.wait(t)

	a, err := h.repo.GetAssessmentByResponse(ctx, sub.ResponseID)
	require.NoError(t, err)
	for d, pct := range a.DomainScores() {
		assert.Equal(t, 100, pct, d)
	}
	assert.Equal(t, "Superdotado Criativo", a.GiftednessType)
	assert.Equal(t, "Alta", a.ConfidenceLevel)
	assert.Equal(t, "Acompanhamento psicoeducativo.", a.Recommendations)
	assert.Equal(t, narrative.DefaultVersion, a.MarkerVersion)

	require.Len(t, h.provider.prompts, 1)
	assert.NotContains(t, h.provider.prompts[0], "Maria Souza", "patient name stays out of the prompt")
	assert.Contains(t, h.provider.prompts[0], "34")

	assert.Equal(t, int64(1), h.observer.accepted.Load())
	assert.Equal(t, int64(1), h.observer.finished.Load())
	assert.Zero(t, h.observer.failed.Load())
}

func TestSubmitRejections(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	ctx := context.Background()

	expired := h.newLink(t, -time.Hour)
	valid := h.newLink(t, time.Hour)

	tests := []struct {
		name    string
		token   string
		answers []int
		wantErr error
	}{
		{name: "malformed token", token: "abc", answers: uniform(0), wantErr: ErrMalformedToken},
		{name: "unknown token", token: strings.Repeat("Z", invitation.TokenLength), answers: uniform(0), wantErr: ErrLinkNotFound},
		{name: "expired", token: expired.Token, answers: uniform(0), wantErr: ErrLinkExpired},
		{name: "short vector", token: valid.Token, answers: []int{4, 4}, wantErr: questionnaire.ErrInvalidAnswers},
		{name: "out of scale answer", token: valid.Token, answers: append(uniform(0)[:67], 2), wantErr: questionnaire.ErrInvalidAnswers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.Submit(ctx, tt.token, tt.answers)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	responses, err := h.repo.ListResponses(ctx, h.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, responses, "rejected submissions store nothing")
	assert.Zero(t, h.provider.Calls())
	assert.Equal(t, int64(1), h.observer.Rejected("expired"))
}

func TestSecondSubmissionRejected(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	_, err := h.service.Submit(ctx, link.Token, uniform(1))
	require.NoError(t, err)

	_, err = h.service.Submit(ctx, link.Token, uniform(3))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	h.wait(t)

	responses, err := h.repo.ListResponses(ctx, h.patient.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, uniform(1), responses[0].Answers)
	assert.Equal(t, 1, h.provider.Calls())
}

func TestConcurrentSubmissions(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	link := h.newLink(t, time.Hour)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Submit(context.Background(), link.Token, uniform(3))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	}
	assert.Equal(t, 1, accepted)

	h.wait(t)
	responses, err := h.repo.ListResponses(context.Background(), h.patient.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestAnalysisFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{MaxAttempts: 1})
	h.provider.err = errors.New("upstream 503")
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(3))
	require.NoError(t, err, "generation failure never reaches the respondent")

	h.wait(t)

	_, err = h.repo.GetAssessmentByResponse(ctx, sub.ResponseID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Equal(t, 1, h.provider.Calls(), "no automatic re-run")
	assert.Equal(t, int64(1), h.observer.failed.Load())

	results, err := h.service.GetResults(ctx, h.psy.ID, h.patient.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusProcessing, results[0].Status)
	assert.Nil(t, results[0].Assessment)
}

func TestRetriesTransientGenerationErrors(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{MaxAttempts: 2})
	h.provider.err = errors.New("connection refused")
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	_, err := h.service.Submit(ctx, link.Token, uniform(3))
	require.NoError(t, err)
	h.wait(t)

	assert.Equal(t, 2, h.provider.Calls())
}

func TestDisabledGeneratorIsNotRetried(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{MaxAttempts: 3})
	h.provider.err = llm.ErrDisabled
	link := h.newLink(t, time.Hour)

	_, err := h.service.Submit(context.Background(), link.Token, uniform(3))
	require.NoError(t, err)
	h.wait(t)

	assert.Equal(t, 1, h.provider.Calls())
}

func TestGenerationTimeout(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{Timeout: 50 * time.Millisecond})
	h.provider.delay = time.Second
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(3))
	require.NoError(t, err)
	h.wait(t)

	_, err = h.repo.GetAssessmentByResponse(ctx, sub.ResponseID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestReanalyze(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	h.provider.err = errors.New("upstream 503")
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(4))
	require.NoError(t, err)
	h.wait(t)

	_, err = h.service.Reanalyze(ctx, h.psy.ID+1, sub.ResponseID)
	assert.ErrorIs(t, err, database.ErrNotFound, "other clinicians cannot trigger analysis")

	h.provider.mu.Lock()
	h.provider.err = nil
	h.provider.mu.Unlock()

	jobID, err := h.service.Reanalyze(ctx, h.psy.ID, sub.ResponseID)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	h.wait(t)

	results, err := h.service.GetResults(ctx, h.psy.ID, h.patient.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusCompleted, results[0].Status)
	require.NotNil(t, results[0].Assessment)

	_, err = h.service.Reanalyze(ctx, h.psy.ID, sub.ResponseID)
	assert.ErrorIs(t, err, database.ErrAssessmentExists, "narratives are immutable")
}

func TestReanalyzeWhileAnalysisRuns(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	h.provider.delay = 200 * time.Millisecond
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(4))
	require.NoError(t, err)
	assert.True(t, h.service.Analyzing(sub.ResponseID))

	_, err = h.service.Reanalyze(ctx, h.psy.ID, sub.ResponseID)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	h.wait(t)
	assert.False(t, h.service.Analyzing(sub.ResponseID))
	assert.Equal(t, 1, h.provider.Calls(), "the generator is called once")
	assert.Zero(t, h.observer.failed.Load())

	_, err = h.service.Reanalyze(ctx, h.psy.ID, sub.ResponseID)
	assert.ErrorIs(t, err, database.ErrAssessmentExists)
}

// staleStore never sees an existing assessment, so Analyze always reaches
// the insert.
type staleStore struct {
	*database.Repository
}

func (staleStore) GetAssessmentByResponse(context.Context, int64) (*database.Assessment, error) {
	return nil, database.ErrNotFound
}

func TestAnalyzeLosingInsertRaceIsNotAFailure(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})
	ctx := context.Background()
	link := h.newLink(t, time.Hour)

	sub, err := h.service.Submit(ctx, link.Token, uniform(4))
	require.NoError(t, err)
	h.wait(t)

	stored, err := h.repo.GetAssessmentByResponse(ctx, sub.ResponseID)
	require.NoError(t, err)
	resp, err := h.repo.GetResponse(ctx, sub.ResponseID)
	require.NoError(t, err)

	profile, err := narrative.LoadProfile(narrative.DefaultVersion)
	require.NoError(t, err)
	analyzer := NewAnalyzer(staleStore{h.repo}, h.provider,
		narrative.NewBuilder(profile, narrative.FormatText),
		narrative.NewParser(profile.Markers),
		AnalyzerConfig{Provider: "fake"}, nil, nil, nil)

	require.NoError(t, analyzer.Analyze(ctx, resp))
	assert.Equal(t, 2, h.provider.Calls())

	again, err := h.repo.GetAssessmentByResponse(ctx, sub.ResponseID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, again.ID, "the first narrative is kept")
}

func TestGetResultsScoped(t *testing.T) {
	h := newHarness(t, AnalyzerConfig{})

	_, err := h.service.GetResults(context.Background(), h.psy.ID+1, h.patient.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDispatcherWaitHonoursDeadline(t *testing.T) {
	d := NewDispatcher(nil)
	release := make(chan struct{})
	d.Dispatch("blocked", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	assert.Equal(t, int64(1), d.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Wait(context.Background()))
	assert.Zero(t, d.InFlight())
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch("panics", func(context.Context) error { panic("boom") })
	require.NoError(t, d.Wait(context.Background()))
}
