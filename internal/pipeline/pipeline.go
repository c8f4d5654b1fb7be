// Package pipeline accepts questionnaire submissions against single-use
// links and produces the scored narrative in the background.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
)

var (
	// ErrLinkNotFound is returned for tokens that match no link.
	ErrLinkNotFound = errors.New("invalid assessment link")
	// ErrAlreadyCompleted is returned when the link already has an answer set.
	ErrAlreadyCompleted = errors.New("assessment already completed")
	// ErrLinkExpired is returned when the link is past its expiry.
	ErrLinkExpired = errors.New("assessment link expired")
	// ErrMalformedToken is returned before any lookup for tokens of the wrong shape.
	ErrMalformedToken = errors.New("malformed assessment token")
	// ErrAnalysisInProgress is returned by Reanalyze while an analysis of the
	// same response is still running.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// Store is the subset of the repository the pipeline needs
type Store interface {
	GetLinkByToken(ctx context.Context, token string) (*database.AssessmentLink, error)
	ConsumeLink(ctx context.Context, link *database.AssessmentLink, answers []int) (*database.AssessmentResponse, error)
	GetResponse(ctx context.Context, responseID int64) (*database.AssessmentResponse, error)
	GetResponseForPsychologist(ctx context.Context, psychologistID, responseID int64) (*database.AssessmentResponse, error)
	PatientByID(ctx context.Context, patientID int64) (*database.Patient, error)
	GetPatient(ctx context.Context, psychologistID, patientID int64) (*database.Patient, error)
	ListResponses(ctx context.Context, patientID int64) ([]*database.AssessmentResponse, error)
	ListAssessments(ctx context.Context, patientID int64) (map[int64]*database.Assessment, error)
	GetAssessmentByResponse(ctx context.Context, responseID int64) (*database.Assessment, error)
	CreateAssessment(ctx context.Context, a *database.Assessment) error
}

// Observer receives pipeline events for metrics
type Observer interface {
	SubmissionAccepted()
	SubmissionRejected(reason string)
	AnalysisFinished(duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) SubmissionAccepted()                   {}
func (noopObserver) SubmissionRejected(string)             {}
func (noopObserver) AnalysisFinished(time.Duration, error) {}

// Submission is the synchronous answer to an accepted submission
type Submission struct {
	Success    bool   `json:"success"`
	ResponseID int64  `json:"response_id"`
	JobID      string `json:"-"`
}

// Service guards link state and hands accepted answer sets to the analyzer
type Service struct {
	store      Store
	analyzer   *Analyzer
	dispatcher *Dispatcher
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[int64]string
}

// NewService wires the pipeline. A nil observer discards events.
func NewService(store Store, analyzer *Analyzer, dispatcher *Dispatcher, observer Observer, logger *slog.Logger) *Service {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
		running:    make(map[int64]string),
	}
}

// Submit validates answers, consumes the link and schedules the analysis.
// It returns as soon as the answer set is stored.
func (s *Service) Submit(ctx context.Context, token string, answers []int) (*Submission, error) {
	if !invitation.ValidToken(token) {
		s.observer.SubmissionRejected("malformed_token")
		return nil, ErrMalformedToken
	}
	if err := questionnaire.ValidateAnswers(answers); err != nil {
		s.observer.SubmissionRejected("invalid_answers")
		return nil, err
	}

	link, err := s.store.GetLinkByToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		s.observer.SubmissionRejected("not_found")
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}

	if link.IsCompleted() {
		s.observer.SubmissionRejected("completed")
		return nil, ErrAlreadyCompleted
	}
	if link.IsExpired(s.now()) {
		s.observer.SubmissionRejected("expired")
		return nil, ErrLinkExpired
	}

	resp, err := s.store.ConsumeLink(ctx, link, answers)
	if errors.Is(err, database.ErrLinkConsumed) {
		s.observer.SubmissionRejected("completed")
		return nil, ErrAlreadyCompleted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	s.observer.SubmissionAccepted()
	jobID, _ := s.schedule(resp)

	s.logger.Info("Submission accepted",
		"link_id", link.ID,
		"response_id", resp.ID,
		"job_id", jobID)

	return &Submission{Success: true, ResponseID: resp.ID, JobID: jobID}, nil
}

// schedule starts the analysis of resp unless one is already running for
// it, in which case the running job's id and false are returned.
func (s *Service) schedule(resp *database.AssessmentResponse) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jobID, ok := s.running[resp.ID]; ok {
		return jobID, false
	}

	release := make(chan struct{})
	jobID := s.dispatcher.Dispatch("analysis", func(ctx context.Context) error {
		<-release
		defer s.finish(resp.ID)

		started := time.Now()
		err := s.analyzer.Analyze(ctx, resp)
		s.observer.AnalysisFinished(time.Since(started), err)
		return err
	})
	s.running[resp.ID] = jobID
	close(release)
	return jobID, true
}

func (s *Service) finish(responseID int64) {
	s.mu.Lock()
	delete(s.running, responseID)
	s.mu.Unlock()
}

// Analyzing reports whether an analysis of responseID is running.
func (s *Service) Analyzing(responseID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[responseID]
	return ok
}

// Reanalyze schedules analysis for a response of psychologistID that has no
// narrative yet and none being produced. Narratives are never replaced.
func (s *Service) Reanalyze(ctx context.Context, psychologistID, responseID int64) (string, error) {
	resp, err := s.store.GetResponseForPsychologist(ctx, psychologistID, responseID)
	if err != nil {
		return "", err
	}

	_, err = s.store.GetAssessmentByResponse(ctx, responseID)
	switch {
	case err == nil:
		return "", database.ErrAssessmentExists
	case !errors.Is(err, database.ErrNotFound):
		return "", err
	}

	jobID, started := s.schedule(resp)
	if !started {
		s.logger.Info("Reanalysis skipped, analysis still running", "response_id", responseID, "job_id", jobID)
		return "", ErrAnalysisInProgress
	}
	s.logger.Info("Reanalysis scheduled", "response_id", responseID, "job_id", jobID)
	return jobID, nil
}
