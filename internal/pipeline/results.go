package pipeline

import (
	"context"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
)

// ResultStatus tells whether the narrative of a response is ready.
type ResultStatus string

const (
	StatusProcessing ResultStatus = "processing"
	StatusCompleted  ResultStatus = "completed"
)

// Result is one submitted answer set with its narrative, if ready
type Result struct {
	ResponseID  int64                `json:"response_id"`
	LinkID      int64                `json:"link_id"`
	CompletedAt time.Time            `json:"completed_at"`
	Answers     []int                `json:"answers"`
	Status      ResultStatus         `json:"status"`
	Assessment  *database.Assessment `json:"assessment,omitempty"`
}

// GetResults lists the submissions of a patient owned by psychologistID,
// newest first.
func (s *Service) GetResults(ctx context.Context, psychologistID, patientID int64) ([]Result, error) {
	if _, err := s.store.GetPatient(ctx, psychologistID, patientID); err != nil {
		return nil, err
	}

	responses, err := s.store.ListResponses(ctx, patientID)
	if err != nil {
		return nil, err
	}
	assessments, err := s.store.ListAssessments(ctx, patientID)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(responses))
	for _, resp := range responses {
		r := Result{
			ResponseID:  resp.ID,
			LinkID:      resp.LinkID,
			CompletedAt: resp.CompletedAt,
			Answers:     resp.Answers,
			Status:      StatusProcessing,
		}
		if a, ok := assessments[resp.ID]; ok {
			r.Status = StatusCompleted
			r.Assessment = a
		}
		out = append(out, r)
	}
	return out, nil
}
