package database

import (
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
)

// Psychologist is a clinician account
type Psychologist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patient belongs to exactly one psychologist
type Patient struct {
	ID             int64     `json:"id"`
	PsychologistID int64     `json:"psychologist_id"`
	Name           string    `json:"name"`
	Age            *int      `json:"age,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LinkStatus is the derived state of an invitation link.
type LinkStatus string

const (
	LinkPending   LinkStatus = "pending"
	LinkCompleted LinkStatus = "completed"
	LinkExpired   LinkStatus = "expired"
)

// AssessmentLink is a tokenized, single-use questionnaire invitation
type AssessmentLink struct {
	ID             int64      `json:"id"`
	PatientID      int64      `json:"patient_id"`
	Token          string     `json:"token"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ExpiryDays     int        `json:"expiry_days"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	EmailSentAt    *time.Time `json:"email_sent_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	IPAddress      string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsCompleted reports whether an answer set was accepted for the link.
func (l *AssessmentLink) IsCompleted() bool {
	return l.CompletedAt != nil
}

// IsExpired reports whether now is past the link expiry. Links without an
// expiry never expire.
func (l *AssessmentLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Status derives the link state. Completion wins over expiry.
func (l *AssessmentLink) Status(now time.Time) LinkStatus {
	switch {
	case l.IsCompleted():
		return LinkCompleted
	case l.IsExpired(now):
		return LinkExpired
	default:
		return LinkPending
	}
}

// AssessmentResponse is the stored answer vector of one completed link
type AssessmentResponse struct {
	ID          int64     `json:"id"`
	LinkID      int64     `json:"link_id"`
	PatientID   int64     `json:"patient_id"`
	Answers     []int     `json:"answers"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Assessment is the scored and narrated result of one response. Domain
// scores are rounded percentages.
type Assessment struct {
	ID                int64     `json:"id"`
	ResponseID        int64     `json:"response_id"`
	PatientID         int64     `json:"patient_id"`
	IntellectualScore int       `json:"intellectual_score"`
	EmotionalScore    int       `json:"emotional_score"`
	ImaginativeScore  int       `json:"imaginative_score"`
	SensoryScore      int       `json:"sensory_score"`
	MotorScore        int       `json:"motor_score"`
	ClinicalAnalysis  string    `json:"clinical_analysis"`
	Diagnosis         string    `json:"diagnosis"`
	Recommendations   string    `json:"recommendations"`
	ConfidenceLevel   string    `json:"confidence_level"`
	GiftednessType    string    `json:"giftedness_type"`
	MarkerVersion     string    `json:"marker_version"`
	Structured        bool      `json:"structured"`
	CreatedAt         time.Time `json:"created_at"`
}

// SetDomainScores copies rounded percentages into the per-domain columns.
func (a *Assessment) SetDomainScores(scores map[questionnaire.Domain]int) {
	a.IntellectualScore = scores[questionnaire.Intellectual]
	a.EmotionalScore = scores[questionnaire.Emotional]
	a.ImaginativeScore = scores[questionnaire.Imaginative]
	a.SensoryScore = scores[questionnaire.Sensory]
	a.MotorScore = scores[questionnaire.Motor]
}

// DomainScores is the inverse of SetDomainScores.
func (a *Assessment) DomainScores() map[questionnaire.Domain]int {
	return map[questionnaire.Domain]int{
		questionnaire.Intellectual: a.IntellectualScore,
		questionnaire.Emotional:    a.EmotionalScore,
		questionnaire.Imaginative:  a.ImaginativeScore,
		questionnaire.Sensory:      a.SensoryScore,
		questionnaire.Motor:        a.MotorScore,
	}
}
