// Package invitation creates tokenized assessment links and serves the
// public lookup of a link by token.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/delivery"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/privacy"
)

const (
	MinExpiryDays = 1
	MaxExpiryDays = 365

	auditTimeout = 5 * time.Second
)

var (
	// ErrInvalidRequest marks caller mistakes such as an out-of-range expiry.
	ErrInvalidRequest = errors.New("invalid link request")
	// ErrTokenExhausted is returned when every generated token collided.
	ErrTokenExhausted = errors.New("could not generate a unique link token")
)

// Store is the subset of the repository the invitation service needs
type Store interface {
	GetPsychologist(ctx context.Context, id int64) (*database.Psychologist, error)
	GetPatient(ctx context.Context, psychologistID, patientID int64) (*database.Patient, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	CreateLink(ctx context.Context, l *database.AssessmentLink) error
	GetLinkByToken(ctx context.Context, token string) (*database.AssessmentLink, error)
	GetLink(ctx context.Context, psychologistID, linkID int64) (*database.AssessmentLink, error)
	ListLinks(ctx context.Context, patientID int64) ([]*database.AssessmentLink, error)
	RecordAccess(ctx context.Context, linkID int64, ip string) error
	MarkEmailSent(ctx context.Context, linkID int64, at time.Time) error
	PatientName(ctx context.Context, patientID int64) (string, error)
}

// GenerateRequest describes a new link. Zero ExpiryDays means the default.
type GenerateRequest struct {
	PsychologistID int64
	PatientID      int64
	ExpiryDays     int
	SendEmail      bool
}

// GeneratedLink is returned to the clinician after a link is created
type GeneratedLink struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
	ExpiryDays int       `json:"expiry_days"`
	EmailSent  bool      `json:"email_sent"`
}

// PublicLink is what a respondent sees. It carries no clinician data.
type PublicLink struct {
	Token       string              `json:"token"`
	PatientName string              `json:"patient_name"`
	Status      database.LinkStatus `json:"status"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// LinkView is a link as listed to its clinician
type LinkView struct {
	*database.AssessmentLink
	Status database.LinkStatus `json:"status"`
	URL    string              `json:"url"`
}

// Service creates and resolves assessment links
type Service struct {
	store         Store
	sender        delivery.Sender
	appURL        string
	defaultExpiry int
	logger        *slog.Logger

	now      func() time.Time
	newToken func() (string, error)
	audits   sync.WaitGroup
}

// NewService creates the invitation service. appURL is the public base URL
// the questionnaire is served from.
func NewService(store Store, sender delivery.Sender, appURL string, defaultExpiryDays int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         store,
		sender:        sender,
		appURL:        appURL,
		defaultExpiry: defaultExpiryDays,
		logger:        logger,
		now:           time.Now,
		newToken:      NewToken,
	}
}

// LinkURL is the respondent URL for token.
func (s *Service) LinkURL(token string) string {
	return s.appURL + "/assessment/" + token
}

// GenerateLink creates a link for a patient of the calling psychologist and
// optionally emails it. Delivery failures are logged and reported through
// EmailSent, never as an error.
func (s *Service) GenerateLink(ctx context.Context, req GenerateRequest) (*GeneratedLink, error) {
	expiryDays := req.ExpiryDays
	if expiryDays == 0 {
		expiryDays = s.defaultExpiry
	}
	if expiryDays < MinExpiryDays || expiryDays > MaxExpiryDays {
		return nil, fmt.Errorf("%w: expiry must be between %d and %d days", ErrInvalidRequest, MinExpiryDays, MaxExpiryDays)
	}

	patient, err := s.store.GetPatient(ctx, req.PsychologistID, req.PatientID)
	if err != nil {
		return nil, err
	}
	if req.SendEmail && patient.Email == "" {
		return nil, fmt.Errorf("%w: patient does not have an email address registered", ErrInvalidRequest)
	}

	expiresAt := s.now().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour)
	link := &database.AssessmentLink{
		PatientID:  patient.ID,
		ExpiresAt:  &expiresAt,
		ExpiryDays: expiryDays,
	}
	if err := s.createWithUniqueToken(ctx, link); err != nil {
		return nil, err
	}

	out := &GeneratedLink{
		ID:         link.ID,
		Token:      link.Token,
		URL:        s.LinkURL(link.Token),
		ExpiresAt:  expiresAt,
		ExpiryDays: expiryDays,
	}

	if req.SendEmail {
		out.EmailSent = s.sendInvite(ctx, req.PsychologistID, patient, out)
	}

	s.logger.Info("Assessment link created",
		"link_id", link.ID,
		"patient_id", patient.ID,
		"expiry_days", expiryDays,
		"email_sent", out.EmailSent)

	return out, nil
}

func (s *Service) createWithUniqueToken(ctx context.Context, link *database.AssessmentLink) error {
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return err
		}

		exists, err := s.store.TokenExists(ctx, token)
		if err != nil {
			return err
		}
		if exists {
			s.logger.Warn("Link token collision", "attempt", attempt)
			continue
		}

		link.Token = token
		err = s.store.CreateLink(ctx, link)
		if errors.Is(err, database.ErrAlreadyExists) {
			s.logger.Warn("Link token collision on insert", "attempt", attempt)
			continue
		}
		return err
	}

	s.logger.Error("Exhausted link token attempts", "attempts", maxTokenAttempts)
	return fmt.Errorf("%w after %d attempts", ErrTokenExhausted, maxTokenAttempts)
}

func (s *Service) sendInvite(ctx context.Context, psychologistID int64, patient *database.Patient, link *GeneratedLink) bool {
	data := delivery.InviteData{
		PatientName:  patient.Name,
		PatientEmail: patient.Email,
		URL:          link.URL,
		ExpiresAt:    link.ExpiresAt,
	}
	if psy, err := s.store.GetPsychologist(ctx, psychologistID); err == nil {
		data.PsychologistName = psy.Name
	}

	msg, err := delivery.InviteMessage(data)
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Error("Failed to send assessment link email",
			"link_id", link.ID,
			"recipient", privacy.Pseudonym(patient.Email),
			"error", err)
		return false
	}

	if err := s.store.MarkEmailSent(ctx, link.ID, s.now()); err != nil {
		s.logger.Warn("Failed to record email delivery", "link_id", link.ID, "error", err)
	}
	return true
}

// GetByToken resolves a public token. The access audit is written in the
// background and its failure is only logged.
func (s *Service) GetByToken(ctx context.Context, token, ip string) (*PublicLink, error) {
	if !ValidToken(token) {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidRequest)
	}

	link, err := s.store.GetLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	s.audits.Add(1)
	go func(linkID int64) {
		defer s.audits.Done()
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := s.store.RecordAccess(auditCtx, linkID, ip); err != nil {
			s.logger.Warn("Failed to update link access audit", "link_id", linkID, "error", err)
		}
	}(link.ID)

	name, err := s.store.PatientName(ctx, link.PatientID)
	if err != nil {
		return nil, err
	}

	return &PublicLink{
		Token:       link.Token,
		PatientName: name,
		Status:      link.Status(s.now()),
		ExpiresAt:   link.ExpiresAt,
		CompletedAt: link.CompletedAt,
	}, nil
}

// WaitAudits blocks until background access audits have finished.
func (s *Service) WaitAudits() {
	s.audits.Wait()
}

// ListLinks returns the links of a patient owned by psychologistID
func (s *Service) ListLinks(ctx context.Context, psychologistID, patientID int64) ([]LinkView, error) {
	if _, err := s.store.GetPatient(ctx, psychologistID, patientID); err != nil {
		return nil, err
	}

	links, err := s.store.ListLinks(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		out = append(out, LinkView{AssessmentLink: l, Status: l.Status(now), URL: s.LinkURL(l.Token)})
	}
	return out, nil
}

// WhatsAppMessage renders the share text for one link of a patient
func (s *Service) WhatsAppMessage(ctx context.Context, psychologistID, patientID, linkID int64) (string, error) {
	link, err := s.store.GetLink(ctx, psychologistID, linkID)
	if err != nil {
		return "", err
	}
	if link.PatientID != patientID {
		return "", fmt.Errorf("link %d does not belong to patient %d: %w", linkID, patientID, database.ErrNotFound)
	}

	name, err := s.store.PatientName(ctx, link.PatientID)
	if err != nil {
		return "", err
	}

	expiresAt := link.CreatedAt.AddDate(0, 0, link.ExpiryDays)
	if link.ExpiresAt != nil {
		expiresAt = *link.ExpiresAt
	}

	return delivery.WhatsAppMessage(delivery.InviteData{
		PatientName: name,
		URL:         s.LinkURL(link.Token),
		ExpiresAt:   expiresAt,
	})
}
