// Package api exposes the questionnaire, invitation and results services
// over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/auth"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/pipeline"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
)

const patientNotFound = "Patient not found or access denied"

// PatientStore is the patient storage used by the clinician routes.
type PatientStore interface {
	CreatePatient(ctx context.Context, p *database.Patient) error
	ListPatients(ctx context.Context, psychologistID int64) ([]*database.Patient, error)
	GetPatient(ctx context.Context, psychologistID, patientID int64) (*database.Patient, error)
	UpdatePatient(ctx context.Context, p *database.Patient) error
	DeletePatient(ctx context.Context, psychologistID, patientID int64) error
}

// Handler serves the HTTP API
type Handler struct {
	patients    PatientStore
	invitations *invitation.Service
	submissions *pipeline.Service
	catalog     *questionnaire.Catalog
	logger      *slog.Logger
}

// NewHandler creates the API handler
func NewHandler(patients PatientStore, invitations *invitation.Service, submissions *pipeline.Service, catalog *questionnaire.Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		patients:    patients,
		invitations: invitations,
		submissions: submissions,
		catalog:     catalog,
		logger:      logger,
	}
}

// RouteOptions carries the middleware applied per route group. Nil entries
// are skipped.
type RouteOptions struct {
	Auth               gin.HandlerFunc
	PublicRateLimit    gin.HandlerFunc
	QuestionnaireCache gin.HandlerFunc
}

// RegisterRoutes mounts the /api routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter, opts RouteOptions) {
	api := r.Group("/api")

	public := api.Group("", nonNil(opts.PublicRateLimit)...)
	public.GET("/questionnaire", append(nonNil(opts.QuestionnaireCache), h.GetQuestionnaire)...)
	public.GET("/links/:token", h.GetLink)
	public.POST("/links/:token/submit", h.SubmitAnswers)

	clinician := api.Group("", nonNil(opts.Auth)...)
	clinician.POST("/patients", h.CreatePatient)
	clinician.GET("/patients", h.ListPatients)
	clinician.GET("/patients/:id", h.GetPatient)
	clinician.PUT("/patients/:id", h.UpdatePatient)
	clinician.DELETE("/patients/:id", h.DeletePatient)
	clinician.POST("/patients/:id/links", h.GenerateLink)
	clinician.GET("/patients/:id/links", h.ListLinks)
	clinician.GET("/patients/:id/links/:linkId/whatsapp", h.WhatsAppMessage)
	clinician.GET("/patients/:id/results", h.GetResults)
	clinician.POST("/responses/:id/analyze", h.Reanalyze)
}

func nonNil(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// toAppError maps service sentinels to HTTP errors and defers to
// apperrors.ToAppError for the rest.
func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, pipeline.ErrMalformedToken):
		return apperrors.NewValidationError("Invalid assessment link")
	case errors.Is(err, pipeline.ErrLinkNotFound):
		return apperrors.NewNotFoundError("Invalid assessment link", err)
	case errors.Is(err, pipeline.ErrAlreadyCompleted):
		return apperrors.NewConflictError("Assessment already completed", err)
	case errors.Is(err, pipeline.ErrLinkExpired):
		return apperrors.NewGoneError("Assessment link expired", err)
	case errors.Is(err, invitation.ErrInvalidRequest):
		return apperrors.NewValidationError("Invalid link request", err.Error())
	case errors.Is(err, invitation.ErrTokenExhausted):
		return apperrors.NewInternalError("Could not create a link, try again", err)
	}
	return apperrors.ToAppError(err)
}

// bindingError reports validator failures per JSON field. Malformed JSON
// and type mismatches come back as a single message.
func bindingError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("Invalid request body", err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[snakeCase(fe.Field())] = ruleMessage(fe)
	}
	return apperrors.NewValidationErrorWithMap("Invalid request body", fields)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed the " + fe.Tag() + " rule"
	}
}

// snakeCase turns a Go field name into its JSON name: ExpiryDays -> expiry_days.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func respondError(c *gin.Context, err error) {
	apperrors.Respond(c, toAppError(err))
}

// respondPatientError reports a missing or foreign patient without telling
// the two apart.
func respondPatientError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		apperrors.Respond(c, apperrors.NewNotFoundError(patientNotFound, err))
		return
	}
	respondError(c, err)
}

func psychologistID(c *gin.Context) (int64, bool) {
	id, ok := auth.PsychologistID(c)
	if !ok {
		apperrors.Respond(c, apperrors.NewUnauthorizedError("Authentication required", auth.ErrMissingToken))
	}
	return id, ok
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid "+name, c.Param(name)))
		return 0, false
	}
	return id, true
}
