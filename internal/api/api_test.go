package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/auth"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/delivery"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/pipeline"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/resilience"
)

const report = `INTERPRETAÇÃO CLÍNICA POR DOMÍNIO
Perfil elevado.

DIAGNÓSTICO FINAL
Perfil Superdotado Multidimensional. Alta confiança.

RECOMENDAÇÕES CLÍNICAS
Acompanhamento.`

type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Complete(context.Context, string, string, int, float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return report, nil
}

type server struct {
	router      *gin.Engine
	repo        *database.Repository
	dispatcher  *pipeline.Dispatcher
	invitations *invitation.Service
	tokens      *auth.TokenService
	psy         *database.Psychologist
	other       *database.Psychologist
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.Open(database.DriverPure, t.TempDir())
	require.NoError(t, err)
	repo := database.NewRepository(db)

	psy, err := repo.CreatePsychologist(ctx, "Dra. Ana", "ana@clinic.test")
	require.NoError(t, err)
	other, err := repo.CreatePsychologist(ctx, "Dr. Bruno", "bruno@clinic.test")
	require.NoError(t, err)

	profile, err := narrative.LoadProfile(narrative.DefaultVersion)
	require.NoError(t, err)
	catalog, err := questionnaire.DefaultCatalog()
	require.NoError(t, err)

	dispatcher := pipeline.NewDispatcher(nil)
	analyzer := pipeline.NewAnalyzer(repo, &stubProvider{},
		narrative.NewBuilder(profile, narrative.FormatText),
		narrative.NewParser(profile.Markers),
		pipeline.AnalyzerConfig{Provider: "stub", Timeout: 5 * time.Second, MaxAttempts: 1},
		resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 10}),
		nil, nil)

	invitations := invitation.NewService(repo, delivery.NewLogSender(nil), "https://avaliacao.example.com", 30, nil)
	submissions := pipeline.NewService(repo, analyzer, dispatcher, nil, nil)
	tokens := auth.NewTokenService("test-secret-with-enough-length-123")

	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	NewHandler(repo, invitations, submissions, catalog, nil).RegisterRoutes(router, RouteOptions{
		Auth: auth.Middleware(tokens),
	})

	t.Cleanup(func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dispatcher.Wait(waitCtx)
		invitations.WaitAudits()
		db.Close()
	})

	return &server{
		router:      router,
		repo:        repo,
		dispatcher:  dispatcher,
		invitations: invitations,
		tokens:      tokens,
		psy:         psy,
		other:       other,
	}
}

func (s *server) do(t *testing.T, method, path string, psychologistID int64, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if psychologistID != 0 {
		token, err := s.tokens.Issue(psychologistID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) createPatient(t *testing.T, body map[string]interface{}) database.Patient {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/patients", s.psy.ID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p database.Patient
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func (s *server) generateLink(t *testing.T, patientID int64) invitation.GeneratedLink {
	t.Helper()
	w := s.do(t, http.MethodPost, patientPath(patientID)+"/links", s.psy.ID, map[string]interface{}{"expiry_days": 7})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var link invitation.GeneratedLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	return link
}

func patientPath(id int64) string {
	return "/api/patients/" + strconv.FormatInt(id, 10)
}

func uniform(value int) []int {
	out := make([]int, questionnaire.QuestionCount)
	for i := range out {
		out[i] = value
	}
	return out
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestQuestionnaireIsPublic(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/questionnaire", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var catalog questionnaire.Catalog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	assert.Len(t, catalog.Questions, questionnaire.QuestionCount)
}

func TestClinicianRoutesRequireAuth(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/patients", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPatientLifecycle(t *testing.T) {
	s := newServer(t)

	p := s.createPatient(t, map[string]interface{}{
		"name":  "  Maria <b>Souza</b> ",
		"age":   34,
		"email": "maria@example.com",
		"notes": "Encaminhada pela escola.<script>alert(1)</script>",
	})
	assert.Equal(t, "Maria Souza", p.Name)
	assert.Equal(t, s.psy.ID, p.PsychologistID)
	require.NotNil(t, p.Age)
	assert.Equal(t, 34, *p.Age)
	assert.NotContains(t, p.Notes, "script")

	w := s.do(t, http.MethodGet, "/api/patients", s.psy.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []database.Patient
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodGet, "/api/patients", s.other.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodPut, patientPath(p.ID), s.psy.ID, map[string]interface{}{"name": "Maria S."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated database.Patient
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Maria S.", updated.Name)
	assert.Nil(t, updated.Age)

	w = s.do(t, http.MethodGet, patientPath(p.ID), s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, patientNotFound, errorBody(t, w).Message)

	w = s.do(t, http.MethodDelete, patientPath(p.ID), s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, patientPath(p.ID), s.psy.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, patientPath(p.ID), s.psy.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePatientValidation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
		rule  string
	}{
		{name: "missing name", body: map[string]interface{}{"age": 30}, field: "name", rule: "is required"},
		{name: "blank after sanitizing", body: map[string]interface{}{"name": "<i></i>"}},
		{name: "age out of range", body: map[string]interface{}{"name": "Ana", "age": 0}, field: "age", rule: "must be at least 1"},
		{name: "bad email", body: map[string]interface{}{"name": "Ana", "email": "not-an-email"}, field: "email", rule: "must be a valid email address"},
		{name: "wrong type", body: map[string]interface{}{"name": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/patients", s.psy.ID, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, apperrors.CategoryValidation, body.Category)
			if tt.field == "" {
				assert.Empty(t, body.Fields)
				return
			}
			assert.Equal(t, tt.rule, body.Fields[tt.field])
		})
	}

	w := s.do(t, http.MethodGet, "/api/patients/abc", s.psy.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkRoutes(t *testing.T) {
	s := newServer(t)
	p := s.createPatient(t, map[string]interface{}{"name": "Maria Souza"})

	link := s.generateLink(t, p.ID)
	assert.Len(t, link.Token, invitation.TokenLength)
	assert.Equal(t, "https://avaliacao.example.com/assessment/"+link.Token, link.URL)
	assert.Equal(t, 7, link.ExpiryDays)
	assert.False(t, link.EmailSent)

	w := s.do(t, http.MethodPost, patientPath(p.ID)+"/links", s.psy.ID, nil)
	require.Equal(t, http.StatusCreated, w.Code, "an empty body uses the default expiry")

	w = s.do(t, http.MethodPost, patientPath(p.ID)+"/links", s.psy.ID, map[string]interface{}{"expiry_days": 400})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, patientPath(p.ID)+"/links", s.psy.ID, map[string]interface{}{"send_email": true})
	assert.Equal(t, http.StatusBadRequest, w.Code, "patient has no email")

	w = s.do(t, http.MethodPost, patientPath(p.ID)+"/links", s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, patientPath(p.ID)+"/links", s.psy.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []invitation.LinkView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, database.LinkPending, v.Status)
	}

	path := patientPath(p.ID) + "/links/" + strconv.FormatInt(link.ID, 10) + "/whatsapp"
	w = s.do(t, http.MethodGet, path, s.psy.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msg WhatsAppResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Contains(t, msg.Message, link.URL)

	w = s.do(t, http.MethodGet, path, s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicLinkLookup(t *testing.T) {
	s := newServer(t)
	p := s.createPatient(t, map[string]interface{}{"name": "Maria Souza"})
	link := s.generateLink(t, p.ID)

	w := s.do(t, http.MethodGet, "/api/links/"+link.Token, 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public invitation.PublicLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Equal(t, "Maria Souza", public.PatientName)
	assert.Equal(t, database.LinkPending, public.Status)
	assert.NotContains(t, w.Body.String(), "psychologist")

	w = s.do(t, http.MethodGet, "/api/links/short", 0, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing, err := invitation.NewToken()
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, "/api/links/"+missing, 0, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid assessment link", errorBody(t, w).Message)
}

func TestSubmitAndResults(t *testing.T) {
	s := newServer(t)
	p := s.createPatient(t, map[string]interface{}{"name": "Maria Souza", "age": 34})
	link := s.generateLink(t, p.ID)
	submitPath := "/api/links/" + link.Token + "/submit"

	w := s.do(t, http.MethodPost, submitPath, 0, SubmitRequest{Answers: uniform(2)})
	assert.Equal(t, http.StatusBadRequest, w.Code, "2 is not on the answer scale")

	w = s.do(t, http.MethodPost, submitPath, 0, SubmitRequest{Answers: uniform(4)[:10]})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, submitPath, 0, SubmitRequest{Answers: uniform(4)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sub pipeline.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.True(t, sub.Success)
	assert.NotZero(t, sub.ResponseID)

	w = s.do(t, http.MethodPost, submitPath, 0, SubmitRequest{Answers: uniform(4)})
	assert.Equal(t, http.StatusConflict, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.dispatcher.Wait(ctx))

	w = s.do(t, http.MethodGet, patientPath(p.ID)+"/results", s.psy.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Equal(t, p.ID, results.PatientID)
	require.Len(t, results.Results, 1)
	r := results.Results[0]
	assert.Equal(t, pipeline.StatusCompleted, r.Status)
	require.NotNil(t, r.Assessment)
	assert.Equal(t, 100, r.Assessment.IntellectualScore)
	assert.Equal(t, "Superdotado Multidimensional", r.Assessment.GiftednessType)

	w = s.do(t, http.MethodGet, patientPath(p.ID)+"/results", s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	analyzePath := "/api/responses/" + strconv.FormatInt(sub.ResponseID, 10) + "/analyze"
	w = s.do(t, http.MethodPost, analyzePath, s.psy.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "narrative already stored")

	w = s.do(t, http.MethodPost, analyzePath, s.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitExpiredLink(t *testing.T) {
	s := newServer(t)
	p := s.createPatient(t, map[string]interface{}{"name": "Maria Souza"})

	token, err := invitation.NewToken()
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.repo.CreateLink(context.Background(), &database.AssessmentLink{
		PatientID:  p.ID,
		Token:      token,
		ExpiresAt:  &past,
		ExpiryDays: 1,
	}))

	w := s.do(t, http.MethodPost, "/api/links/"+token+"/submit", 0, SubmitRequest{Answers: uniform(1)})
	assert.Equal(t, http.StatusGone, w.Code)

	w = s.do(t, http.MethodGet, "/api/links/"+token, 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public invitation.PublicLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Equal(t, database.LinkExpired, public.Status)
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "Name", expected: "name"},
		{in: "ExpiryDays", expected: "expiry_days"},
		{in: "SendEmail", expected: "send_email"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, snakeCase(tt.in))
		})
	}
}
