package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/pipeline"
)

// ResultsResponse lists the submissions of a patient
type ResultsResponse struct {
	PatientID int64             `json:"patient_id"`
	Results   []pipeline.Result `json:"results"`
}

// ReanalyzeResponse identifies the scheduled analysis
type ReanalyzeResponse struct {
	ResponseID int64  `json:"response_id"`
	JobID      string `json:"job_id"`
}

// GetResults lists submitted answer sets with their narratives
//
//	@Summary	Patient results
//	@Tags		results
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		int	true	"Patient ID"
//	@Success	200	{object}	ResultsResponse
//	@Failure	404	{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id}/results [get]
func (h *Handler) GetResults(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	results, err := h.submissions.GetResults(c.Request.Context(), psyID, patientID)
	if err != nil {
		respondPatientError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResultsResponse{PatientID: patientID, Results: results})
}

// Reanalyze schedules analysis for a response that has no narrative yet
//
//	@Summary	Analyze response
//	@Tags		results
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		int	true	"Response ID"
//	@Success	202	{object}	ReanalyzeResponse
//	@Failure	404	{object}	apperrors.ErrorResponse
//	@Failure	409	{object}	apperrors.ErrorResponse
//	@Router		/api/responses/{id}/analyze [post]
func (h *Handler) Reanalyze(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	responseID, ok := idParam(c, "id")
	if !ok {
		return
	}

	jobID, err := h.submissions.Reanalyze(c.Request.Context(), psyID, responseID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		apperrors.Respond(c, apperrors.NewNotFoundError("Response not found or access denied", err))
		return
	case errors.Is(err, database.ErrAssessmentExists):
		apperrors.Respond(c, apperrors.NewConflictError("Response already has an assessment", err))
		return
	case errors.Is(err, pipeline.ErrAnalysisInProgress):
		apperrors.Respond(c, apperrors.NewConflictError("Analysis already in progress", err))
		return
	case err != nil:
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ReanalyzeResponse{ResponseID: responseID, JobID: jobID})
}
