package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/pipeline"
)

// SubmitRequest carries the 68 answers in question order
type SubmitRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// GetQuestionnaire returns the question texts and the answer scale
//
//	@Summary	Questionnaire catalog
//	@Tags		public
//	@Produce	json
//	@Success	200	{object}	questionnaire.Catalog
//	@Router		/api/questionnaire [get]
func (h *Handler) GetQuestionnaire(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog)
}

// GetLink resolves an invitation token for the respondent
//
//	@Summary	Resolve assessment link
//	@Tags		public
//	@Produce	json
//	@Param		token	path		string	true	"Link token"
//	@Success	200		{object}	invitation.PublicLink
//	@Failure	400		{object}	apperrors.ErrorResponse
//	@Failure	404		{object}	apperrors.ErrorResponse
//	@Router		/api/links/{token} [get]
func (h *Handler) GetLink(c *gin.Context) {
	link, err := h.invitations.GetByToken(c.Request.Context(), c.Param("token"), c.ClientIP())
	if err != nil {
		respondError(c, linkLookupError(err))
		return
	}
	c.JSON(http.StatusOK, link)
}

// SubmitAnswers stores the answer set and starts the analysis
//
//	@Summary	Submit answers
//	@Tags		public
//	@Accept		json
//	@Produce	json
//	@Param		token	path		string			true	"Link token"
//	@Param		body	body		SubmitRequest	true	"Answers"
//	@Success	200		{object}	pipeline.Submission
//	@Failure	400		{object}	apperrors.ErrorResponse
//	@Failure	404		{object}	apperrors.ErrorResponse
//	@Failure	409		{object}	apperrors.ErrorResponse
//	@Failure	410		{object}	apperrors.ErrorResponse
//	@Router		/api/links/{token}/submit [post]
func (h *Handler) SubmitAnswers(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, bindingError(err))
		return
	}

	sub, err := h.submissions.Submit(c.Request.Context(), c.Param("token"), req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// linkLookupError gives token lookups the same errors as submissions.
func linkLookupError(err error) error {
	switch {
	case errors.Is(err, invitation.ErrInvalidRequest):
		return pipeline.ErrMalformedToken
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %w", pipeline.ErrLinkNotFound, err)
	}
	return err
}
