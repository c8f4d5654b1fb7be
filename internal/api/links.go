package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
)

// GenerateLinkRequest is the body of link creation. Both fields are optional.
type GenerateLinkRequest struct {
	ExpiryDays int  `json:"expiry_days"`
	SendEmail  bool `json:"send_email"`
}

// WhatsAppResponse carries the share text for a link
type WhatsAppResponse struct {
	Message string `json:"message"`
}

// GenerateLink creates an invitation link for a patient
//
//	@Summary	Generate assessment link
//	@Tags		links
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int					true	"Patient ID"
//	@Param		body	body		GenerateLinkRequest	false	"Options"
//	@Success	201		{object}	invitation.GeneratedLink
//	@Failure	400		{object}	apperrors.ErrorResponse
//	@Failure	404		{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id}/links [post]
func (h *Handler) GenerateLink(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req GenerateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apperrors.Respond(c, bindingError(err))
		return
	}

	link, err := h.invitations.GenerateLink(c.Request.Context(), invitation.GenerateRequest{
		PsychologistID: psyID,
		PatientID:      patientID,
		ExpiryDays:     req.ExpiryDays,
		SendEmail:      req.SendEmail,
	})
	if err != nil {
		respondPatientError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// ListLinks lists the links of a patient
//
//	@Summary	List assessment links
//	@Tags		links
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path	int	true	"Patient ID"
//	@Success	200	{array}	invitation.LinkView
//	@Failure	404	{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id}/links [get]
func (h *Handler) ListLinks(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	links, err := h.invitations.ListLinks(c.Request.Context(), psyID, patientID)
	if err != nil {
		respondPatientError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// WhatsAppMessage renders the share text for a link
//
//	@Summary	WhatsApp share text
//	@Tags		links
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id		path		int	true	"Patient ID"
//	@Param		linkId	path		int	true	"Link ID"
//	@Success	200		{object}	WhatsAppResponse
//	@Failure	404		{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id}/links/{linkId}/whatsapp [get]
func (h *Handler) WhatsAppMessage(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}
	linkID, ok := idParam(c, "linkId")
	if !ok {
		return
	}

	msg, err := h.invitations.WhatsAppMessage(c.Request.Context(), psyID, patientID, linkID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, WhatsAppResponse{Message: msg})
}
