package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/security"
)

const (
	maxNameLength  = 200
	maxNotesLength = 5000
)

// PatientRequest is the body of patient create and update
type PatientRequest struct {
	Name  string `json:"name" binding:"required"`
	Age   *int   `json:"age" binding:"omitempty,min=1,max=130"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
	Notes string `json:"notes"`
}

// apply validates the request and copies it onto p.
func (r PatientRequest) apply(p *database.Patient) error {
	name, err := security.ValidateText("name", r.Name, maxNameLength)
	if err != nil {
		return apperrors.NewValidationError("Invalid patient", err.Error())
	}
	if name == "" {
		return apperrors.NewValidationError("Invalid patient", "name is required")
	}
	notes, err := security.ValidateText("notes", r.Notes, maxNotesLength)
	if err != nil {
		return apperrors.NewValidationError("Invalid patient", err.Error())
	}

	p.Name = name
	p.Age = r.Age
	p.Email = r.Email
	p.Phone = security.SanitizeText(r.Phone)
	p.Notes = notes
	return nil
}

func bindPatient(c *gin.Context, p *database.Patient) bool {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, bindingError(err))
		return false
	}
	if err := req.apply(p); err != nil {
		apperrors.Respond(c, err)
		return false
	}
	return true
}

// CreatePatient registers a patient for the authenticated psychologist
//
//	@Summary	Create patient
//	@Tags		patients
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		PatientRequest	true	"Patient"
//	@Success	201		{object}	database.Patient
//	@Failure	400		{object}	apperrors.ErrorResponse
//	@Router		/api/patients [post]
func (h *Handler) CreatePatient(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}

	patient := &database.Patient{PsychologistID: psyID}
	if !bindPatient(c, patient) {
		return
	}

	if err := h.patients.CreatePatient(c.Request.Context(), patient); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Patient created", "psychologist_id", psyID, "patient_id", patient.ID)
	c.JSON(http.StatusCreated, patient)
}

// ListPatients lists the patients of the authenticated psychologist
//
//	@Summary	List patients
//	@Tags		patients
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}	database.Patient
//	@Router		/api/patients [get]
func (h *Handler) ListPatients(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}

	patients, err := h.patients.ListPatients(c.Request.Context(), psyID)
	if err != nil {
		respondError(c, err)
		return
	}
	if patients == nil {
		patients = []*database.Patient{}
	}
	c.JSON(http.StatusOK, patients)
}

// GetPatient returns one patient
//
//	@Summary	Get patient
//	@Tags		patients
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		int	true	"Patient ID"
//	@Success	200	{object}	database.Patient
//	@Failure	404	{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id} [get]
func (h *Handler) GetPatient(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	patient, err := h.patients.GetPatient(c.Request.Context(), psyID, patientID)
	if err != nil {
		respondPatientError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

// UpdatePatient replaces the editable fields of a patient
//
//	@Summary	Update patient
//	@Tags		patients
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int				true	"Patient ID"
//	@Param		body	body		PatientRequest	true	"Patient"
//	@Success	200		{object}	database.Patient
//	@Failure	404		{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id} [put]
func (h *Handler) UpdatePatient(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	patient, err := h.patients.GetPatient(ctx, psyID, patientID)
	if err != nil {
		respondPatientError(c, err)
		return
	}
	if !bindPatient(c, patient) {
		return
	}

	if err := h.patients.UpdatePatient(ctx, patient); err != nil {
		respondPatientError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

// DeletePatient removes a patient with its links and results
//
//	@Summary	Delete patient
//	@Tags		patients
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Patient ID"
//	@Success	204
//	@Failure	404	{object}	apperrors.ErrorResponse
//	@Router		/api/patients/{id} [delete]
func (h *Handler) DeletePatient(c *gin.Context) {
	psyID, ok := psychologistID(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.patients.DeletePatient(c.Request.Context(), psyID, patientID); err != nil {
		respondPatientError(c, err)
		return
	}

	h.logger.Info("Patient deleted", "psychologist_id", psyID, "patient_id", patientID)
	c.Status(http.StatusNoContent)
}
