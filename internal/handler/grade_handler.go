package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unicore-dev/uni-records-api/internal/models"
	"github.com/unicore-dev/uni-records-api/internal/service"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
	"github.com/unicore-dev/uni-records-api/pkg/response"
)

// GradeHandler exposes grade submission endpoints.
type GradeHandler struct {
	submissions *service.GradeSubmissionService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(submissions *service.GradeSubmissionService) *GradeHandler {
	return &GradeHandler{submissions: submissions}
}

// Submit godoc
// @Summary Submit a numeric mark for an enrollment
// @Description Records the submission, derives the letter grade and sets it once; a second submission for the same enrollment is rejected.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Submit(c *gin.Context) {
	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// Teachers submit as themselves; only admins may name another submitter.
	if claims := claimsFromContext(c); claims != nil && claims.Role != models.RoleAdmin {
		req.TeacherID = claims.UserID
	}

	submission, err := h.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// History godoc
// @Summary List the grade submission trail for an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradeHandler) History(c *gin.Context) {
	submissions, err := h.submissions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
