package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unicore-dev/uni-records-api/internal/service"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
	"github.com/unicore-dev/uni-records-api/pkg/response"
)

// AssignmentHandler exposes section and dormitory placement endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type assignBody struct {
	StudentID  string `json:"student_id"`
	SemesterID string `json:"semester_id"`
}

// AssignSection godoc
// @Summary Place a student in a section for a semester
// @Description Replaces any prior section for the (student, semester) pair. Fails with 409 when the section is full.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body assignBody true "Placement payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sections/{id}/assignments [post]
func (h *AssignmentHandler) AssignSection(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.AssignSection(c.Request.Context(), service.AssignSectionRequest{
		StudentID:  body.StudentID,
		SemesterID: body.SemesterID,
		SectionID:  c.Param("id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// AssignDormitory godoc
// @Summary Place a student in a dormitory room for a semester
// @Description Replaces any prior room for the (student, semester) pair. Fails with 409 when the room is full.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Dormitory ID"
// @Param payload body assignBody true "Placement payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dormitories/{id}/assignments [post]
func (h *AssignmentHandler) AssignDormitory(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.AssignDormitory(c.Request.Context(), service.AssignDormitoryRequest{
		StudentID:   body.StudentID,
		SemesterID:  body.SemesterID,
		DormitoryID: c.Param("id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}
