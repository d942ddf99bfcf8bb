package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unicore-dev/uni-records-api/internal/service"
	"github.com/unicore-dev/uni-records-api/pkg/response"
)

// StandingHandler exposes academic standing read and recompute endpoints.
type StandingHandler struct {
	standings *service.StandingService
}

// NewStandingHandler constructs StandingHandler.
func NewStandingHandler(standings *service.StandingService) *StandingHandler {
	return &StandingHandler{standings: standings}
}

// History godoc
// @Summary List a student's standing snapshots, newest semester first
// @Tags Standings
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/standings [get]
func (h *StandingHandler) History(c *gin.Context) {
	standings, err := h.standings.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// Get godoc
// @Summary Fetch a student's standing for one semester
// @Tags Standings
// @Produce json
// @Param id path string true "Student ID"
// @Param semesterId path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/standings/{semesterId} [get]
func (h *StandingHandler) Get(c *gin.Context) {
	standing, err := h.standings.Get(c.Request.Context(), c.Param("id"), c.Param("semesterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// Recompute godoc
// @Summary Recompute a student's standing for one semester
// @Description Administrative backfill; the workflow endpoints recompute automatically.
// @Tags Standings
// @Produce json
// @Param id path string true "Student ID"
// @Param semesterId path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/standings/{semesterId}/recompute [post]
func (h *StandingHandler) Recompute(c *gin.Context) {
	standing, err := h.standings.Recompute(c.Request.Context(), c.Param("id"), c.Param("semesterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}
