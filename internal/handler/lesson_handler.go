package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// LessonHandler handles lesson endpoints.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler constructs a lesson handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List lessons
// @Description Teachers see only lessons of their own contracts.
// @Tags Lessons
// @Produce json
// @Param contract_id query int false "Filter by contract"
// @Param state query string false "Filter by state"
// @Param from query string false "Earliest date (YYYY-MM-DD)"
// @Param to query string false "Latest date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	var filter models.LessonFilter
	if raw := c.Query("contract_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.ContractID = &id
		}
	}
	if raw := c.Query("state"); raw != "" {
		if state, ok := models.ParseLessonState(raw); ok {
			filter.State = &state
		}
	}
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &from
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &to
		}
	}

	lessons, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// Update godoc
// @Summary Record the outcome of a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param payload body dto.UpdateLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}
