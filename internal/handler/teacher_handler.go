package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// TeacherHandler handles teacher endpoints, including the hiring
// pipeline and schedule conflict lookups.
type TeacherHandler struct {
	service   *service.TeacherService
	conflicts *service.ConflictService
}

// NewTeacherHandler constructs a teacher handler.
func NewTeacherHandler(svc *service.TeacherService, conflicts *service.ConflictService) *TeacherHandler {
	return &TeacherHandler{service: svc, conflicts: conflicts}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search keyword"
// @Param deleted query bool false "Include deleted"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	var filter models.UserFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("deleted"); raw != "" {
		if deleted, err := strconv.ParseBool(raw); err == nil {
			filter.Deleted = &deleted
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	teachers, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher by id
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	teacher, err := h.service.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Register a teacher applicant
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body dto.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req dto.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher profile and availability
// @Description Availability is replaced wholesale; an empty slot list means always available.
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path int true "Teacher ID"
// @Param payload body dto.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.service.Update(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// SetApplicationState godoc
// @Summary Advance a teacher through the hiring pipeline
// @Description Only single forward steps are allowed: CREATED, INTERVIEW, APPLIED, CONTRACT, EMPLOYED.
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path int true "Teacher ID"
// @Param payload body dto.ApplicationStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/application-state [put]
func (h *TeacherHandler) SetApplicationState(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApplicationStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid state payload"))
		return
	}
	teacher, err := h.service.SetApplicationState(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Delete godoc
// @Summary Delete teacher
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BlockedContracts godoc
// @Summary Contracts producing dates in a range
// @Description Lists the teacher's contracts that materialize at least one lesson between from and to.
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/blocked-contracts [get]
func (h *TeacherHandler) BlockedContracts(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	from, to, err := rangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	contracts, err := h.conflicts.BlockedContracts(c.Request.Context(), id, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, nil)
}

// IntersectingLeaves godoc
// @Summary Accepted leaves intersecting a range
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/intersecting-leaves [get]
func (h *TeacherHandler) IntersectingLeaves(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	from, to, err := rangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	leaves, err := h.conflicts.IntersectingLeaves(c.Request.Context(), id, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, nil)
}

func rangeQuery(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid from date")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid to date")
	}
	return from, to, nil
}
