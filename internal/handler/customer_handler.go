package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// CustomerHandler handles customer and school endpoints.
type CustomerHandler struct {
	service *service.CustomerService
}

// NewCustomerHandler constructs a customer handler.
func NewCustomerHandler(svc *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: svc}
}

// List godoc
// @Summary List customers
// @Tags Customers
// @Produce json
// @Param role query string false "Filter by role"
// @Param school_id query int false "Filter by school"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filter.Role = &role
	}
	if raw := c.Query("school_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.SchoolID = &id
		}
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	customers, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, customers, pagination)
}

// Get godoc
// @Summary Get customer by id
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} response.Envelope
// @Router /customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	customer, err := h.service.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, customer, nil)
}

// Create godoc
// @Summary Create customer
// @Tags Customers
// @Accept json
// @Produce json
// @Param payload body dto.CreateCustomerRequest true "Customer payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req dto.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid customer payload"))
		return
	}
	customer, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, customer)
}

// CreateSchool godoc
// @Summary Create school
// @Tags Customers
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *CustomerHandler) CreateSchool(c *gin.Context) {
	var req dto.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	school, err := h.service.CreateSchool(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// Update godoc
// @Summary Update customer profile and availability
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param payload body dto.UpdateCustomerRequest true "Customer payload"
// @Success 200 {object} response.Envelope
// @Router /customers/{id} [put]
func (h *CustomerHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid customer payload"))
		return
	}
	customer, err := h.service.Update(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, customer, nil)
}

// Delete godoc
// @Summary Delete customer
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 204
// @Router /customers/{id} [delete]
func (h *CustomerHandler) Delete(c *gin.Context) {
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
