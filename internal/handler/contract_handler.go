package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// ContractHandler handles contract endpoints.
type ContractHandler struct {
	service *service.ContractService
}

// NewContractHandler constructs a contract handler.
func NewContractHandler(svc *service.ContractService) *ContractHandler {
	return &ContractHandler{service: svc}
}

// List godoc
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Param teacher_id query int false "Filter by teacher"
// @Param customer_id query int false "Filter by customer"
// @Param subject_id query int false "Filter by subject"
// @Param state query string false "Filter by state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	var filter models.ContractFilter
	if raw := c.Query("teacher_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.TeacherID = &id
		}
	}
	if raw := c.Query("customer_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.CustomerID = &id
		}
	}
	if raw := c.Query("subject_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.SubjectID = &id
		}
	}
	if raw := c.Query("state"); raw != "" {
		if state, ok := models.ParseContractState(raw); ok {
			filter.State = &state
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	contracts, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, pagination)
}

// Get godoc
// @Summary Get contract by id
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	contract, err := h.service.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Create godoc
// @Summary Create contract
// @Description Creates a recurring contract and materializes its lessons. Teacher id -1 leaves the contract unassigned and accepted.
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body dto.ContractPayload true "Contract payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var payload dto.ContractPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contract payload"))
		return
	}
	contract, err := h.service.Create(c.Request.Context(), claimsFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contract)
}

// Update godoc
// @Summary Update contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param payload body dto.ContractPayload true "Contract payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id} [put]
func (h *ContractHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload dto.ContractPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contract payload"))
		return
	}
	contract, err := h.service.Update(c.Request.Context(), claimsFromContext(c), id, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// SetState godoc
// @Summary Accept or decline a contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param payload body dto.ContractStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id}/state [put]
func (h *ContractHandler) SetState(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ContractStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid state payload"))
		return
	}
	contract, err := h.service.SetState(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Delete godoc
// @Summary Delete contract
// @Description Soft-deletes a contract. Refused while the contract still produces upcoming dates.
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(c *gin.Context) {
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
