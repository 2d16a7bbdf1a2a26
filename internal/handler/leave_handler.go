package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// LeaveHandler handles leave endpoints, including proof attachments.
type LeaveHandler struct {
	service *service.LeaveService
}

// NewLeaveHandler constructs a leave handler.
func NewLeaveHandler(svc *service.LeaveService) *LeaveHandler {
	return &LeaveHandler{service: svc}
}

// ListForUser godoc
// @Summary List a user's leaves
// @Tags Leaves
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/leaves [get]
func (h *LeaveHandler) ListForUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	leaves, err := h.service.ListForUser(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, nil)
}

// ListPending godoc
// @Summary List pending leaves awaiting review
// @Tags Leaves
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaves/pending [get]
func (h *LeaveHandler) ListPending(c *gin.Context) {
	leaves, err := h.service.ListPending(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, nil)
}

// Create godoc
// @Summary File a leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body dto.CreateLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Create(c *gin.Context) {
	var req dto.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave payload"))
		return
	}
	leave, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// Update godoc
// @Summary Edit a pending leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path int true "Leave ID"
// @Param payload body dto.UpdateLeaveRequest true "Leave payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id} [put]
func (h *LeaveHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave payload"))
		return
	}
	leave, err := h.service.Update(c.Request.Context(), claimsFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// SetState godoc
// @Summary Accept or decline a leave
// @Description Accepting a teacher's leave postpones the affected lessons.
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path int true "Leave ID"
// @Param payload body dto.ContractStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/state [put]
func (h *LeaveHandler) SetState(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid state payload"))
		return
	}
	leave, err := h.service.SetState(c.Request.Context(), claimsFromContext(c), id, payload.State)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Delete godoc
// @Summary Delete a pending leave
// @Tags Leaves
// @Produce json
// @Param id path int true "Leave ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id} [delete]
func (h *LeaveHandler) Delete(c *gin.Context) {
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

// AttachProof godoc
// @Summary Upload a proof document for a leave
// @Tags Leaves
// @Accept mpfd
// @Produce json
// @Param id path int true "Leave ID"
// @Param file formData file true "Proof document"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/attachment [post]
func (h *LeaveHandler) AttachProof(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer f.Close()

	leave, err := h.service.AttachProof(c.Request.Context(), claimsFromContext(c), id, fileHeader.Filename, fileHeader.Size, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// AttachmentURL godoc
// @Summary Issue a signed download token for a leave attachment
// @Tags Leaves
// @Produce json
// @Param id path int true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/attachment-url [get]
func (h *LeaveHandler) AttachmentURL(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expires, err := h.service.AttachmentURL(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expires}, nil)
}

// DownloadAttachment godoc
// @Summary Download a leave attachment with a signed token
// @Tags Leaves
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Router /leaves/attachment [get]
func (h *LeaveHandler) DownloadAttachment(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	f, err := h.service.OpenAttachment(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}
