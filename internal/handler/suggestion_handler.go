package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/response"
)

// SuggestionHandler exposes the availability matcher.
type SuggestionHandler struct {
	service *service.SuggestionService
}

// NewSuggestionHandler constructs a suggestion handler.
func NewSuggestionHandler(svc *service.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{service: svc}
}

// Suggest godoc
// @Summary Suggest teachers for a contract
// @Description Returns, per candidate teacher, the weekly windows where the requested customers and the teacher are all free
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param payload body dto.SuggestionRequest true "Suggestion query"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /contracts/suggest [post]
func (h *SuggestionHandler) Suggest(c *gin.Context) {
	var req dto.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion payload"))
		return
	}

	suggestions, err := h.service.Suggest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}
