package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-core/internal/dto"
	"github.com/ignatzorin/freelance-core/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-core/internal/service"
)

// EscrowHandler обслуживает маршруты защищённых сделок.
type EscrowHandler struct {
	escrows *service.EscrowService
}

// NewEscrowHandler создаёт новый хэндлер.
func NewEscrowHandler(escrows *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

// Fund обрабатывает POST /escrow.
func (h *EscrowHandler) Fund(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.FundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	escrow, err := h.escrows.Fund(c.Request.Context(), req.JobID, req.Amount, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, escrow)
}

// GetEscrow обрабатывает GET /escrow/:id.
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.GetEscrow(c.Request.Context(), escrowID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// GetJobEscrow обрабатывает GET /jobs/:id/escrow.
func (h *EscrowHandler) GetJobEscrow(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.GetJobEscrow(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// ListMyEscrows обрабатывает GET /escrow/my.
func (h *EscrowHandler) ListMyEscrows(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	escrows, err := h.escrows.ListMyEscrows(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrows)
}

// Release обрабатывает POST /admin/escrow/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	_, role, ok := currentUser(c)
	if !ok {
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.Release(c.Request.Context(), escrowID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Refund обрабатывает POST /admin/escrow/:id/refund.
func (h *EscrowHandler) Refund(c *gin.Context) {
	_, role, ok := currentUser(c)
	if !ok {
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.Refund(c.Request.Context(), escrowID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}
