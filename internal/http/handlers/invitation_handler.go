package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-core/internal/dto"
	"github.com/ignatzorin/freelance-core/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-core/internal/service"
)

// InvitationHandler обслуживает маршруты приглашений.
type InvitationHandler struct {
	invitations *service.InvitationService
}

// NewInvitationHandler создаёт новый хэндлер.
func NewInvitationHandler(invitations *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// SendInvitation обрабатывает POST /jobs/:id/invitations.
func (h *InvitationHandler) SendInvitation(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	invitation, err := h.invitations.SendInvitation(c.Request.Context(), jobID, req.FreelancerID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

// RespondToInvitation обрабатывает POST /invitations/:id/respond.
// Принятие приглашения заключает контракт по бюджету задания.
func (h *InvitationHandler) RespondToInvitation(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	invitationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RespondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	invitation, contract, err := h.invitations.RespondToInvitation(c.Request.Context(), invitationID, userID, req.Action)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.InvitationResponse{Invitation: invitation, Contract: contract})
}

// ListJobInvitations обрабатывает GET /jobs/:id/invitations.
func (h *InvitationHandler) ListJobInvitations(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	invitations, err := h.invitations.ListJobInvitations(c.Request.Context(), jobID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitations)
}

// ListMyInvitations обрабатывает GET /invitations/my.
func (h *InvitationHandler) ListMyInvitations(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	invitations, err := h.invitations.ListMyInvitations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitations)
}
