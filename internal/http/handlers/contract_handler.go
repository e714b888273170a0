package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/dto"
	"github.com/ignatzorin/freelance-core/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/service"
)

// ContractHandler обслуживает маршруты контрактов и вех оплаты.
type ContractHandler struct {
	contracts *service.ContractService
}

// NewContractHandler создаёт новый хэндлер.
func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// CreateContract обрабатывает POST /contracts.
func (h *ContractHandler) CreateContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	milestones := make([]models.Milestone, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		milestones = append(milestones, models.Milestone{
			Name:    m.Name,
			Amount:  m.Amount,
			DueDate: m.DueDate,
		})
	}

	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = models.PaymentTypeFixed
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), userID, service.CreateContractInput{
		JobID:        req.JobID,
		FreelancerID: req.FreelancerID,
		AgreedRate:   req.AgreedRate,
		PaymentType:  paymentType,
		Terms:        req.Terms,
		Deliverables: req.Deliverables,
		Milestones:   milestones,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// GetContract обрабатывает GET /contracts/:id.
func (h *ContractHandler) GetContract(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), contractID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// GetJobContract обрабатывает GET /jobs/:id/contract.
func (h *ContractHandler) GetJobContract(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.GetJobContract(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ListMyContracts обрабатывает GET /contracts/my.
func (h *ContractHandler) ListMyContracts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	contracts, err := h.contracts.ListMyContracts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts)
}

// UpdateStatus обрабатывает PUT /contracts/:id/status.
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateContractStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	contract, err := h.contracts.UpdateStatus(c.Request.Context(), contractID, userID, req.Status)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// AddMilestone обрабатывает POST /contracts/:id/milestones.
func (h *ContractHandler) AddMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.AddMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	milestone, err := h.contracts.AddMilestone(c.Request.Context(), contractID, userID, req.Name, req.Amount, req.DueDate)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// CompleteMilestone обрабатывает POST /contracts/:id/milestones/:position/complete.
// Выплата по вехе и списание из escrow происходят одной транзакцией.
func (h *ContractHandler) CompleteMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		common.RespondBadRequest(c, "номер вехи должен быть неотрицательным числом")
		return
	}

	milestone, escrow, err := h.contracts.CompleteMilestone(c.Request.Context(), contractID, userID, position)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MilestoneReleaseResponse{Milestone: milestone, Escrow: escrow})
}

// currentUser извлекает userID и роль, отвечая 401 при их отсутствии.
func currentUser(c *gin.Context) (userID uuid.UUID, role string, ok bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return uuid.Nil, "", false
	}
	role, err = common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return uuid.Nil, "", false
	}
	return userID, role, true
}
