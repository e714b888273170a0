package dto

import (
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/service"
)

// ErrorResponse стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse ответ регистрации и входа.
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// MilestoneReleaseResponse итог закрытия вехи: сама веха и состояние
// escrow после выплаты.
type MilestoneReleaseResponse struct {
	Milestone *models.Milestone `json:"milestone"`
	Escrow    *models.Escrow    `json:"escrow,omitempty"`
}

// InvitationResponse итог ответа на приглашение. Контракт заполнен
// только при принятии.
type InvitationResponse struct {
	Invitation *models.Invitation `json:"invitation"`
	Contract   *models.Contract   `json:"contract,omitempty"`
}

// DisputeResolutionResponse итог решения по спору.
type DisputeResolutionResponse struct {
	Dispute *models.Dispute `json:"dispute"`
	Escrow  *models.Escrow  `json:"escrow"`
}

// UnreadCountResponse количество непрочитанных уведомлений.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
