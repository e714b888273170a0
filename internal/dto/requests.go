package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest запрос регистрации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest запрос входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest запрос обновления токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateJobRequest запрос создания задания.
type CreateJobRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description" binding:"required"`
	Budget          float64    `json:"budget" binding:"required"`
	Category        string     `json:"category"`
	Type            string     `json:"type"`
	Skills          []string   `json:"skills"`
	ExperienceLevel string     `json:"experience_level"`
	DeadlineAt      *time.Time `json:"deadline_at"`
}

// PlaceBidRequest запрос отклика на задание.
type PlaceBidRequest struct {
	Amount      float64 `json:"amount" binding:"required"`
	CoverLetter string  `json:"cover_letter"`
}

// UpdateBidRequest запрос изменения отклика.
type UpdateBidRequest struct {
	Amount      float64 `json:"amount" binding:"required"`
	CoverLetter string  `json:"cover_letter"`
}

// SendInvitationRequest запрос приглашения фрилансера.
type SendInvitationRequest struct {
	FreelancerID uuid.UUID `json:"freelancer_id" binding:"required"`
}

// RespondInvitationRequest ответ фрилансера на приглашение.
type RespondInvitationRequest struct {
	Action string `json:"action" binding:"required"`
}

// MilestoneRequest одна веха контракта.
type MilestoneRequest struct {
	Name    string     `json:"name" binding:"required"`
	Amount  float64    `json:"amount" binding:"required"`
	DueDate *time.Time `json:"due_date"`
}

// CreateContractRequest запрос прямого создания контракта.
type CreateContractRequest struct {
	JobID        uuid.UUID          `json:"job_id" binding:"required"`
	FreelancerID uuid.UUID          `json:"freelancer_id" binding:"required"`
	AgreedRate   float64            `json:"agreed_rate" binding:"required"`
	PaymentType  string             `json:"payment_type"`
	Terms        *string            `json:"terms"`
	Deliverables *string            `json:"deliverables"`
	Milestones   []MilestoneRequest `json:"milestones"`
}

// UpdateContractStatusRequest запрос смены статуса контракта.
type UpdateContractStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AddMilestoneRequest запрос добавления вехи.
type AddMilestoneRequest struct {
	Name    string     `json:"name" binding:"required"`
	Amount  float64    `json:"amount" binding:"required"`
	DueDate *time.Time `json:"due_date"`
}

// FundEscrowRequest запрос пополнения escrow.
type FundEscrowRequest struct {
	JobID  uuid.UUID `json:"job_id" binding:"required"`
	Amount float64   `json:"amount" binding:"required"`
}

// CreateDisputeRequest запрос открытия спора.
type CreateDisputeRequest struct {
	EscrowID uuid.UUID `json:"escrow_id" binding:"required"`
	Reason   string    `json:"reason" binding:"required"`
}

// ResolveDisputeRequest решение администратора по спору.
type ResolveDisputeRequest struct {
	Decision         string  `json:"decision" binding:"required"`
	Notes            string  `json:"notes"`
	ClientAmount     float64 `json:"client_amount"`
	FreelancerAmount float64 `json:"freelancer_amount"`
}
