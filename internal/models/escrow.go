package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow. Статусы awaiting_deposit и funded зарезервированы
// под интеграцию с платёжным шлюзом: текущий поток Fund создаёт
// escrow сразу в on-hold.
const (
	EscrowStatusAwaitingDeposit   = "awaiting_deposit"
	EscrowStatusFunded            = "funded"
	EscrowStatusOnHold            = "on-hold"
	EscrowStatusPartiallyReleased = "partially_released"
	EscrowStatusReleased          = "released"
	EscrowStatusRefunded          = "refunded"
	EscrowStatusDisputed          = "disputed"
)

// ValidEscrowStatuses список валидных статусов escrow.
var ValidEscrowStatuses = map[string]struct{}{
	EscrowStatusAwaitingDeposit:   {},
	EscrowStatusFunded:            {},
	EscrowStatusOnHold:            {},
	EscrowStatusPartiallyReleased: {},
	EscrowStatusReleased:          {},
	EscrowStatusRefunded:          {},
	EscrowStatusDisputed:          {},
}

// Escrow представляет защищённую сделку: символический счёт средств
// задания между пополнением и выплатой или возвратом.
// На одно задание может существовать только один escrow.
type Escrow struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	JobID          uuid.UUID  `db:"job_id" json:"job_id"`
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID   uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	TotalAmount    float64    `db:"total_amount" json:"total_amount"`
	HeldAmount     float64    `db:"held_amount" json:"held_amount"`
	ReleasedAmount float64    `db:"released_amount" json:"released_amount"`
	RefundedAmount float64    `db:"refunded_amount" json:"refunded_amount"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ClosedAt       *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// IsParty проверяет, является ли пользователь стороной сделки.
func (e *Escrow) IsParty(userID uuid.UUID) bool {
	return e.ClientID == userID || e.FreelancerID == userID
}

// IsBalanced проверяет инвариант сохранения средств:
// held + released + refunded == total.
func (e *Escrow) IsBalanced() bool {
	const epsilon = 0.005
	diff := e.TotalAmount - (e.HeldAmount + e.ReleasedAmount + e.RefundedAmount)
	return diff < epsilon && diff > -epsilon
}

// IsTerminal сообщает, завершена ли сделка окончательно.
func (e *Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}
