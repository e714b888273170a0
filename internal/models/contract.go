package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы контрактов.
const (
	ContractStatusActive    = "active"
	ContractStatusCompleted = "completed"
	ContractStatusCancelled = "cancelled"
	ContractStatusDisputed  = "disputed"
)

// Типы оплаты контракта.
const (
	PaymentTypeFixed     = "fixed"
	PaymentTypeHourly    = "hourly"
	PaymentTypeMilestone = "milestone"
)

// Статусы вех оплаты.
const (
	MilestoneStatusPending  = "pending"
	MilestoneStatusReleased = "released"
	MilestoneStatusRefunded = "refunded"
)

// ValidContractStatuses список валидных статусов контрактов.
var ValidContractStatuses = map[string]struct{}{
	ContractStatusActive:    {},
	ContractStatusCompleted: {},
	ContractStatusCancelled: {},
	ContractStatusDisputed:  {},
}

// ValidPaymentTypes список валидных типов оплаты.
var ValidPaymentTypes = map[string]struct{}{
	PaymentTypeFixed:     {},
	PaymentTypeHourly:    {},
	PaymentTypeMilestone: {},
}

// Стандартные названия вех при создании контракта через принятие
// отклика или приглашения: 50/50 от ставки.
const (
	MilestoneNameInitial = "Initial Phase"
	MilestoneNameFinal   = "Final Delivery"
)

// Contract описывает соглашение между клиентом и фрилансером.
// На одно задание может существовать ровно один контракт.
type Contract struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	JobID        uuid.UUID   `db:"job_id" json:"job_id"`
	ClientID     uuid.UUID   `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID   `db:"freelancer_id" json:"freelancer_id"`
	AgreedRate   float64     `db:"agreed_rate" json:"agreed_rate"`
	PaymentType  string      `db:"payment_type" json:"payment_type"`
	Terms        *string     `db:"terms" json:"terms,omitempty"`
	Deliverables *string     `db:"deliverables" json:"deliverables,omitempty"`
	Status       string      `db:"status" json:"status"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      *time.Time  `db:"end_date" json:"end_date,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
	Milestones   []Milestone `json:"payment_rules,omitempty"`
}

// Milestone описывает веху оплаты внутри контракта.
type Milestone struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ContractID uuid.UUID  `db:"contract_id" json:"contract_id"`
	Position   int        `db:"position" json:"position"`
	Name       string     `db:"name" json:"name"`
	Amount     float64    `db:"amount" json:"amount"`
	DueDate    *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// IsParty проверяет, является ли пользователь стороной контракта.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	return c.ClientID == userID || c.FreelancerID == userID
}

// MilestonesTotal возвращает сумму всех вех контракта.
func (c *Contract) MilestonesTotal() float64 {
	var total float64
	for _, m := range c.Milestones {
		total += m.Amount
	}
	return total
}

// SplitRate делит ставку на две вехи 50/50. Остаток от округления
// до копеек уходит в финальную веху, чтобы сумма вех совпадала со ставкой.
func SplitRate(rate float64) (first, second float64) {
	first = float64(int64(rate*100/2)) / 100
	second = rate - first
	return first, second
}
