package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы откликов.
const (
	BidStatusPending  = "pending"
	BidStatusAccepted = "accepted"
	BidStatusRejected = "rejected"
)

// ValidBidStatuses список валидных статусов откликов.
var ValidBidStatuses = map[string]struct{}{
	BidStatusPending:  {},
	BidStatusAccepted: {},
	BidStatusRejected: {},
}

// Bid представляет отклик фрилансера на открытое задание.
// Пара (job_id, freelancer_id) уникальна.
type Bid struct {
	ID           uuid.UUID `db:"id" json:"id"`
	JobID        uuid.UUID `db:"job_id" json:"job_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Amount       float64   `db:"amount" json:"amount"`
	CoverLetter  string    `db:"cover_letter" json:"cover_letter"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsPending сообщает, можно ли ещё изменять отклик.
func (b *Bid) IsPending() bool {
	return b.Status == BidStatusPending
}

// BidWithJob содержит отклик вместе с данными задания.
// Явный join на уровне репозитория вместо универсальной подгрузки связей.
type BidWithJob struct {
	Bid
	JobTitle    string    `db:"job_title" json:"job_title"`
	JobStatus   string    `db:"job_status" json:"job_status"`
	JobBudget   float64   `db:"job_budget" json:"job_budget"`
	JobClientID uuid.UUID `db:"job_client_id" json:"job_client_id"`
}
