package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы приглашений.
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusRejected = "rejected"
)

// Действия фрилансера по приглашению.
const (
	InvitationActionAccept = "accept"
	InvitationActionReject = "reject"
)

// Invitation представляет адресное приглашение фрилансера на DIRECT задание.
// Пара (job_id, freelancer_id) уникальна.
type Invitation struct {
	ID           uuid.UUID `db:"id" json:"id"`
	JobID        uuid.UUID `db:"job_id" json:"job_id"`
	ClientID     uuid.UUID `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsPending сообщает, ожидает ли приглашение ответа.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}
