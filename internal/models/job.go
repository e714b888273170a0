package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Типы заданий: открытое для откликов или адресное приглашение.
const (
	JobTypeOpen   = "OPEN"
	JobTypeDirect = "DIRECT"
)

// Статусы заданий.
const (
	JobStatusActive     = "ACTIVE"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCancelled  = "CANCELLED"
	JobStatusCompleted  = "COMPLETED"
	JobStatusDisputed   = "DISPUTED"
)

// ValidJobTypes список валидных типов заданий.
var ValidJobTypes = map[string]struct{}{
	JobTypeOpen:   {},
	JobTypeDirect: {},
}

// ValidJobStatuses список валидных статусов заданий.
var ValidJobStatuses = map[string]struct{}{
	JobStatusActive:     {},
	JobStatusInProgress: {},
	JobStatusCancelled:  {},
	JobStatusCompleted:  {},
	JobStatusDisputed:   {},
}

// Job описывает задание, размещённое клиентом.
type Job struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	ClientID             uuid.UUID      `db:"client_id" json:"client_id"`
	AssignedFreelancerID *uuid.UUID     `db:"assigned_freelancer_id" json:"assigned_freelancer_id,omitempty"`
	Title                string         `db:"title" json:"title"`
	Description          string         `db:"description" json:"description"`
	Budget               float64        `db:"budget" json:"budget"`
	Category             string         `db:"category" json:"category"`
	Type                 string         `db:"type" json:"type"`
	Status               string         `db:"status" json:"status"`
	Skills               pq.StringArray `db:"skills" json:"skills"`
	ExperienceLevel      string         `db:"experience_level" json:"experience_level"`
	DeadlineAt           *time.Time     `db:"deadline_at" json:"deadline_at,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
	BidsCount            *int           `db:"bids_count" json:"bids_count,omitempty"`
}

// IsOwnedBy проверяет, принадлежит ли задание пользователю.
func (j *Job) IsOwnedBy(userID uuid.UUID) bool {
	return j.ClientID == userID
}
