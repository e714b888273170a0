package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы споров.
const (
	DisputeStatusPending   = "pending"
	DisputeStatusInReview  = "in-review"
	DisputeStatusResolved  = "resolved"
	DisputeStatusEscalated = "escalated"
)

// Решения администратора по спору.
const (
	DisputeDecisionClient     = "client"
	DisputeDecisionFreelancer = "freelancer"
	DisputeDecisionSplit      = "split"
	DisputeDecisionContinue   = "continue"
)

// ValidDisputeDecisions список валидных решений по спору.
var ValidDisputeDecisions = map[string]struct{}{
	DisputeDecisionClient:     {},
	DisputeDecisionFreelancer: {},
	DisputeDecisionSplit:      {},
	DisputeDecisionContinue:   {},
}

// OpenDisputeStatuses статусы, при которых спор считается открытым.
// На один escrow может существовать только один открытый спор.
// Эскалированный спор остаётся открытым: решение по нему ещё не принято.
var OpenDisputeStatuses = map[string]struct{}{
	DisputeStatusPending:   {},
	DisputeStatusInReview:  {},
	DisputeStatusEscalated: {},
}

// Dispute представляет спор по escrow, разрешаемый администратором.
type Dispute struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	EscrowID        uuid.UUID  `db:"escrow_id" json:"escrow_id"`
	JobID           uuid.UUID  `db:"job_id" json:"job_id"`
	RaisedBy        uuid.UUID  `db:"raised_by" json:"raised_by"`
	Reason          string     `db:"reason" json:"reason"`
	Status          string     `db:"status" json:"status"`
	Decision        *string    `db:"decision" json:"decision,omitempty"`
	ResolutionNotes *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedBy      *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsOpen сообщает, открыт ли ещё спор.
func (d *Dispute) IsOpen() bool {
	_, ok := OpenDisputeStatuses[d.Status]
	return ok
}

// DisputeEvidence описывает файл, приложенный стороной к спору.
type DisputeEvidence struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploadedBy uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"file_path"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
