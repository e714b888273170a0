package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Модели, на которые может ссылаться уведомление.
const (
	RelatedModelJob      = "job"
	RelatedModelBid      = "bid"
	RelatedModelContract = "contract"
	RelatedModelEscrow   = "escrow"
	RelatedModelDispute  = "dispute"
)

// Notification описывает событие жизненного цикла, доставленное пользователю.
// Пара related_id/related_model позволяет подписчикам перейти к сущности.
type Notification struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Event        string          `db:"event" json:"event"`
	RelatedID    uuid.UUID       `db:"related_id" json:"related_id"`
	RelatedModel string          `db:"related_model" json:"related_model"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	IsRead       bool            `db:"is_read" json:"is_read"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
