package events

import (
	"context"

	"github.com/google/uuid"
)

// Типы событий жизненного цикла. Подписчики (уведомления, чат)
// опираются на эти имена как на контракт.
const (
	BidPlaced           = "bid.placed"
	BidAccepted         = "bid.accepted"
	InvitationSent      = "invitation.sent"
	InvitationResponded = "invitation.responded"
	ContractCreated     = "contract.created"
	EscrowFunded        = "escrow.funded"
	MilestoneReleased   = "milestone.released"
	DisputeCreated      = "dispute.created"
	DisputeResolved     = "dispute.resolved"
)

// Payload описывает событие: кому доставить и на какую сущность
// оно ссылается (пара related_id/related_model).
type Payload struct {
	Recipients   []uuid.UUID `json:"-"`
	RelatedID    uuid.UUID   `json:"related_id"`
	RelatedModel string      `json:"related_model"`
	Data         interface{} `json:"data,omitempty"`
}

// Sink принимает события жизненного цикла. Доставка best effort:
// сбой приёмника никогда не проваливает породившую событие операцию.
type Sink interface {
	Emit(ctx context.Context, event string, payload Payload)
}

// NopSink отбрасывает события. Используется в тестах и когда
// доставка уведомлений не сконфигурирована.
type NopSink struct{}

// Emit ничего не делает.
func (NopSink) Emit(ctx context.Context, event string, payload Payload) {}
