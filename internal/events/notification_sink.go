package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/goroutine"
	"github.com/ignatzorin/freelance-core/internal/logger"
	"github.com/ignatzorin/freelance-core/internal/models"
)

// NotificationStore сохраняет уведомления.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Broadcaster доставляет событие подключённым клиентам.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// NotificationSink превращает события жизненного цикла в уведомления:
// сохраняет их в хранилище и проталкивает через WebSocket hub.
// Работает асинхронно и никогда не блокирует исходную операцию.
type NotificationSink struct {
	store NotificationStore
	hub   Broadcaster
}

// NewNotificationSink создаёт приёмник событий.
func NewNotificationSink(store NotificationStore, hub Broadcaster) *NotificationSink {
	return &NotificationSink{store: store, hub: hub}
}

// Emit рассылает событие получателям. Ошибки только логируются.
// Контекст запроса отменяется сразу после ответа хэндлера, поэтому
// горутина получает контекст без отмены: уведомление должно сохраниться
// даже после завершения исходного запроса.
func (s *NotificationSink) Emit(ctx context.Context, event string, payload Payload) {
	goroutine.SafeGoWithContext(context.WithoutCancel(ctx), func(ctx context.Context) {
		raw, err := json.Marshal(payload)
		if err != nil {
			logger.Log.Errorf("events: не удалось сериализовать событие %s: %v", event, err)
			return
		}

		for _, userID := range payload.Recipients {
			n := &models.Notification{
				UserID:       userID,
				Event:        event,
				RelatedID:    payload.RelatedID,
				RelatedModel: payload.RelatedModel,
				Payload:      raw,
			}
			if err := s.store.Create(ctx, n); err != nil {
				logger.Log.Errorf("events: не удалось сохранить уведомление %s для %s: %v", event, userID, err)
			}

			if s.hub != nil {
				if err := s.hub.BroadcastToUser(userID, event, payload); err != nil {
					logger.Log.Errorf("events: не удалось отправить событие %s пользователю %s: %v", event, userID, err)
				}
			}
		}
	})
}
