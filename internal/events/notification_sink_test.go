package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-core/internal/logger"
	"github.com/ignatzorin/freelance-core/internal/models"
)

type capturingStore struct {
	saved  chan *models.Notification
	ctxErr chan error
}

func newCapturingStore(capacity int) *capturingStore {
	return &capturingStore{
		saved:  make(chan *models.Notification, capacity),
		ctxErr: make(chan error, capacity),
	}
}

func (s *capturingStore) Create(ctx context.Context, n *models.Notification) error {
	s.ctxErr <- ctx.Err()
	s.saved <- n
	return nil
}

func TestNotificationSink_Emit_SurvivesRequestCancellation(t *testing.T) {
	logger.Init("error")

	store := newCapturingStore(1)
	sink := NewNotificationSink(store, nil)

	// Контекст запроса отменяется сразу после ответа хэндлера.
	// Уведомление всё равно должно быть сохранено.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	userID := uuid.New()
	relatedID := uuid.New()
	sink.Emit(ctx, BidPlaced, Payload{
		Recipients:   []uuid.UUID{userID},
		RelatedID:    relatedID,
		RelatedModel: models.RelatedModelBid,
	})

	select {
	case err := <-store.ctxErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("уведомление не было сохранено")
	}

	n := <-store.saved
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, BidPlaced, n.Event)
	assert.Equal(t, relatedID, n.RelatedID)
	assert.Equal(t, models.RelatedModelBid, n.RelatedModel)
}

func TestNotificationSink_Emit_AllRecipients(t *testing.T) {
	logger.Init("error")

	store := newCapturingStore(2)
	sink := NewNotificationSink(store, nil)

	first := uuid.New()
	second := uuid.New()
	sink.Emit(context.Background(), DisputeResolved, Payload{
		Recipients:   []uuid.UUID{first, second},
		RelatedID:    uuid.New(),
		RelatedModel: models.RelatedModelDispute,
	})

	got := make([]uuid.UUID, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case n := <-store.saved:
			got = append(got, n.UserID)
		case <-time.After(time.Second):
			t.Fatal("не все уведомления были сохранены")
		}
	}
	assert.ElementsMatch(t, []uuid.UUID{first, second}, got)
}
