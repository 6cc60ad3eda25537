package notifications

import (
	"context"
	"testing"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToUserStreams(t *testing.T) {
	hub := NewHub(4, logger.NewNop())
	a := hub.Subscribe("user-1")
	b := hub.Subscribe("user-1")
	other := hub.Subscribe("user-2")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	events := []models.Event{
		{Type: models.EventQuestCompleted, UserID: "user-1", QuestID: "q1"},
		{Type: models.EventLevelUp, UserID: "user-1", Level: 2},
	}
	require.NoError(t, hub.Notify(context.Background(), "user-1", events))

	for _, sub := range []*Subscription{a, b} {
		assert.Equal(t, models.EventQuestCompleted, (<-sub.C).Type)
		assert.Equal(t, models.EventLevelUp, (<-sub.C).Type)
	}
	select {
	case ev := <-other.C:
		t.Fatalf("user-2 received %s", ev.Type)
	default:
	}
}

func TestHub_FullStreamDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, logger.NewNop())
	sub := hub.Subscribe("user-1")
	defer sub.Close()

	events := []models.Event{{Type: models.EventLevelUp}, {Type: models.EventRankUp}, {Type: models.EventBadgeAwarded}}

	done := make(chan struct{})
	go func() {
		_ = hub.Notify(context.Background(), "user-1", events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full stream")
	}

	assert.Equal(t, models.EventLevelUp, (<-sub.C).Type)
	assert.Empty(t, sub.C)
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub(0, logger.NewNop())
	sub := hub.Subscribe("user-1")
	assert.Equal(t, 1, hub.Subscribers("user-1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("user-1"))

	_, ok := <-sub.C
	assert.False(t, ok, "channel closed")

	// notifying a user with no streams is fine
	assert.NoError(t, hub.Notify(context.Background(), "user-1", []models.Event{{Type: models.EventLevelUp}}))
}
