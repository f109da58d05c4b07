package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	sourceID := uuid.New()
	targetID := uuid.New()

	t.Run("direct event", func(t *testing.T) {
		ev, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventMessage,
			SourceUserID: sourceID,
			TargetUserID: &targetID,
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, ev.ID)
		assert.True(t, ev.IsDirect())
		assert.Equal(t, "user:"+targetID.String(), ev.Scope())
	})

	t.Run("room event", func(t *testing.T) {
		ev, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventBidPlaced,
			SourceUserID: sourceID,
			RoomKey:      "listing:42",
		})

		require.NoError(t, err)
		assert.False(t, ev.IsDirect())
		assert.Equal(t, "room:listing:42", ev.Scope())
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventType("typo"),
			SourceUserID: sourceID,
			TargetUserID: &targetID,
		})

		assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	})

	t.Run("rejects both target and room", func(t *testing.T) {
		_, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventMessage,
			SourceUserID: sourceID,
			TargetUserID: &targetID,
			RoomKey:      "listing:42",
		})

		assert.ErrorIs(t, err, domain.ErrAmbiguousDestination)
	})

	t.Run("rejects neither target nor room", func(t *testing.T) {
		_, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventMessage,
			SourceUserID: sourceID,
		})

		assert.ErrorIs(t, err, domain.ErrAmbiguousDestination)
	})

	t.Run("nil target uuid counts as unset", func(t *testing.T) {
		nilID := uuid.Nil
		_, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventMessage,
			SourceUserID: sourceID,
			TargetUserID: &nilID,
		})

		assert.ErrorIs(t, err, domain.ErrAmbiguousDestination)
	})
}

func TestEventType_Classification(t *testing.T) {
	assert.True(t, domain.EventMessage.IsNotificationWorthy())
	assert.True(t, domain.EventBidOutbid.IsNotificationWorthy())
	assert.True(t, domain.EventNotification.IsNotificationWorthy())
	assert.False(t, domain.EventBidPlaced.IsNotificationWorthy())
	assert.False(t, domain.EventPresenceChange.IsNotificationWorthy())

	// Only explicit notifications stay durable after live delivery.
	assert.True(t, domain.EventNotification.IsDurable())
	assert.False(t, domain.EventMessage.IsDurable())
	assert.False(t, domain.EventBidOutbid.IsDurable())
}
