package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveNotificationID(t *testing.T) {
	eventID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	t.Run("deterministic per event and recipient", func(t *testing.T) {
		first := domain.DeriveNotificationID(eventID, userA)
		second := domain.DeriveNotificationID(eventID, userA)

		assert.Equal(t, first, second)
	})

	t.Run("distinct recipients get distinct ids", func(t *testing.T) {
		assert.NotEqual(t,
			domain.DeriveNotificationID(eventID, userA),
			domain.DeriveNotificationID(eventID, userB),
		)
	})

	t.Run("distinct events get distinct ids", func(t *testing.T) {
		assert.NotEqual(t,
			domain.DeriveNotificationID(eventID, userA),
			domain.DeriveNotificationID(uuid.New(), userA),
		)
	})
}

func TestNewNotificationFromEvent(t *testing.T) {
	target := uuid.New()
	ev, err := domain.NewEvent(domain.NewEventParams{
		Type:         domain.EventBidOutbid,
		SourceUserID: uuid.New(),
		TargetUserID: &target,
	})
	require.NoError(t, err)

	t.Run("uses provided title and message", func(t *testing.T) {
		n, err := domain.NewNotificationFromEvent(ev, target, "Outbid on vintage lamp", "Someone bid higher")

		require.NoError(t, err)
		assert.Equal(t, domain.DeriveNotificationID(ev.ID, target), n.ID)
		assert.Equal(t, target, n.UserID)
		assert.Equal(t, "Outbid on vintage lamp", n.Title)
		assert.Equal(t, "Someone bid higher", n.Message)
		assert.False(t, n.IsRead)
	})

	t.Run("falls back to type-derived title", func(t *testing.T) {
		n, err := domain.NewNotificationFromEvent(ev, target, "", "")

		require.NoError(t, err)
		assert.Equal(t, "You have been outbid", n.Title)
	})

	t.Run("requires a recipient", func(t *testing.T) {
		_, err := domain.NewNotificationFromEvent(ev, uuid.Nil, "t", "m")

		assert.ErrorIs(t, err, domain.ErrRecipientRequired)
	})
}

func TestNotificationFilter_IsValid(t *testing.T) {
	assert.True(t, domain.FilterAll.IsValid())
	assert.True(t, domain.FilterUnread.IsValid())
	assert.True(t, domain.FilterRead.IsValid())
	assert.False(t, domain.NotificationFilter("archived").IsValid())
}
