package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
)

func TestConversationService_CreateConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and publishes event", func(t *testing.T) {
		store := newFakeConvStore()
		bus := event.NewBus()
		svc := NewConversationService(store, &fakeReadStore{}, bus)

		var created []*entity.Conversation
		bus.Subscribe(event.NameConversationCreated, func(ctx context.Context, evt event.Event) {
			created = append(created, evt.(event.ConversationCreated).Conversation)
		})

		conv, err := svc.CreateConversation(ctx, vendorIdentity("v1"), &CreateConversationRequest{
			VendorId: "v1",
			SpaId:    "s1",
			Subject:  "Booking question",
		})
		require.NoError(t, err)
		require.NotEmpty(t, conv.Id)
		assert.Equal(t, entity.ConversationStatusActive, conv.Status)
		require.Len(t, created, 1)
		assert.Equal(t, conv.Id, created[0].Id)
	})

	t.Run("idempotent on participant key", func(t *testing.T) {
		store := newFakeConvStore()
		bus := event.NewBus()
		svc := NewConversationService(store, &fakeReadStore{}, bus)

		var eventCount int
		bus.Subscribe(event.NameConversationCreated, func(ctx context.Context, evt event.Event) {
			eventCount++
		})

		req := &CreateConversationRequest{VendorId: "v1", SpaId: "s1", Subject: "First"}
		first, err := svc.CreateConversation(ctx, vendorIdentity("v1"), req)
		require.NoError(t, err)

		// Same key again, even with a different subject, returns the
		// existing conversation unchanged and publishes nothing.
		second, err := svc.CreateConversation(ctx, spaIdentity("s1"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1", Subject: "Second",
		})
		require.NoError(t, err)
		assert.Equal(t, first.Id, second.Id)
		assert.Equal(t, "First", second.Subject)
		assert.Equal(t, 1, eventCount)
	})

	t.Run("distinct context creates distinct conversation", func(t *testing.T) {
		store := newFakeConvStore()
		svc := NewConversationService(store, &fakeReadStore{}, event.NewBus())

		first, err := svc.CreateConversation(ctx, vendorIdentity("v1"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1",
		})
		require.NoError(t, err)

		orderType := "order"
		orderId := "o42"
		second, err := svc.CreateConversation(ctx, vendorIdentity("v1"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1", ContextType: &orderType, ContextId: &orderId,
		})
		require.NoError(t, err)
		assert.NotEqual(t, first.Id, second.Id)
	})

	t.Run("participant must be in the conversation", func(t *testing.T) {
		svc := NewConversationService(newFakeConvStore(), &fakeReadStore{}, event.NewBus())

		_, err := svc.CreateConversation(ctx, vendorIdentity("v2"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1",
		})
		assert.Equal(t, errcode.ErrNoPermission, err)

		_, err = svc.CreateConversation(ctx, spaIdentity("s2"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1",
		})
		assert.Equal(t, errcode.ErrNoPermission, err)

		// Admin may create on behalf of others.
		_, err = svc.CreateConversation(ctx, adminIdentity("a1"), &CreateConversationRequest{
			VendorId: "v1", SpaId: "s1",
		})
		assert.NoError(t, err)
	})

	t.Run("validation failures are field errors", func(t *testing.T) {
		svc := NewConversationService(newFakeConvStore(), &fakeReadStore{}, event.NewBus())

		_, err := svc.CreateConversation(ctx, vendorIdentity("v1"), &CreateConversationRequest{})
		require.Error(t, err)
		verr, ok := err.(*errcode.ValidationError)
		require.True(t, ok)
		assert.Len(t, verr.Fields, 2)
	})
}

func TestConversationService_GetConversations(t *testing.T) {
	ctx := context.Background()
	store := newFakeConvStore(
		activeConv("c1", "v1", "s1"),
		activeConv("c2", "v1", "s2"),
		activeConv("c3", "v2", "s1"),
	)
	svc := NewConversationService(store, &fakeReadStore{}, event.NewBus())

	convs, err := svc.GetConversations(ctx, vendorIdentity("v1"), "", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = svc.GetConversations(ctx, spaIdentity("s1"), "", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	_, err = svc.GetConversations(ctx, adminIdentity("a1"), "", "", 0, 0)
	assert.Equal(t, errcode.ErrNoPermission, err)
}

func TestConversationService_GetConversation(t *testing.T) {
	ctx := context.Background()
	store := newFakeConvStore(activeConv("c1", "v1", "s1"))
	svc := NewConversationService(store, &fakeReadStore{}, event.NewBus())

	t.Run("participant can read", func(t *testing.T) {
		conv, err := svc.GetConversation(ctx, vendorIdentity("v1"), "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", conv.Id)
	})

	t.Run("admin can read", func(t *testing.T) {
		_, err := svc.GetConversation(ctx, adminIdentity("a1"), "c1")
		assert.NoError(t, err)
	})

	t.Run("non-participant denied", func(t *testing.T) {
		_, err := svc.GetConversation(ctx, vendorIdentity("v2"), "c1")
		assert.Equal(t, errcode.ErrNoPermission, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.GetConversation(ctx, vendorIdentity("v1"), "missing")
		assert.Equal(t, errcode.ErrConvNotFound, err)
	})
}

func TestConversationService_MarkAsRead(t *testing.T) {
	ctx := context.Background()

	conv := activeConv("c1", "v1", "s1")
	conv.UnreadCountSpa = 3
	store := newFakeConvStore(conv)
	reads := &fakeReadStore{}
	svc := NewConversationService(store, reads, event.NewBus())

	err := svc.MarkAsRead(ctx, spaIdentity("s1"), "c1")
	require.NoError(t, err)

	require.Len(t, reads.calls, 1)
	call := reads.calls[0]
	assert.Equal(t, "c1", call.ConvId)
	assert.Equal(t, entity.SideSpa, call.ReaderSide)
	assert.Equal(t, "s1", call.ReaderId)
	assert.Positive(t, call.AtMs)
	assert.Zero(t, conv.UnreadCountSpa)

	t.Run("admin is not a reader side", func(t *testing.T) {
		err := svc.MarkAsRead(ctx, adminIdentity("a1"), "c1")
		assert.Equal(t, errcode.ErrNotParticipant, err)
	})

	t.Run("mark read is idempotent", func(t *testing.T) {
		err := svc.MarkAsRead(ctx, spaIdentity("s1"), "c1")
		require.NoError(t, err)
		assert.Zero(t, conv.UnreadCountSpa)
	})
}

func TestConversationService_ArchiveConversation(t *testing.T) {
	ctx := context.Background()
	store := newFakeConvStore(activeConv("c1", "v1", "s1"))
	svc := NewConversationService(store, &fakeReadStore{}, event.NewBus())

	require.NoError(t, svc.ArchiveConversation(ctx, vendorIdentity("v1"), "c1"))
	assert.Equal(t, []string{"c1"}, store.archived)

	// Archiving again short-circuits without another store write.
	require.NoError(t, svc.ArchiveConversation(ctx, vendorIdentity("v1"), "c1"))
	assert.Equal(t, []string{"c1"}, store.archived)

	assert.Equal(t, errcode.ErrNoPermission, svc.ArchiveConversation(ctx, vendorIdentity("v2"), "c1"))
}

func TestConversationService_GetUnreadCount(t *testing.T) {
	ctx := context.Background()

	c1 := activeConv("c1", "v1", "s1")
	c1.UnreadCountVendor = 2
	c2 := activeConv("c2", "v1", "s2")
	c2.UnreadCountVendor = 3
	c3 := activeConv("c3", "v1", "s3")
	c3.UnreadCountVendor = 5
	c3.Status = entity.ConversationStatusArchived

	svc := NewConversationService(newFakeConvStore(c1, c2, c3), &fakeReadStore{}, event.NewBus())

	// Archived conversations do not count.
	total, err := svc.GetUnreadCount(ctx, vendorIdentity("v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = svc.GetUnreadCount(ctx, adminIdentity("a1"))
	assert.Equal(t, errcode.ErrNoPermission, err)
}

func TestConversationService_SubscribeConversations(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus()
	svc := NewConversationService(newFakeConvStore(), &fakeReadStore{}, bus)

	sub, err := svc.SubscribeConversations(ctx, spaIdentity("s1"))
	require.NoError(t, err)
	defer sub.Close()

	bus.Publish(ctx, event.ConversationCreated{Conversation: activeConv("c1", "v1", "s1")})
	bus.Publish(ctx, event.ConversationCreated{Conversation: activeConv("c2", "v1", "s2")})

	// Only the conversation involving s1 is queued.
	require.Equal(t, 1, sub.Pending())
	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", evt.(event.ConversationCreated).Conversation.Id)

	_, err = svc.SubscribeConversations(ctx, adminIdentity("a1"))
	assert.Equal(t, errcode.ErrNoPermission, err)
}
