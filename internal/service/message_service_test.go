package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
)

func TestMessageService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("persists then publishes", func(t *testing.T) {
		conv := activeConv("c1", "v1", "s1")
		convStore := newFakeConvStore(conv)
		msgStore := newFakeMsgStore()
		bus := event.NewBus()
		svc := NewMessageService(msgStore, convStore, bus)

		var published []*entity.Message
		var msgInStoreAtPublish bool
		bus.Subscribe(event.NameMessageSent, func(ctx context.Context, evt event.Event) {
			sent := evt.(event.MessageSent)
			published = append(published, sent.Message)
			got, _ := msgStore.GetById(ctx, sent.Message.Id)
			msgInStoreAtPublish = got != nil
		})

		msg, err := svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{
			ConversationId: "c1",
			SenderName:     "Jade Supply Co",
			Content:        "Shipment confirmed",
		})
		require.NoError(t, err)

		assert.Equal(t, entity.SenderTypeVendor, msg.SenderType)
		assert.Equal(t, "v1", msg.SenderId)
		assert.Equal(t, entity.ContentTypeText, msg.ContentType)
		assert.Equal(t, entity.ModerationApproved, msg.ModerationStatus)
		assert.Positive(t, msg.CreatedAt)

		require.Len(t, published, 1)
		assert.Equal(t, msg.Id, published[0].Id)
		assert.True(t, msgInStoreAtPublish, "event must publish only after the write is confirmed")
	})

	t.Run("advances counters for the recipient", func(t *testing.T) {
		conv := activeConv("c1", "v1", "s1")
		convStore := newFakeConvStore(conv)
		svc := NewMessageService(newFakeMsgStore(), convStore, event.NewBus())

		msg, err := svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{
			ConversationId: "c1", Content: "hello",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), conv.UnreadCountSpa)
		assert.Zero(t, conv.UnreadCountVendor)
		require.NotNil(t, conv.LastMessageAt)
		assert.Equal(t, msg.CreatedAt, *conv.LastMessageAt)

		// Reply bumps the other counter.
		_, err = svc.SendMessage(ctx, spaIdentity("s1"), &SendMessageRequest{
			ConversationId: "c1", Content: "hi back",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), conv.UnreadCountVendor)
	})

	t.Run("counter failure does not fail the send", func(t *testing.T) {
		conv := activeConv("c1", "v1", "s1")
		convStore := newFakeConvStore(conv)
		convStore.advanceErr = assert.AnError
		bus := event.NewBus()
		svc := NewMessageService(newFakeMsgStore(), convStore, bus)

		var publishedCount int
		bus.Subscribe(event.NameMessageSent, func(ctx context.Context, evt event.Event) {
			publishedCount++
		})

		_, err := svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{
			ConversationId: "c1", Content: "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, publishedCount)
		assert.Zero(t, conv.UnreadCountSpa)
	})

	t.Run("non-participant rejected", func(t *testing.T) {
		convStore := newFakeConvStore(activeConv("c1", "v1", "s1"))
		svc := NewMessageService(newFakeMsgStore(), convStore, event.NewBus())

		_, err := svc.SendMessage(ctx, vendorIdentity("v2"), &SendMessageRequest{
			ConversationId: "c1", Content: "hello",
		})
		assert.Equal(t, errcode.ErrNotParticipant, err)

		_, err = svc.SendMessage(ctx, adminIdentity("a1"), &SendMessageRequest{
			ConversationId: "c1", Content: "hello",
		})
		assert.Equal(t, errcode.ErrNotParticipant, err)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		svc := NewMessageService(newFakeMsgStore(), newFakeConvStore(), event.NewBus())

		_, err := svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{
			ConversationId: "missing", Content: "hello",
		})
		assert.Equal(t, errcode.ErrConvNotFound, err)
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewMessageService(newFakeMsgStore(), newFakeConvStore(), event.NewBus())

		cases := []struct {
			name string
			req  SendMessageRequest
		}{
			{"missing conversation", SendMessageRequest{Content: "x"}},
			{"empty body", SendMessageRequest{ConversationId: "c1"}},
			{"content too long", SendMessageRequest{ConversationId: "c1", Content: strings.Repeat("a", MaxContentLength+1)}},
			{"bad content type", SendMessageRequest{ConversationId: "c1", Content: "x", ContentType: "markdown"}},
			{"attachment without url", SendMessageRequest{ConversationId: "c1", Attachments: entity.AttachmentList{{Filename: "a.pdf"}}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.SendMessage(ctx, vendorIdentity("v1"), &tc.req)
				var verr *errcode.ValidationError
				require.ErrorAs(t, err, &verr)
			})
		}
	})

	t.Run("attachments only is a valid body", func(t *testing.T) {
		convStore := newFakeConvStore(activeConv("c1", "v1", "s1"))
		svc := NewMessageService(newFakeMsgStore(), convStore, event.NewBus())

		msg, err := svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{
			ConversationId: "c1",
			Attachments:    entity.AttachmentList{{Url: "https://cdn.example.com/a.pdf", Filename: "a.pdf"}},
		})
		require.NoError(t, err)
		assert.Len(t, msg.Attachments, 1)
	})
}

func TestMessageService_SendSystemMessage(t *testing.T) {
	ctx := context.Background()
	conv := activeConv("c1", "v1", "s1")
	convStore := newFakeConvStore(conv)
	bus := event.NewBus()
	svc := NewMessageService(newFakeMsgStore(), convStore, bus)

	var publishedCount int
	bus.Subscribe(event.NameMessageSent, func(ctx context.Context, evt event.Event) {
		publishedCount++
	})

	msg, err := svc.SendSystemMessage(ctx, "c1", "Conversation archived by moderation")
	require.NoError(t, err)

	assert.Equal(t, entity.SenderTypeSystem, msg.SenderType)
	assert.True(t, msg.IsSystemMessage)
	assert.Equal(t, 1, publishedCount)

	// System messages do not bump participant unread counters.
	assert.Zero(t, conv.UnreadCountVendor)
	assert.Zero(t, conv.UnreadCountSpa)
}

func TestMessageService_GetMessages(t *testing.T) {
	ctx := context.Background()
	convStore := newFakeConvStore(activeConv("c1", "v1", "s1"))
	msgStore := newFakeMsgStore(
		&entity.Message{Id: "m1", ConversationId: "c1", SenderType: entity.SenderTypeVendor, SenderId: "v1", Content: "one", CreatedAt: 100},
		&entity.Message{Id: "m2", ConversationId: "c1", SenderType: entity.SenderTypeSpa, SenderId: "s1", Content: "two", CreatedAt: 200},
		&entity.Message{Id: "m3", ConversationId: "c2", SenderType: entity.SenderTypeVendor, SenderId: "v1", Content: "other", CreatedAt: 300},
	)
	svc := NewMessageService(msgStore, convStore, event.NewBus())

	t.Run("participant reads history", func(t *testing.T) {
		msgs, err := svc.GetMessages(ctx, spaIdentity("s1"), MessageFilter{ConversationId: "c1"})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].Id)
		assert.Equal(t, "m2", msgs[1].Id)
	})

	t.Run("cursor excludes newer messages", func(t *testing.T) {
		msgs, err := svc.GetMessages(ctx, spaIdentity("s1"), MessageFilter{ConversationId: "c1", BeforeMs: 200})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].Id)
	})

	t.Run("non-participant denied", func(t *testing.T) {
		_, err := svc.GetMessages(ctx, spaIdentity("s2"), MessageFilter{ConversationId: "c1"})
		assert.Equal(t, errcode.ErrNoPermission, err)
	})
}

func TestMessageService_FlagMessage(t *testing.T) {
	ctx := context.Background()

	newSvc := func() (*MessageService, *fakeMsgStore, *event.Bus) {
		msgStore := newFakeMsgStore(&entity.Message{
			Id: "m1", ConversationId: "c1", SenderType: entity.SenderTypeVendor,
			SenderId: "v1", Content: "spam", ModerationStatus: entity.ModerationApproved,
		})
		bus := event.NewBus()
		return NewMessageService(msgStore, newFakeConvStore(), bus), msgStore, bus
	}

	t.Run("admin flags and event fires", func(t *testing.T) {
		svc, msgStore, bus := newSvc()

		var flagged []event.MessageFlagged
		bus.Subscribe(event.NameMessageFlagged, func(ctx context.Context, evt event.Event) {
			flagged = append(flagged, evt.(event.MessageFlagged))
		})

		require.NoError(t, svc.FlagMessage(ctx, adminIdentity("a1"), "m1", "spam content"))

		msg, _ := msgStore.GetById(ctx, "m1")
		assert.True(t, msg.IsFlagged)
		require.NotNil(t, msg.FlaggedReason)
		assert.Equal(t, "spam content", *msg.FlaggedReason)
		assert.Equal(t, entity.ModerationPending, msg.ModerationStatus)

		require.Len(t, flagged, 1)
		assert.Equal(t, "m1", flagged[0].MessageId)
		assert.Equal(t, "a1", flagged[0].FlaggedBy)
	})

	t.Run("participants cannot flag", func(t *testing.T) {
		svc, _, _ := newSvc()
		assert.Equal(t, errcode.ErrNoPermission, svc.FlagMessage(ctx, vendorIdentity("v1"), "m1", "r"))
		assert.Equal(t, errcode.ErrNoPermission, svc.FlagMessage(ctx, spaIdentity("s1"), "m1", "r"))
	})

	t.Run("unknown message", func(t *testing.T) {
		svc, _, _ := newSvc()
		assert.Equal(t, errcode.ErrMessageNotFound, svc.FlagMessage(ctx, adminIdentity("a1"), "missing", "r"))
	})
}

func TestMessageService_SubscribeMessages(t *testing.T) {
	ctx := context.Background()
	convStore := newFakeConvStore(activeConv("c1", "v1", "s1"), activeConv("c2", "v1", "s2"))
	msgStore := newFakeMsgStore()
	bus := event.NewBus()
	svc := NewMessageService(msgStore, convStore, bus)

	sub, err := svc.SubscribeMessages(ctx, vendorIdentity("v1"), "c1")
	require.NoError(t, err)
	defer sub.Close()

	_, err = svc.SendMessage(ctx, vendorIdentity("v1"), &SendMessageRequest{ConversationId: "c2", Content: "elsewhere"})
	require.NoError(t, err)
	sent, err := svc.SendMessage(ctx, spaIdentity("s1"), &SendMessageRequest{ConversationId: "c1", Content: "here"})
	require.NoError(t, err)

	// Only the subscribed conversation's message is delivered, exactly once.
	require.Equal(t, 1, sub.Pending())
	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent.Id, evt.(event.MessageSent).Message.Id)
	assert.Equal(t, 0, sub.Pending())

	t.Run("non-participant denied", func(t *testing.T) {
		_, err := svc.SubscribeMessages(ctx, spaIdentity("s2"), "c1")
		assert.Equal(t, errcode.ErrNoPermission, err)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := svc.SubscribeMessages(ctx, vendorIdentity("v1"), "missing")
		assert.Equal(t, errcode.ErrConvNotFound, err)
	})
}
