package event

import (
	"context"
	"sync"

	"github.com/mbeoliero/kit/log"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
)

// Event names
const (
	NameMessageSent         = "message_sent"
	NameConversationCreated = "conversation_created"
	NameMessageFlagged      = "message_flagged"
)

// Event is one published bus event.
type Event interface {
	Name() string
}

// MessageSent is published after a message write is confirmed.
type MessageSent struct {
	Message        *entity.Message
	ConversationId string
}

// Name implements Event
func (MessageSent) Name() string { return NameMessageSent }

// ConversationCreated is published after a new conversation row is inserted.
// It is not republished when creation hits an existing conversation.
type ConversationCreated struct {
	Conversation *entity.Conversation
}

// Name implements Event
func (ConversationCreated) Name() string { return NameConversationCreated }

// MessageFlagged is published after moderation state is persisted.
type MessageFlagged struct {
	MessageId string
	Reason    string
	FlaggedBy string
}

// Name implements Event
func (MessageFlagged) Name() string { return NameMessageFlagged }

// Listener handles one delivered event.
type Listener func(ctx context.Context, evt Event)

type registration struct {
	id int64
	fn Listener
}

// Bus is an in-process publish/subscribe hub decoupling write-path completion
// from live delivery. It is constructed explicitly and passed by reference to
// whichever components publish or subscribe; there is no process-wide instance.
type Bus struct {
	mu        sync.RWMutex
	nextId    int64
	listeners map[string][]registration
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]registration)}
}

// Subscribe registers fn for events with the given name and returns the
// deregistration func. Subscribing and unsubscribing are safe at any time,
// including from within a delivery callback.
func (b *Bus) Subscribe(name string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextId++
	id := b.nextId
	b.listeners[name] = append(b.listeners[name], registration{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.listeners[name]
		for i, reg := range regs {
			if reg.id == id {
				b.listeners[name] = append(append([]registration{}, regs[:i]...), regs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt synchronously to all listeners registered at the time
// of the call, in registration order. A listener panic is logged and does not
// prevent delivery to subsequent listeners.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	regs := b.listeners[evt.Name()]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	b.mu.RUnlock()

	for _, reg := range snapshot {
		b.deliver(ctx, reg, evt)
	}
}

func (b *Bus) deliver(ctx context.Context, reg registration, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(ctx, "event listener panic: event=%s, error=%v", evt.Name(), r)
		}
	}()
	reg.fn(ctx, evt)
}

// ListenerCount returns the number of listeners registered for an event name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}
