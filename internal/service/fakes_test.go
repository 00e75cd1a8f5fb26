package service

import (
	"context"
	"sort"
	"sync"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
)

// fakeConvStore is an in-memory ConversationStore.
type fakeConvStore struct {
	mu         sync.Mutex
	convs      map[string]*entity.Conversation
	createErr  error
	advanceErr error
	archived   []string
}

var _ ConversationStore = (*fakeConvStore)(nil)

func newFakeConvStore(convs ...*entity.Conversation) *fakeConvStore {
	s := &fakeConvStore{convs: make(map[string]*entity.Conversation)}
	for _, c := range convs {
		s.convs[c.Id] = c
	}
	return s
}

func (s *fakeConvStore) Create(ctx context.Context, conv *entity.Conversation) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.CreatedAt == 0 {
		conv.CreatedAt = entity.NowUnixMilli()
		conv.UpdatedAt = conv.CreatedAt
	}
	s.convs[conv.Id] = conv
	return nil
}

func (s *fakeConvStore) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[id], nil
}

func (s *fakeConvStore) GetByParticipantKey(ctx context.Context, vendorId, spaId string, contextType, contextId *string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.Status != entity.ConversationStatusActive {
			continue
		}
		if c.VendorId == vendorId && c.SpaId == spaId &&
			strPtrEq(c.ContextType, contextType) && strPtrEq(c.ContextId, contextId) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeConvStore) List(ctx context.Context, f ConversationFilter) ([]*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range s.convs {
		if f.ParticipantType == entity.UserTypeVendor && c.VendorId != f.ParticipantId {
			continue
		}
		if f.ParticipantType == entity.UserTypeSpa && c.SpaId != f.ParticipantId {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *fakeConvStore) AdvanceLastMessage(ctx context.Context, id string, atMs int64, recipientSide string) error {
	if s.advanceErr != nil {
		return s.advanceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil
	}
	c.LastMessageAt = &atMs
	if recipientSide == entity.SideVendor {
		c.UnreadCountVendor++
	} else {
		c.UnreadCountSpa++
	}
	return nil
}

func (s *fakeConvStore) Archive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, id)
	if c, ok := s.convs[id]; ok {
		c.Status = entity.ConversationStatusArchived
	}
	return nil
}

func (s *fakeConvStore) AggregateUnread(ctx context.Context, participantType, participantId string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, c := range s.convs {
		if c.Status != entity.ConversationStatusActive {
			continue
		}
		if participantType == entity.UserTypeVendor && c.VendorId == participantId {
			total += c.UnreadCountVendor
		}
		if participantType == entity.UserTypeSpa && c.SpaId == participantId {
			total += c.UnreadCountSpa
		}
	}
	return total, nil
}

// fakeMsgStore is an in-memory MessageStore.
type fakeMsgStore struct {
	mu        sync.Mutex
	msgs      map[string]*entity.Message
	order     []string
	createErr error
	flagErr   error
}

var _ MessageStore = (*fakeMsgStore)(nil)

func newFakeMsgStore(msgs ...*entity.Message) *fakeMsgStore {
	s := &fakeMsgStore{msgs: make(map[string]*entity.Message)}
	for _, m := range msgs {
		s.msgs[m.Id] = m
		s.order = append(s.order, m.Id)
	}
	return s
}

func (s *fakeMsgStore) Create(ctx context.Context, msg *entity.Message) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = entity.NowUnixMilli()
	}
	s.msgs[msg.Id] = msg
	s.order = append(s.order, msg.Id)
	return nil
}

func (s *fakeMsgStore) GetById(ctx context.Context, id string) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[id], nil
}

func (s *fakeMsgStore) List(ctx context.Context, f MessageFilter) ([]*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Message
	for _, id := range s.order {
		m := s.msgs[id]
		if m.ConversationId != f.ConversationId {
			continue
		}
		if f.BeforeMs > 0 && m.CreatedAt >= f.BeforeMs {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeMsgStore) SetFlag(ctx context.Context, id, reason string) error {
	if s.flagErr != nil {
		return s.flagErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil
	}
	m.IsFlagged = true
	m.FlaggedReason = &reason
	m.ModerationStatus = entity.ModerationPending
	return nil
}

// fakeReadStore records mark-read calls.
type fakeReadStore struct {
	mu    sync.Mutex
	calls []markReadCall
	err   error
}

type markReadCall struct {
	ConvId     string
	ReaderSide string
	ReaderId   string
	AtMs       int64
}

var _ ReadStore = (*fakeReadStore)(nil)

func (s *fakeReadStore) MarkConversationRead(ctx context.Context, conv *entity.Conversation, readerSide, readerId string, atMs int64) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, markReadCall{ConvId: conv.Id, ReaderSide: readerSide, ReaderId: readerId, AtMs: atMs})
	if readerSide == entity.SideVendor {
		conv.UnreadCountVendor = 0
	} else {
		conv.UnreadCountSpa = 0
	}
	return 1, nil
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func vendorIdentity(userId string) entity.Identity {
	return entity.Identity{UserId: userId, UserType: entity.UserTypeVendor}
}

func spaIdentity(userId string) entity.Identity {
	return entity.Identity{UserId: userId, UserType: entity.UserTypeSpa}
}

func adminIdentity(userId string) entity.Identity {
	return entity.Identity{UserId: userId, UserType: entity.UserTypeAdmin}
}

func activeConv(id, vendorId, spaId string) *entity.Conversation {
	return &entity.Conversation{
		Id:       id,
		VendorId: vendorId,
		SpaId:    spaId,
		Subject:  "Test thread",
		Status:   entity.ConversationStatusActive,
	}
}
