package business_test

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

// fakeDispatcher records every event enqueued per connection.
type fakeDispatcher struct {
	mu      sync.Mutex
	offline map[string]bool
	sent    map[string][]service.Event
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		offline: make(map[string]bool),
		sent:    make(map[string][]service.Event),
	}
}

func (fd *fakeDispatcher) SendToConnection(_ context.Context, connectionID string, evt service.Event) bool {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.offline[connectionID] {
		return false
	}
	fd.sent[connectionID] = append(fd.sent[connectionID], evt)
	return true
}

func (fd *fakeDispatcher) Broadcast(_ context.Context, evt service.Event, excludeConnectionID string) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.sent["*broadcast*"] = append(fd.sent["*broadcast*"], evt)
	_ = excludeConnectionID
}

func (fd *fakeDispatcher) markOffline(connectionID string) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.offline[connectionID] = true
}

func (fd *fakeDispatcher) eventsFor(connectionID string) []service.Event {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	evts := make([]service.Event, len(fd.sent[connectionID]))
	copy(evts, fd.sent[connectionID])
	return evts
}

func (fd *fakeDispatcher) eventNamesFor(connectionID string) []string {
	names := []string{}
	for _, evt := range fd.eventsFor(connectionID) {
		names = append(names, evt.Name)
	}
	return names
}

// fakeMessageRepository keeps messages in a map.
type fakeMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	saveErr  error
}

func newFakeMessageRepository() *fakeMessageRepository {
	return &fakeMessageRepository{messages: make(map[string]*models.Message)}
}

func (fr *fakeMessageRepository) GetByID(_ context.Context, id string) (*models.Message, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	msg, ok := fr.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *msg
	return &cp, nil
}

func (fr *fakeMessageRepository) Save(_ context.Context, msg *models.Message) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.saveErr != nil {
		return fr.saveErr
	}
	if msg.GetID() == "" {
		msg.GenID(context.Background())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	fr.messages[msg.GetID()] = &cp
	return nil
}

func (fr *fakeMessageRepository) MarkConversationRead(
	_ context.Context, senderID, receiverID string,
) (int64, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	var n int64
	for _, msg := range fr.messages {
		if msg.Kind == models.KindDirect && msg.SenderID == senderID &&
			msg.ReceiverID == receiverID && msg.Status != models.StatusRead {
			msg.Status = models.StatusRead
			n++
		}
	}
	return n, nil
}

func (fr *fakeMessageRepository) stored(id string) *models.Message {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	msg := fr.messages[id]
	if msg == nil {
		return nil
	}
	cp := *msg
	return &cp
}

// fakeGroupRepository keeps groups in a map.
type fakeGroupRepository struct {
	mu     sync.Mutex
	groups map[string]*models.Group
}

func newFakeGroupRepository() *fakeGroupRepository {
	return &fakeGroupRepository{groups: make(map[string]*models.Group)}
}

func (fr *fakeGroupRepository) GetByID(_ context.Context, id string) (*models.Group, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	grp, ok := fr.groups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *grp
	return &cp, nil
}

func (fr *fakeGroupRepository) Save(_ context.Context, grp *models.Group) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if grp.GetID() == "" {
		grp.GenID(context.Background())
	}
	cp := *grp
	fr.groups[grp.GetID()] = &cp
	return nil
}

// fakeCallRepository keeps call records in a map.
type fakeCallRepository struct {
	mu    sync.Mutex
	calls map[string]*models.CallRecord
}

func newFakeCallRepository() *fakeCallRepository {
	return &fakeCallRepository{calls: make(map[string]*models.CallRecord)}
}

func (fr *fakeCallRepository) GetByID(_ context.Context, id string) (*models.CallRecord, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	call, ok := fr.calls[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *call
	return &cp, nil
}

func (fr *fakeCallRepository) Save(_ context.Context, call *models.CallRecord) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if call.GetID() == "" {
		call.GenID(context.Background())
	}
	cp := *call
	fr.calls[call.GetID()] = &cp
	return nil
}

func (fr *fakeCallRepository) stored(id string) *models.CallRecord {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	call := fr.calls[id]
	if call == nil {
		return nil
	}
	cp := *call
	return &cp
}
