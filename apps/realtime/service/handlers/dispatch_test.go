package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/business"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type recordingDispatcher struct {
	sent map[string][]service.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{sent: make(map[string][]service.Event)}
}

func (rd *recordingDispatcher) SendToConnection(_ context.Context, connID string, evt service.Event) bool {
	rd.sent[connID] = append(rd.sent[connID], evt)
	return true
}

func (rd *recordingDispatcher) Broadcast(_ context.Context, evt service.Event, _ string) {
	rd.sent["*broadcast*"] = append(rd.sent["*broadcast*"], evt)
}

// stubMessages records the last call per operation and fails on demand.
type stubMessages struct {
	business.MessageBusiness

	lastSend business.SendMessageInput
	sendErr  error
	readIDs  []string
	deleted  []string
}

func (s *stubMessages) Send(_ context.Context, in business.SendMessageInput) (*models.Message, error) {
	s.lastSend = in
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &models.Message{SenderID: in.SenderID, ReceiverID: in.ReceiverID, Content: in.Content}, nil
}

func (s *stubMessages) MarkRead(_ context.Context, _, messageID string) error {
	s.readIDs = append(s.readIDs, messageID)
	return nil
}

func (s *stubMessages) Delete(_ context.Context, _, messageID, scope string) error {
	s.deleted = append(s.deleted, messageID+"/"+scope)
	return nil
}

type stubGroups struct {
	business.GroupBusiness

	joinedGroup string
	sendErr     error
}

func (s *stubGroups) Join(_ context.Context, _, _, groupID string) (*models.Group, error) {
	s.joinedGroup = groupID
	return &models.Group{}, nil
}

func (s *stubGroups) Send(_ context.Context, in business.SendGroupMessageInput) (*models.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &models.Message{GroupID: in.GroupID, Content: in.Content}, nil
}

type stubCalls struct {
	business.CallBusiness

	relayed  []string
	endedIDs []string
}

func (s *stubCalls) Initiate(_ context.Context, callerID, kind, _ string) (*models.CallRecord, error) {
	return &models.CallRecord{CallerID: callerID, Kind: kind}, nil
}

func (s *stubCalls) End(_ context.Context, _, callID string) error {
	s.endedIDs = append(s.endedIDs, callID)
	return nil
}

func (s *stubCalls) Relay(_ context.Context, _, callID, eventName string, _ any) error {
	s.relayed = append(s.relayed, eventName+"/"+callID)
	return nil
}

type routerFixture struct {
	dispatcher *recordingDispatcher
	messages   *stubMessages
	groups     *stubGroups
	calls      *stubCalls
	router     *Router
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		dispatcher: newRecordingDispatcher(),
		messages:   &stubMessages{},
		groups:     &stubGroups{},
		calls:      &stubCalls{},
	}
	f.router = NewRouter(f.messages, f.groups, f.calls, f.dispatcher)
	return f
}

func TestRouteMessageSendAck(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"message:send","payload":{"receiver_id":"profile-2","content":"hi"}}`))

	assert.Equal(t, "profile-2", f.messages.lastSend.ReceiverID)
	assert.Equal(t, "profile-1", f.messages.lastSend.SenderID)

	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventMessageSent, evts[0].Name)
}

func TestRouteValidationError(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"message:send","payload":{"content":"hi"}}`))

	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventMessageError, evts[0].Name)

	p, ok := evts[0].Payload.(errorPayload)
	require.True(t, ok)
	assert.Equal(t, service.CodeInvalidArgument, p.Code)
	assert.Equal(t, service.EventMessageSend, p.Event)
}

func TestRouteBusinessErrorToOriginOnly(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()
	f.messages.sendErr = service.ErrMessageTypeInvalid

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"message:send","payload":{"receiver_id":"profile-2","content":"hi"}}`))

	require.Len(t, f.dispatcher.sent, 1)
	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventMessageError, evts[0].Name)
}

func TestRouteMalformedFrame(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1", []byte(`{not json`))

	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventMessageError, evts[0].Name)
}

func TestRouteUnknownEventIgnored(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1", []byte(`{"event":"time:travel","payload":{}}`))

	assert.Empty(t, f.dispatcher.sent)
}

func TestRouteDeleteDefaultsScope(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"message:delete","payload":{"message_id":"msg-1"}}`))

	assert.Equal(t, []string{"msg-1/me"}, f.messages.deleted)
}

func TestRouteGroupErrorChannel(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()
	f.groups.sendErr = service.ErrGroupPostDenied

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"group:message:send","payload":{"group_id":"g1","content":"hi"}}`))

	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventGroupError, evts[0].Name)

	p, ok := evts[0].Payload.(errorPayload)
	require.True(t, ok)
	assert.Equal(t, service.CodePermissionDenied, p.Code)
}

func TestRouteGroupJoin(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"group:join","payload":{"group_id":"g1"}}`))

	assert.Equal(t, "g1", f.groups.joinedGroup)
	assert.Empty(t, f.dispatcher.sent)
}

func TestRouteCallInitiateAck(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"call:initiate","payload":{"receiver_id":"profile-2","kind":"audio"}}`))

	evts := f.dispatcher.sent["conn-1"]
	require.Len(t, evts, 1)
	assert.Equal(t, service.EventCallInitiated, evts[0].Name)
}

func TestRouteWebRTCRelay(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"webrtc:offer","payload":{"call_id":"call-1","data":{"sdp":"v=0"}}}`))

	assert.Equal(t, []string{"webrtc:offer/call-1"}, f.calls.relayed)
}

func TestRouteCallEnd(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	f.router.Route(ctx, "profile-1", "conn-1",
		[]byte(`{"event":"call:end","payload":{"call_id":"call-1"}}`))

	assert.Equal(t, []string{"call-1"}, f.calls.endedIDs)
}
