package business_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/business"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type callFixture struct {
	repo       *fakeCallRepository
	presence   *business.PresenceTracker
	dispatcher *fakeDispatcher
	biz        business.CallBusiness
}

func newCallFixture(ringTimeout time.Duration) *callFixture {
	repo := newFakeCallRepository()
	presence := business.NewPresenceTracker()
	dispatcher := newFakeDispatcher()

	f := &callFixture{
		repo:       repo,
		presence:   presence,
		dispatcher: dispatcher,
		biz:        business.NewCallBusiness(repo, presence, dispatcher, ringTimeout, time.Second),
	}
	f.presence.Register("caller-1", "conn-caller")
	f.presence.Register("receiver-1", "conn-receiver")
	return f
}

func TestCallInitiate(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusRinging, call.Status)
	assert.NotEmpty(t, call.GetID())

	names := f.dispatcher.eventNamesFor("conn-receiver")
	require.Len(t, names, 1)
	assert.Equal(t, service.EventCallIncoming, names[0])

	stored := f.repo.stored(call.GetID())
	require.NotNil(t, stored)
	assert.Equal(t, models.CallStatusRinging, stored.Status)
}

func TestCallInitiateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	_, err := f.biz.Initiate(ctx, "caller-1", "smoke-signal", "receiver-1")
	assert.ErrorIs(t, err, service.ErrCallKindInvalid)

	_, err = f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "offline-profile")
	assert.ErrorIs(t, err, service.ErrCallReceiverOffline)

	_, err = f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)

	// Both legs are now busy.
	f.presence.Register("bystander", "conn-bystander")
	_, err = f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "bystander")
	assert.ErrorIs(t, err, service.ErrCallerBusy)

	_, err = f.biz.Initiate(ctx, "bystander", models.CallKindAudio, "receiver-1")
	assert.ErrorIs(t, err, service.ErrCallReceiverBusy)
}

func TestCallAccept(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindVideo, "receiver-1")
	require.NoError(t, err)

	err = f.biz.Accept(ctx, "caller-1", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallActionDenied)

	require.NoError(t, f.biz.Accept(ctx, "receiver-1", call.GetID()))

	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventCallAccepted)
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-receiver"), service.EventCallStarted)
	assert.Equal(t, models.CallStatusOngoing, f.repo.stored(call.GetID()).Status)

	// Accepting twice fails: the call is no longer ringing.
	err = f.biz.Accept(ctx, "receiver-1", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallNotRinging)
}

func TestCallReject(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)

	err = f.biz.Reject(ctx, "caller-1", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallActionDenied)

	require.NoError(t, f.biz.Reject(ctx, "receiver-1", call.GetID()))

	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventCallRejected)
	stored := f.repo.stored(call.GetID())
	assert.Equal(t, models.CallStatusRejected, stored.Status)
	assert.Equal(t, models.CallEndReasonRejected, stored.EndReason)

	// Both legs are free again.
	_, err = f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	assert.NoError(t, err)
}

func TestCallCancel(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)

	err = f.biz.Cancel(ctx, "receiver-1", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallActionDenied)

	require.NoError(t, f.biz.Cancel(ctx, "caller-1", call.GetID()))

	assert.Contains(t, f.dispatcher.eventNamesFor("conn-receiver"), service.EventCallCancelled)
	stored := f.repo.stored(call.GetID())
	assert.Equal(t, models.CallStatusEnded, stored.Status)
	assert.Equal(t, models.CallEndReasonCancelled, stored.EndReason)
	assert.True(t, stored.EndedAt.After(stored.CreatedAt))
}

func TestCallEnd(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)
	require.NoError(t, f.biz.Accept(ctx, "receiver-1", call.GetID()))

	err = f.biz.End(ctx, "stranger", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallActionDenied)

	require.NoError(t, f.biz.End(ctx, "receiver-1", call.GetID()))

	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventCallEnded)
	stored := f.repo.stored(call.GetID())
	assert.Equal(t, models.CallStatusEnded, stored.Status)
	assert.Equal(t, models.CallEndReasonCompleted, stored.EndReason)
	assert.Equal(t, "receiver-1", stored.EndedBy)
	assert.GreaterOrEqual(t, stored.DurationSecs, int64(0))

	err = f.biz.End(ctx, "caller-1", call.GetID())
	assert.ErrorIs(t, err, service.ErrCallNotFound)
}

func TestCallEndWhileRingingByCaller(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)

	// A caller hang-up before the answer behaves as a cancel.
	require.NoError(t, f.biz.End(ctx, "caller-1", call.GetID()))

	assert.Contains(t, f.dispatcher.eventNamesFor("conn-receiver"), service.EventCallEnded)
	stored := f.repo.stored(call.GetID())
	assert.Equal(t, models.CallStatusEnded, stored.Status)
	assert.Equal(t, models.CallEndReasonCancelled, stored.EndReason)
	assert.Zero(t, stored.DurationSecs)
}

func TestCallRingTimeout(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(30 * time.Millisecond)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored := f.repo.stored(call.GetID())
		return stored != nil && stored.Status == models.CallStatusMissed
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, models.CallEndReasonMissed, f.repo.stored(call.GetID()).EndReason)
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventCallMissed)
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-receiver"), service.EventCallMissed)

	// The slot is free again after the timeout.
	_, err = f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	assert.NoError(t, err)
}

func TestCallAcceptBeatsRingTimeout(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(50 * time.Millisecond)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)
	require.NoError(t, f.biz.Accept(ctx, "receiver-1", call.GetID()))

	time.Sleep(100 * time.Millisecond)

	// The stale timer must not convert an answered call to missed.
	assert.Equal(t, models.CallStatusOngoing, f.repo.stored(call.GetID()).Status)
}

func TestCallRelay(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindVideo, "receiver-1")
	require.NoError(t, err)

	offer := map[string]any{"sdp": "v=0 ..."}
	require.NoError(t, f.biz.Relay(ctx, "caller-1", call.GetID(), service.EventWebRTCOffer, offer))

	names := f.dispatcher.eventNamesFor("conn-receiver")
	assert.Contains(t, names, service.EventWebRTCOffer)

	require.NoError(t, f.biz.Relay(ctx, "receiver-1", call.GetID(), service.EventWebRTCAnswer, offer))
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventWebRTCAnswer)

	err = f.biz.Relay(ctx, "stranger", call.GetID(), service.EventWebRTCOffer, offer)
	assert.ErrorIs(t, err, service.ErrCallActionDenied)

	err = f.biz.Relay(ctx, "caller-1", "missing", service.EventWebRTCOffer, offer)
	assert.ErrorIs(t, err, service.ErrCallNotFound)
}

func TestCallMediaToggle(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindVideo, "receiver-1")
	require.NoError(t, err)
	require.NoError(t, f.biz.Accept(ctx, "receiver-1", call.GetID()))

	require.NoError(t, f.biz.MediaToggle(ctx, "caller-1", call.GetID(), "audio", false))
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-receiver"), service.EventCallMediaToggle)
}

func TestCallHandleDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newCallFixture(time.Minute)

	call, err := f.biz.Initiate(ctx, "caller-1", models.CallKindAudio, "receiver-1")
	require.NoError(t, err)
	require.NoError(t, f.biz.Accept(ctx, "receiver-1", call.GetID()))

	f.biz.HandleDisconnect(ctx, "receiver-1")

	stored := f.repo.stored(call.GetID())
	assert.Equal(t, models.CallStatusEnded, stored.Status)
	assert.Equal(t, models.CallEndReasonFailed, stored.EndReason)
	assert.Contains(t, f.dispatcher.eventNamesFor("conn-caller"), service.EventCallEnded)

	// No call, nothing to do.
	f.biz.HandleDisconnect(ctx, "receiver-1")
}
