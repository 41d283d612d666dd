package business

import (
	"context"
	"sync"
	"time"

	"github.com/pitabwire/util"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
	"github.com/chatmail/service-realtime/apps/realtime/service/repository"
	"github.com/chatmail/service-realtime/internal/telemetry"
)

type callPayload struct {
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id"`
	ReceiverID string `json:"receiver_id"`
	Kind       string `json:"kind"`
}

type callEndedPayload struct {
	CallID       string `json:"call_id"`
	EndedBy      string `json:"ended_by"`
	Reason       string `json:"reason"`
	DurationSecs int64  `json:"duration_secs"`
}

type signalPayload struct {
	CallID    string `json:"call_id"`
	ProfileID string `json:"profile_id"`
	Data      any    `json:"data"`
}

type mediaTogglePayload struct {
	CallID    string `json:"call_id"`
	ProfileID string `json:"profile_id"`
	Media     string `json:"media"`
	Enabled   bool   `json:"enabled"`
}

// callSession is the in-memory state of a live call. The persisted
// record trails it; mutations happen under the manager's lock.
type callSession struct {
	record    *models.CallRecord
	ringTimer *time.Timer
}

type callBusiness struct {
	callRepo   repository.CallRepository
	presence   *PresenceTracker
	dispatcher Dispatcher

	ringTimeout    time.Duration
	persistTimeout time.Duration

	mu            sync.Mutex
	sessions      map[string]*callSession // call ID -> session
	byParticipant map[string]string       // profile ID -> call ID
}

// NewCallBusiness creates a new instance of CallBusiness.
func NewCallBusiness(
	callRepo repository.CallRepository,
	presence *PresenceTracker,
	dispatcher Dispatcher,
	ringTimeout, persistTimeout time.Duration,
) CallBusiness {
	return &callBusiness{
		callRepo:   callRepo,
		presence:   presence,
		dispatcher: dispatcher,

		ringTimeout:    ringTimeout,
		persistTimeout: persistTimeout,

		sessions:      make(map[string]*callSession),
		byParticipant: make(map[string]string),
	}
}

// Initiate starts a call. Both legs must be free and the receiver must
// be online; the ring timer starts immediately and converts the call to
// missed if nobody answers.
func (cb *callBusiness) Initiate(
	ctx context.Context, callerID, kind, receiverID string,
) (*models.CallRecord, error) {
	if receiverID == "" {
		return nil, service.ErrMessageReceiverRequired
	}
	if kind != models.CallKindAudio && kind != models.CallKindVideo {
		return nil, service.ErrCallKindInvalid
	}

	receiverConn, online := cb.presence.Resolve(receiverID)
	if !online {
		return nil, service.ErrCallReceiverOffline
	}

	cb.mu.Lock()
	if _, busy := cb.byParticipant[callerID]; busy {
		cb.mu.Unlock()
		return nil, service.ErrCallerBusy
	}
	if _, busy := cb.byParticipant[receiverID]; busy {
		cb.mu.Unlock()
		return nil, service.ErrCallReceiverBusy
	}

	record := &models.CallRecord{
		CallerID:   callerID,
		ReceiverID: receiverID,
		Kind:       kind,
		Status:     models.CallStatusRinging,
	}
	record.GenID(ctx)
	callID := record.GetID()

	session := &callSession{record: record}
	session.ringTimer = time.AfterFunc(cb.ringTimeout, func() {
		cb.ringTimedOut(callID)
	})
	cb.sessions[callID] = session
	cb.byParticipant[callerID] = callID
	cb.byParticipant[receiverID] = callID
	cb.mu.Unlock()

	cb.persist(ctx, record)
	telemetry.CallsInitiatedCounter.Add(ctx, 1)

	cb.dispatcher.SendToConnection(ctx, receiverConn,
		service.NewEvent(service.EventCallIncoming, callPayload{
			CallID:     callID,
			CallerID:   callerID,
			ReceiverID: receiverID,
			Kind:       kind,
		}))

	return record, nil
}

// Accept transitions a ringing call to ongoing. Only the receiver can
// accept.
func (cb *callBusiness) Accept(ctx context.Context, profileID, callID string) error {
	cb.mu.Lock()
	session, ok := cb.sessions[callID]
	if !ok {
		cb.mu.Unlock()
		return service.ErrCallNotFound
	}
	record := session.record
	if record.ReceiverID != profileID {
		cb.mu.Unlock()
		return service.ErrCallActionDenied
	}
	if record.Status != models.CallStatusRinging {
		cb.mu.Unlock()
		return service.ErrCallNotRinging
	}

	session.stopRingTimer()
	record.Status = models.CallStatusOngoing
	record.StartedAt = time.Now()
	snapshot := *record
	callerID := record.CallerID
	cb.mu.Unlock()

	cb.persist(ctx, &snapshot)
	telemetry.CallsAnsweredCounter.Add(ctx, 1)

	payload := callPayload{
		CallID:     callID,
		CallerID:   snapshot.CallerID,
		ReceiverID: snapshot.ReceiverID,
		Kind:       snapshot.Kind,
	}
	if connID, ok := cb.presence.Resolve(callerID); ok {
		cb.dispatcher.SendToConnection(ctx, connID,
			service.NewEvent(service.EventCallAccepted, payload))
	}
	if connID, ok := cb.presence.Resolve(profileID); ok {
		cb.dispatcher.SendToConnection(ctx, connID,
			service.NewEvent(service.EventCallStarted, payload))
	}
	return nil
}

// Reject declines a ringing call. Receiver only.
func (cb *callBusiness) Reject(ctx context.Context, profileID, callID string) error {
	return cb.terminate(ctx, profileID, callID, terminateReject)
}

// Cancel withdraws a ringing call before it is answered. Caller only.
func (cb *callBusiness) Cancel(ctx context.Context, profileID, callID string) error {
	return cb.terminate(ctx, profileID, callID, terminateCancel)
}

// End hangs up an ongoing call. Either leg may end it.
func (cb *callBusiness) End(ctx context.Context, profileID, callID string) error {
	return cb.terminate(ctx, profileID, callID, terminateEnd)
}

type terminateMode int

const (
	terminateReject terminateMode = iota
	terminateCancel
	terminateEnd
	terminateTimeout
	terminateDisconnect
)

// terminate drives every path out of a live call through one gate so
// the session teardown and persistence stay consistent.
func (cb *callBusiness) terminate(
	ctx context.Context, profileID, callID string, mode terminateMode,
) error {
	cb.mu.Lock()
	session, ok := cb.sessions[callID]
	if !ok {
		cb.mu.Unlock()
		return service.ErrCallNotFound
	}
	record := session.record

	var event string
	switch mode {
	case terminateReject:
		if record.ReceiverID != profileID {
			cb.mu.Unlock()
			return service.ErrCallActionDenied
		}
		if record.Status != models.CallStatusRinging {
			cb.mu.Unlock()
			return service.ErrCallNotRinging
		}
		record.Status = models.CallStatusRejected
		record.EndReason = models.CallEndReasonRejected
		event = service.EventCallRejected

	case terminateCancel:
		if record.CallerID != profileID {
			cb.mu.Unlock()
			return service.ErrCallActionDenied
		}
		if record.Status != models.CallStatusRinging {
			cb.mu.Unlock()
			return service.ErrCallNotRinging
		}
		record.Status = models.CallStatusEnded
		record.EndReason = models.CallEndReasonCancelled
		event = service.EventCallCancelled

	case terminateEnd:
		if record.CallerID != profileID && record.ReceiverID != profileID {
			cb.mu.Unlock()
			return service.ErrCallActionDenied
		}
		switch record.Status {
		case models.CallStatusOngoing:
			record.Status = models.CallStatusEnded
			record.EndReason = models.CallEndReasonCompleted
		case models.CallStatusRinging:
			// A hang-up while still ringing behaves as cancel or
			// reject depending on which leg sent it.
			if record.CallerID == profileID {
				record.Status = models.CallStatusEnded
				record.EndReason = models.CallEndReasonCancelled
			} else {
				record.Status = models.CallStatusRejected
				record.EndReason = models.CallEndReasonRejected
			}
		default:
			cb.mu.Unlock()
			return service.ErrCallActionDenied
		}
		event = service.EventCallEnded

	case terminateTimeout:
		if record.Status != models.CallStatusRinging {
			cb.mu.Unlock()
			return nil
		}
		record.Status = models.CallStatusMissed
		record.EndReason = models.CallEndReasonMissed
		event = service.EventCallMissed
		telemetry.CallsMissedCounter.Add(ctx, 1)

	case terminateDisconnect:
		if record.Status == models.CallStatusOngoing {
			record.Status = models.CallStatusEnded
		} else {
			record.Status = models.CallStatusMissed
		}
		record.EndReason = models.CallEndReasonFailed
		event = service.EventCallEnded
	}

	session.stopRingTimer()
	now := time.Now()
	record.EndedAt = now
	record.EndedBy = profileID
	if !record.StartedAt.IsZero() {
		record.DurationSecs = int64(now.Sub(record.StartedAt).Seconds())
	}

	delete(cb.sessions, callID)
	delete(cb.byParticipant, record.CallerID)
	delete(cb.byParticipant, record.ReceiverID)

	snapshot := *record
	cb.mu.Unlock()

	cb.persist(ctx, &snapshot)

	payload := callEndedPayload{
		CallID:       callID,
		EndedBy:      profileID,
		Reason:       snapshot.EndReason,
		DurationSecs: snapshot.DurationSecs,
	}
	for _, participant := range []string{snapshot.CallerID, snapshot.ReceiverID} {
		if participant == profileID && mode != terminateTimeout {
			continue
		}
		if connID, online := cb.presence.Resolve(participant); online {
			cb.dispatcher.SendToConnection(ctx, connID, service.NewEvent(event, payload))
		}
	}
	return nil
}

// ringTimedOut fires off the ring timer. The state is re-checked inside
// terminate; an answer that raced the timer wins.
func (cb *callBusiness) ringTimedOut(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cb.persistTimeout)
	defer cancel()

	if err := cb.terminate(ctx, "", callID, terminateTimeout); err != nil {
		util.Log(ctx).WithError(err).WithField("call_id", callID).
			Warn("ring timeout processing failed")
	}
}

// Relay forwards a signalling payload to the other leg of the call
// verbatim. Nothing is stored; an offline peer means the payload is
// dropped.
func (cb *callBusiness) Relay(
	ctx context.Context, profileID, callID, eventName string, payload any,
) error {
	cb.mu.Lock()
	session, ok := cb.sessions[callID]
	if !ok {
		cb.mu.Unlock()
		return service.ErrCallNotFound
	}
	record := session.record
	if record.CallerID != profileID && record.ReceiverID != profileID {
		cb.mu.Unlock()
		return service.ErrCallActionDenied
	}
	peer := record.ReceiverID
	if peer == profileID {
		peer = record.CallerID
	}
	cb.mu.Unlock()

	if connID, online := cb.presence.Resolve(peer); online {
		cb.dispatcher.SendToConnection(ctx, connID,
			service.NewEvent(eventName, signalPayload{
				CallID:    callID,
				ProfileID: profileID,
				Data:      payload,
			}))
	}
	return nil
}

// MediaToggle tells the peer a track was muted or unmuted.
func (cb *callBusiness) MediaToggle(
	ctx context.Context, profileID, callID string, media string, enabled bool,
) error {
	cb.mu.Lock()
	session, ok := cb.sessions[callID]
	if !ok {
		cb.mu.Unlock()
		return service.ErrCallNotFound
	}
	record := session.record
	if record.CallerID != profileID && record.ReceiverID != profileID {
		cb.mu.Unlock()
		return service.ErrCallActionDenied
	}
	peer := record.ReceiverID
	if peer == profileID {
		peer = record.CallerID
	}
	cb.mu.Unlock()

	if connID, online := cb.presence.Resolve(peer); online {
		cb.dispatcher.SendToConnection(ctx, connID,
			service.NewEvent(service.EventCallMediaToggle, mediaTogglePayload{
				CallID:    callID,
				ProfileID: profileID,
				Media:     media,
				Enabled:   enabled,
			}))
	}
	return nil
}

// HandleDisconnect tears down whatever call the profile was part of.
// Called from the connection teardown path.
func (cb *callBusiness) HandleDisconnect(ctx context.Context, profileID string) {
	cb.mu.Lock()
	callID, ok := cb.byParticipant[profileID]
	cb.mu.Unlock()
	if !ok {
		return
	}

	if err := cb.terminate(ctx, profileID, callID, terminateDisconnect); err != nil {
		util.Log(ctx).WithError(err).WithFields(map[string]any{
			"call_id":    callID,
			"profile_id": profileID,
		}).Warn("call teardown on disconnect failed")
	}
}

// persist writes the call record with a bounded timeout so a slow
// database never stalls signalling.
func (cb *callBusiness) persist(ctx context.Context, record *models.CallRecord) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cb.persistTimeout)
	defer cancel()

	if err := cb.callRepo.Save(pctx, record); err != nil {
		util.Log(pctx).WithError(err).WithField("call_id", record.GetID()).
			Error("persisting call record failed")
	}
}

func (s *callSession) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}
