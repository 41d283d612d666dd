package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pitabwire/util"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/business"
)

type errorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Router decodes inbound frames and hands them to the business layer.
// Failures are reported only to the originating connection; nothing a
// client sends can push an error onto someone else's socket.
type Router struct {
	messages   business.MessageBusiness
	groups     business.GroupBusiness
	calls      business.CallBusiness
	dispatcher business.Dispatcher
}

func NewRouter(
	messages business.MessageBusiness,
	groups business.GroupBusiness,
	calls business.CallBusiness,
	dispatcher business.Dispatcher,
) *Router {
	return &Router{
		messages:   messages,
		groups:     groups,
		calls:      calls,
		dispatcher: dispatcher,
	}
}

// Route processes one raw frame from an authenticated connection.
func (r *Router) Route(ctx context.Context, profileID, connectionID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.sendError(ctx, connectionID, service.EventMessageError, "",
			service.NewError(service.CodeInvalidArgument, "malformed frame"))
		return
	}

	if err := r.route(ctx, profileID, connectionID, env); err != nil {
		r.sendError(ctx, connectionID, errorEventFor(env.Event), env.Event, err)
	}
}

//nolint:gocognit,funlen // Single switch over the full inbound event surface
func (r *Router) route(ctx context.Context, profileID, connectionID string, env Envelope) error {
	switch env.Event {
	case service.EventMessageSend:
		p := &sendMessagePayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		msg, err := r.messages.Send(ctx, business.SendMessageInput{
			SenderID:   profileID,
			ReceiverID: p.ReceiverID,
			Type:       p.Type,
			Content:    p.Content,
			ReplyToID:  p.ReplyToID,
		})
		if err != nil {
			return err
		}
		r.dispatcher.SendToConnection(ctx, connectionID,
			service.NewEvent(service.EventMessageSent, msg))
		return nil

	case service.EventMessageRead:
		p := &messageRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.messages.MarkRead(ctx, profileID, p.MessageID)

	case service.EventMessagesRead:
		p := &conversationReadPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.messages.MarkConversationRead(ctx, profileID, p.SenderID)
		return err

	case service.EventMessageReact:
		p := &reactPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.messages.React(ctx, profileID, p.MessageID, p.Emoji)
		return err

	case service.EventMessageEdit:
		p := &editPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.messages.Edit(ctx, profileID, p.MessageID, p.Content)
		return err

	case service.EventMessageDelete:
		p := &deletePayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		scope := p.Scope
		if scope == "" {
			scope = business.DeleteScopeMe
		}
		return r.messages.Delete(ctx, profileID, p.MessageID, scope)

	case service.EventTypingStart, service.EventTypingStop:
		p := &typingPayload{}
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return service.NewError(service.CodeInvalidArgument, "malformed payload")
		}
		r.messages.Typing(ctx, profileID, p.ReceiverID, env.Event == service.EventTypingStart)
		return nil

	case service.EventGroupJoin:
		p := &groupRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.groups.Join(ctx, profileID, connectionID, p.GroupID)
		return err

	case service.EventGroupLeave:
		p := &groupRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.groups.Leave(ctx, profileID, connectionID, p.GroupID)

	case service.EventGroupMessageSend:
		p := &groupSendPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		msg, err := r.groups.Send(ctx, business.SendGroupMessageInput{
			SenderID:  profileID,
			GroupID:   p.GroupID,
			Type:      p.Type,
			Content:   p.Content,
			ReplyToID: p.ReplyToID,
		})
		if err != nil {
			return err
		}
		r.dispatcher.SendToConnection(ctx, connectionID,
			service.NewEvent(service.EventGroupMessageSent, msg))
		return nil

	case service.EventGroupMessageRead:
		p := &groupReadPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.groups.MarkRead(ctx, profileID, p.GroupID, p.MessageID)

	case service.EventGroupMemberAdd:
		p := &groupMembersPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.groups.AddMembers(ctx, profileID, p.GroupID, p.MemberIDs)
		return err

	case service.EventGroupMemberRemove:
		p := &groupMemberPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.groups.RemoveMember(ctx, profileID, p.GroupID, p.MemberID)
		return err

	case service.EventGroupUpdate:
		p := &groupUpdatePayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		_, err := r.groups.UpdateSettings(ctx, profileID, p.GroupID, business.GroupUpdateInput{
			Name:                    p.Name,
			Description:             p.Description,
			AvatarURL:               p.AvatarURL,
			OnlyAdminsCanPost:       p.OnlyAdminsCanPost,
			OnlyAdminsCanAddMembers: p.OnlyAdminsCanAddMembers,
		})
		return err

	case service.EventGroupTypingStart, service.EventGroupTypingStop:
		p := &groupRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		r.groups.Typing(ctx, profileID, p.GroupID, env.Event == service.EventGroupTypingStart)
		return nil

	case service.EventCallInitiate:
		p := &callInitiatePayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		call, err := r.calls.Initiate(ctx, profileID, p.Kind, p.ReceiverID)
		if err != nil {
			return err
		}
		r.dispatcher.SendToConnection(ctx, connectionID,
			service.NewEvent(service.EventCallInitiated, call))
		return nil

	case service.EventCallAccept:
		p := &callRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.Accept(ctx, profileID, p.CallID)

	case service.EventCallReject:
		p := &callRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.Reject(ctx, profileID, p.CallID)

	case service.EventCallCancel:
		p := &callRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.Cancel(ctx, profileID, p.CallID)

	case service.EventCallEnd:
		p := &callRefPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.End(ctx, profileID, p.CallID)

	case service.EventCallMediaToggle:
		p := &callMediaPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.MediaToggle(ctx, profileID, p.CallID, p.Media, p.Enabled)

	case service.EventWebRTCOffer, service.EventWebRTCAnswer, service.EventWebRTCIceCandidate:
		p := &signalPayload{}
		if err := decode(env.Payload, p); err != nil {
			return err
		}
		return r.calls.Relay(ctx, profileID, p.CallID, env.Event, p.Data)

	default:
		util.Log(ctx).WithFields(map[string]any{
			"event":      env.Event,
			"profile_id": profileID,
		}).Debug("ignoring unknown event")
		return nil
	}
}

type validator interface {
	Validate() error
}

func decode(raw json.RawMessage, p validator) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return service.NewError(service.CodeInvalidArgument, "malformed payload")
		}
	}
	return p.Validate()
}

// errorEventFor picks the error channel matching the failed event's
// family.
func errorEventFor(event string) string {
	switch {
	case strings.HasPrefix(event, "group:"):
		return service.EventGroupError
	case strings.HasPrefix(event, "call:"), strings.HasPrefix(event, "webrtc:"):
		return service.EventCallError
	default:
		return service.EventMessageError
	}
}

func (r *Router) sendError(
	ctx context.Context, connectionID, errorEvent, failedEvent string, err error,
) {
	r.dispatcher.SendToConnection(ctx, connectionID,
		service.NewEvent(errorEvent, errorPayload{
			Event:   failedEvent,
			Code:    service.CodeOf(err),
			Message: err.Error(),
		}))
}
