package handlers

import (
	"encoding/json"

	"github.com/chatmail/service-realtime/apps/realtime/service"
)

// Envelope is the raw inbound frame. The payload stays undecoded until
// the event name selects its shape.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type sendMessagePayload struct {
	ReceiverID string `json:"receiver_id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	ReplyToID  string `json:"reply_to_id"`
}

func (p *sendMessagePayload) Validate() error {
	if p.ReceiverID == "" {
		return service.ErrMessageReceiverRequired
	}
	if p.Content == "" {
		return service.ErrMessageContentRequired
	}
	return nil
}

type messageRefPayload struct {
	MessageID string `json:"message_id"`
}

func (p *messageRefPayload) Validate() error {
	if p.MessageID == "" {
		return service.ErrUnspecifiedID
	}
	return nil
}

type reactPayload struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

func (p *reactPayload) Validate() error {
	if p.MessageID == "" {
		return service.ErrUnspecifiedID
	}
	if p.Emoji == "" {
		return service.ErrReactionInvalid
	}
	return nil
}

type editPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

func (p *editPayload) Validate() error {
	if p.MessageID == "" {
		return service.ErrUnspecifiedID
	}
	if p.Content == "" {
		return service.ErrMessageContentRequired
	}
	return nil
}

type deletePayload struct {
	MessageID string `json:"message_id"`
	Scope     string `json:"scope"`
}

func (p *deletePayload) Validate() error {
	if p.MessageID == "" {
		return service.ErrUnspecifiedID
	}
	return nil
}

type conversationReadPayload struct {
	SenderID string `json:"sender_id"`
}

func (p *conversationReadPayload) Validate() error {
	if p.SenderID == "" {
		return service.ErrUnspecifiedID
	}
	return nil
}

type typingPayload struct {
	ReceiverID string `json:"receiver_id"`
}

type groupRefPayload struct {
	GroupID string `json:"group_id"`
}

func (p *groupRefPayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	return nil
}

type groupSendPayload struct {
	GroupID   string `json:"group_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	ReplyToID string `json:"reply_to_id"`
}

func (p *groupSendPayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	if p.Content == "" {
		return service.ErrMessageContentRequired
	}
	return nil
}

type groupReadPayload struct {
	GroupID   string `json:"group_id"`
	MessageID string `json:"message_id"`
}

func (p *groupReadPayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	if p.MessageID == "" {
		return service.ErrUnspecifiedID
	}
	return nil
}

type groupMembersPayload struct {
	GroupID   string   `json:"group_id"`
	MemberIDs []string `json:"member_ids"`
}

func (p *groupMembersPayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	if len(p.MemberIDs) == 0 {
		return service.ErrGroupMemberMissing
	}
	return nil
}

type groupMemberPayload struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
}

func (p *groupMemberPayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	if p.MemberID == "" {
		return service.ErrGroupMemberMissing
	}
	return nil
}

type groupUpdatePayload struct {
	GroupID                 string  `json:"group_id"`
	Name                    *string `json:"name"`
	Description             *string `json:"description"`
	AvatarURL               *string `json:"avatar_url"`
	OnlyAdminsCanPost       *bool   `json:"only_admins_can_post"`
	OnlyAdminsCanAddMembers *bool   `json:"only_admins_can_add_members"`
}

func (p *groupUpdatePayload) Validate() error {
	if p.GroupID == "" {
		return service.ErrGroupIDRequired
	}
	return nil
}

type callInitiatePayload struct {
	ReceiverID string `json:"receiver_id"`
	Kind       string `json:"kind"`
}

func (p *callInitiatePayload) Validate() error {
	if p.ReceiverID == "" {
		return service.ErrMessageReceiverRequired
	}
	if p.Kind == "" {
		return service.ErrCallKindInvalid
	}
	return nil
}

type callRefPayload struct {
	CallID string `json:"call_id"`
}

func (p *callRefPayload) Validate() error {
	if p.CallID == "" {
		return service.ErrCallNotFound
	}
	return nil
}

type callMediaPayload struct {
	CallID  string `json:"call_id"`
	Media   string `json:"media"`
	Enabled bool   `json:"enabled"`
}

func (p *callMediaPayload) Validate() error {
	if p.CallID == "" {
		return service.ErrCallNotFound
	}
	return nil
}

type signalPayload struct {
	CallID string          `json:"call_id"`
	Data   json.RawMessage `json:"data"`
}

func (p *signalPayload) Validate() error {
	if p.CallID == "" {
		return service.ErrCallNotFound
	}
	return nil
}
