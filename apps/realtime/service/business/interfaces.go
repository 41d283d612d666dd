package business

import (
	"context"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

// Dispatcher pushes outbound events onto live connections. The socket
// layer implements it; business logic never touches sockets directly.
type Dispatcher interface {
	// SendToConnection enqueues an event on a single connection,
	// reporting whether the connection exists and accepted it.
	SendToConnection(ctx context.Context, connectionID string, evt service.Event) bool
	// Broadcast enqueues an event on every live connection except the
	// excluded one.
	Broadcast(ctx context.Context, evt service.Event, excludeConnectionID string)
}

// DeleteScope selects how far a message delete reaches.
const (
	DeleteScopeMe       = "me"
	DeleteScopeEveryone = "everyone"
)

// SendMessageInput carries a validated direct message send request.
type SendMessageInput struct {
	SenderID   string
	ReceiverID string
	Type       string
	Content    string
	ReplyToID  string
}

// SendGroupMessageInput carries a validated group message send request.
type SendGroupMessageInput struct {
	SenderID  string
	GroupID   string
	Type      string
	Content   string
	ReplyToID string
}

// GroupUpdateInput carries admin-editable group settings. Nil fields
// are left untouched.
type GroupUpdateInput struct {
	Name                    *string
	Description             *string
	AvatarURL               *string
	OnlyAdminsCanPost       *bool
	OnlyAdminsCanAddMembers *bool
}

// MessageBusiness is the direct message lifecycle: send, read, react,
// edit, delete and typing relay.
type MessageBusiness interface {
	Send(ctx context.Context, in SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, profileID, messageID string) error
	MarkConversationRead(ctx context.Context, profileID, senderID string) (int64, error)
	React(ctx context.Context, profileID, messageID, emoji string) (*models.Message, error)
	Edit(ctx context.Context, profileID, messageID, content string) (*models.Message, error)
	Delete(ctx context.Context, profileID, messageID, scope string) error
	Typing(ctx context.Context, profileID, receiverID string, typing bool)
}

// GroupBusiness is the group conversation lifecycle: membership, fan-out
// messaging, read receipts and settings.
type GroupBusiness interface {
	Join(ctx context.Context, profileID, connectionID, groupID string) (*models.Group, error)
	Leave(ctx context.Context, profileID, connectionID, groupID string) error
	Send(ctx context.Context, in SendGroupMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, profileID, groupID, messageID string) error
	AddMembers(ctx context.Context, profileID, groupID string, memberIDs []string) (*models.Group, error)
	RemoveMember(ctx context.Context, profileID, groupID, memberID string) (*models.Group, error)
	UpdateSettings(ctx context.Context, profileID, groupID string, in GroupUpdateInput) (*models.Group, error)
	Typing(ctx context.Context, profileID, groupID string, typing bool)
}

// CallBusiness drives the one-to-one call state machine and relays
// signalling payloads between the two legs.
type CallBusiness interface {
	Initiate(ctx context.Context, callerID, kind string, receiverID string) (*models.CallRecord, error)
	Accept(ctx context.Context, profileID, callID string) error
	Reject(ctx context.Context, profileID, callID string) error
	Cancel(ctx context.Context, profileID, callID string) error
	End(ctx context.Context, profileID, callID string) error
	Relay(ctx context.Context, profileID, callID, eventName string, payload any) error
	MediaToggle(ctx context.Context, profileID, callID string, media string, enabled bool) error
	HandleDisconnect(ctx context.Context, profileID string)
}
