package service

// Inbound event names (client → server). Each carries a typed payload that
// is validated at the handler boundary before dispatch.
const (
	EventMessageSend   = "message:send"
	EventMessageReact  = "message:react"
	EventMessageEdit   = "message:edit"
	EventMessageDelete = "message:delete"
	EventMessageRead   = "message:read"
	EventMessagesRead  = "messages:read"
	EventTypingStart   = "typing:start"
	EventTypingStop    = "typing:stop"

	EventGroupJoin         = "group:join"
	EventGroupLeave        = "group:leave"
	EventGroupMessageSend  = "group:message:send"
	EventGroupMessageRead  = "group:message:read"
	EventGroupTypingStart  = "group:typing:start"
	EventGroupTypingStop   = "group:typing:stop"
	EventGroupMemberAdd    = "group:member-add"
	EventGroupMemberRemove = "group:member-remove"
	EventGroupUpdate       = "group:update"

	EventCallInitiate    = "call:initiate"
	EventCallAccept      = "call:accept"
	EventCallReject      = "call:reject"
	EventCallEnd         = "call:end"
	EventCallCancel      = "call:cancel"
	EventCallMediaToggle = "call:media-toggle"

	EventWebRTCOffer        = "webrtc:offer"
	EventWebRTCAnswer       = "webrtc:answer"
	EventWebRTCIceCandidate = "webrtc:ice-candidate"
)

// Outbound event names (server → client).
const (
	EventMessageReceive  = "message:receive"
	EventMessageSent     = "message:sent"
	EventMessageError    = "message:error"
	EventMessageStatus   = "message:status"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventMessageReaction = "message:reaction"
	EventMessagesReadAck = "messages:read"
	EventTypingUser      = "typing:user"

	EventUsersOnline = "users:online"
	EventUserOnline  = "user:online"
	EventUserOffline = "user:offline"

	EventGroupMessageReceive     = "group:message:receive"
	EventGroupMessageSent        = "group:message:sent"
	EventGroupMemberJoined       = "group:member-joined"
	EventGroupMemberLeft         = "group:member-left"
	EventGroupMembersAdded       = "group:members-added"
	EventGroupAddedToGroup       = "group:added-to-group"
	EventGroupMemberRemoved      = "group:member-removed"
	EventGroupRemovedFromGroup   = "group:removed-from-group"
	EventGroupUpdated            = "group:updated"
	EventGroupMessageReadReceipt = "group:message:read-receipt"
	EventGroupTypingUser         = "group:typing:user"
	EventGroupError              = "group:error"

	EventCallIncoming  = "call:incoming"
	EventCallInitiated = "call:initiated"
	EventCallAccepted  = "call:accepted"
	EventCallStarted   = "call:started"
	EventCallRejected  = "call:rejected"
	EventCallEnded     = "call:ended"
	EventCallMissed    = "call:missed"
	EventCallCancelled = "call:cancelled"
	EventCallError     = "call:error"
)

// Event is the tagged envelope every frame on the wire uses, in both
// directions: the event name selects the payload shape.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// NewEvent builds an outbound event envelope.
func NewEvent(name string, payload any) Event {
	return Event{Name: name, Payload: payload}
}
