package business

import (
	"context"
	"time"

	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/util"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
	"github.com/chatmail/service-realtime/apps/realtime/service/repository"
	"github.com/chatmail/service-realtime/internal/telemetry"
)

// Outbound payload shapes shared by direct and group message events.
type messageStatusPayload struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type conversationReadPayload struct {
	ReaderID string `json:"reader_id"`
	Count    int64  `json:"count"`
}

type reactionPayload struct {
	MessageID string            `json:"message_id"`
	ProfileID string            `json:"profile_id"`
	Emoji     string            `json:"emoji,omitempty"`
	Reactions []models.Reaction `json:"reactions"`
}

type editedPayload struct {
	MessageID string    `json:"message_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

type deletedPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type typingPayload struct {
	ProfileID string `json:"profile_id"`
	GroupID   string `json:"group_id,omitempty"`
	Typing    bool   `json:"typing"`
}

type messageBusiness struct {
	msgRepo    repository.MessageRepository
	groupRepo  repository.GroupRepository
	presence   *PresenceTracker
	rooms      *RoomRegistry
	dispatcher Dispatcher

	editWindow   time.Duration
	deleteWindow time.Duration
}

// NewMessageBusiness creates a new instance of MessageBusiness. The
// group repository and room registry back the mutation paths for
// messages of the group kind.
func NewMessageBusiness(
	msgRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	presence *PresenceTracker,
	rooms *RoomRegistry,
	dispatcher Dispatcher,
	editWindow, deleteWindow time.Duration,
) MessageBusiness {
	return &messageBusiness{
		msgRepo:    msgRepo,
		groupRepo:  groupRepo,
		presence:   presence,
		rooms:      rooms,
		dispatcher: dispatcher,

		editWindow:   editWindow,
		deleteWindow: deleteWindow,
	}
}

// Send validates, persists and delivers a direct message. The receiver
// connection is resolved before the write so the stored status reflects
// what was actually attempted.
func (mb *messageBusiness) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.ReceiverID == "" {
		return nil, service.ErrMessageReceiverRequired
	}
	if in.Content == "" {
		return nil, service.ErrMessageContentRequired
	}
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if !models.IsValidMessageType(in.Type) {
		return nil, service.ErrMessageTypeInvalid
	}

	receiverConn, online := mb.presence.Resolve(in.ReceiverID)

	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Kind:       models.KindDirect,
		Type:       in.Type,
		Content:    in.Content,
		ReplyToID:  in.ReplyToID,
		Status:     models.StatusSent,
	}
	if online {
		msg.Status = models.StatusDelivered
	}

	if err := mb.msgRepo.Save(ctx, msg); err != nil {
		return nil, err
	}

	telemetry.MessagesSentCounter.Add(ctx, 1)

	if online {
		delivered := mb.dispatcher.SendToConnection(ctx, receiverConn,
			service.NewEvent(service.EventMessageReceive, msg))
		if delivered {
			telemetry.MessagesDeliveredCounter.Add(ctx, 1)
		} else {
			// The receiver dropped between resolution and delivery;
			// the stored status stays delivered and the client
			// reconciles on its next fetch.
			util.Log(ctx).WithField("message_id", msg.GetID()).
				Debug("receiver connection vanished before delivery")
		}
	}

	return msg, nil
}

// MarkRead transitions a single message to read. Only the receiver can
// read a message; repeating the call is a no-op.
func (mb *messageBusiness) MarkRead(ctx context.Context, profileID, messageID string) error {
	if messageID == "" {
		return service.ErrUnspecifiedID
	}

	msg, err := mb.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return service.ErrMessageNotFound
		}
		return err
	}

	if msg.ReceiverID != profileID {
		return service.ErrMessageNotFound
	}
	if msg.Status == models.StatusRead {
		return nil
	}

	msg.Status = models.StatusRead
	if err = mb.msgRepo.Save(ctx, msg); err != nil {
		return err
	}

	if senderConn, ok := mb.presence.Resolve(msg.SenderID); ok {
		mb.dispatcher.SendToConnection(ctx, senderConn,
			service.NewEvent(service.EventMessageStatus, messageStatusPayload{
				MessageID: msg.GetID(),
				Status:    models.StatusRead,
			}))
	}
	return nil
}

// MarkConversationRead transitions every unread message from senderID to
// the reading profile in one pass, then tells the sender.
func (mb *messageBusiness) MarkConversationRead(
	ctx context.Context, profileID, senderID string,
) (int64, error) {
	if senderID == "" {
		return 0, service.ErrUnspecifiedID
	}

	count, err := mb.msgRepo.MarkConversationRead(ctx, senderID, profileID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		if senderConn, ok := mb.presence.Resolve(senderID); ok {
			mb.dispatcher.SendToConnection(ctx, senderConn,
				service.NewEvent(service.EventMessagesReadAck, conversationReadPayload{
					ReaderID: profileID,
					Count:    count,
				}))
		}
	}
	return count, nil
}

// React toggles the profile's emoji on the message and notifies the
// other parties: the conversation counterpart for a direct message,
// the group room for a group one.
func (mb *messageBusiness) React(
	ctx context.Context, profileID, messageID, emoji string,
) (*models.Message, error) {
	if !models.IsAllowedReaction(emoji) {
		return nil, service.ErrReactionInvalid
	}

	msg, err := mb.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return nil, service.ErrMessageNotFound
		}
		return nil, err
	}
	if err = mb.ensureParticipant(ctx, profileID, msg); err != nil {
		return nil, err
	}
	if msg.DeletedForEveryone {
		return nil, service.ErrMessageAlreadyDeleted
	}

	kept := msg.ToggleReaction(profileID, emoji)
	if err = mb.msgRepo.Save(ctx, msg); err != nil {
		return nil, err
	}

	payload := reactionPayload{
		MessageID: msg.GetID(),
		ProfileID: profileID,
		Reactions: msg.Reactions,
	}
	if kept {
		payload.Emoji = emoji
	}
	mb.notifyMutation(ctx, msg, profileID, service.NewEvent(service.EventMessageReaction, payload))

	return msg, nil
}

// Edit replaces the message body, keeping the prior body in the edit
// history. Only the sender may edit, and only within the edit window.
func (mb *messageBusiness) Edit(
	ctx context.Context, profileID, messageID, content string,
) (*models.Message, error) {
	if content == "" {
		return nil, service.ErrMessageContentRequired
	}

	msg, err := mb.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return nil, service.ErrMessageNotFound
		}
		return nil, err
	}

	if msg.SenderID != profileID {
		return nil, service.ErrMessageEditDenied
	}
	if msg.DeletedForEveryone {
		return nil, service.ErrMessageAlreadyDeleted
	}
	if time.Since(msg.CreatedAt) > mb.editWindow {
		return nil, service.ErrMessageEditWindowClosed
	}

	now := time.Now()
	msg.EditHistory = append(msg.EditHistory, models.EditRevision{
		Content:  msg.Content,
		EditedAt: now,
	})
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = now

	if err = mb.msgRepo.Save(ctx, msg); err != nil {
		return nil, err
	}

	mb.notifyMutation(ctx, msg, profileID,
		service.NewEvent(service.EventMessageEdited, editedPayload{
			MessageID: msg.GetID(),
			Content:   msg.Content,
			EditedAt:  now,
		}))

	return msg, nil
}

// Delete hides a message. Scope "me" hides it from the caller only and
// has no window; scope "everyone" is sender-only, bounded by the delete
// window, and replaces the content with a placeholder for all parties.
func (mb *messageBusiness) Delete(ctx context.Context, profileID, messageID, scope string) error {
	msg, err := mb.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return service.ErrMessageNotFound
		}
		return err
	}
	if err = mb.ensureParticipant(ctx, profileID, msg); err != nil {
		return err
	}

	switch scope {
	case DeleteScopeMe:
		if msg.IsDeletedFor(profileID) {
			return nil
		}
		msg.DeletedFor = append(msg.DeletedFor, profileID)
		return mb.msgRepo.Save(ctx, msg)

	case DeleteScopeEveryone:
		if msg.SenderID != profileID {
			return service.ErrMessageDeleteDenied
		}
		if msg.DeletedForEveryone {
			return service.ErrMessageAlreadyDeleted
		}
		if time.Since(msg.CreatedAt) > mb.deleteWindow {
			return service.ErrMessageDeleteWindowClosed
		}

		msg.DeletedForEveryone = true
		msg.Content = models.DeletedMessagePlaceholder
		msg.Reactions = nil
		if err = mb.msgRepo.Save(ctx, msg); err != nil {
			return err
		}

		mb.notifyMutation(ctx, msg, profileID,
			service.NewEvent(service.EventMessageDeleted, deletedPayload{
				MessageID: msg.GetID(),
				Content:   models.DeletedMessagePlaceholder,
			}))
		return nil

	default:
		return service.ErrDeleteScopeInvalid
	}
}

// Typing relays a typing indicator to the receiver when online. Nothing
// is persisted.
func (mb *messageBusiness) Typing(ctx context.Context, profileID, receiverID string, typing bool) {
	if receiverID == "" {
		return
	}
	if connID, ok := mb.presence.Resolve(receiverID); ok {
		mb.dispatcher.SendToConnection(ctx, connID,
			service.NewEvent(service.EventTypingUser, typingPayload{
				ProfileID: profileID,
				Typing:    typing,
			}))
	}
}

// ensureParticipant verifies the profile may act on the message:
// either side of a direct conversation, or any current member of the
// group a group message belongs to.
func (mb *messageBusiness) ensureParticipant(
	ctx context.Context, profileID string, msg *models.Message,
) error {
	if msg.Kind == models.KindGroup {
		grp, err := mb.groupRepo.GetByID(ctx, msg.GroupID)
		if err != nil {
			if data.ErrorIsNoRows(err) {
				return service.ErrGroupNotFound
			}
			return err
		}
		if !grp.IsMember(profileID) {
			return service.ErrGroupAccessDenied
		}
		return nil
	}
	if msg.SenderID != profileID && msg.ReceiverID != profileID {
		return service.ErrMessageNotFound
	}
	return nil
}

// notifyMutation fans a mutation event out to everyone who can see the
// message except the actor's own connection: the group topic for a
// group message, the conversation counterpart for a direct one.
func (mb *messageBusiness) notifyMutation(
	ctx context.Context, msg *models.Message, actorID string, evt service.Event,
) {
	if msg.Kind == models.KindGroup {
		actorConn, _ := mb.presence.Resolve(actorID)
		mb.rooms.Publish(ctx, GroupTopic(msg.GroupID), evt, actorConn)
		return
	}

	counterpart := msg.ReceiverID
	if counterpart == actorID {
		counterpart = msg.SenderID
	}
	if connID, ok := mb.presence.Resolve(counterpart); ok {
		mb.dispatcher.SendToConnection(ctx, connID, evt)
	}
}
