package business

import (
	"context"
	"time"

	"github.com/pitabwire/frame/data"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/models"
	"github.com/chatmail/service-realtime/apps/realtime/service/repository"
	"github.com/chatmail/service-realtime/internal/telemetry"
)

type groupMemberPayload struct {
	GroupID   string `json:"group_id"`
	ProfileID string `json:"profile_id"`
}

type groupMembersPayload struct {
	GroupID   string   `json:"group_id"`
	AddedBy   string   `json:"added_by,omitempty"`
	RemovedBy string   `json:"removed_by,omitempty"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

type groupReadReceiptPayload struct {
	GroupID   string    `json:"group_id"`
	MessageID string    `json:"message_id"`
	ProfileID string    `json:"profile_id"`
	ReadAt    time.Time `json:"read_at"`
}

type groupBusiness struct {
	groupRepo repository.GroupRepository
	msgRepo   repository.MessageRepository
	presence  *PresenceTracker
	rooms     *RoomRegistry
}

// NewGroupBusiness creates a new instance of GroupBusiness.
func NewGroupBusiness(
	groupRepo repository.GroupRepository,
	msgRepo repository.MessageRepository,
	presence *PresenceTracker,
	rooms *RoomRegistry,
) GroupBusiness {
	return &groupBusiness{
		groupRepo: groupRepo,
		msgRepo:   msgRepo,
		presence:  presence,
		rooms:     rooms,
	}
}

func (gb *groupBusiness) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if groupID == "" {
		return nil, service.ErrGroupIDRequired
	}
	grp, err := gb.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return nil, service.ErrGroupNotFound
		}
		return nil, err
	}
	return grp, nil
}

// Join subscribes a member's connection to the group's live topic.
// Membership is checked against the stored member list; joining the
// topic never mutates the group.
func (gb *groupBusiness) Join(
	ctx context.Context, profileID, connectionID, groupID string,
) (*models.Group, error) {
	grp, err := gb.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !grp.IsMember(profileID) {
		return nil, service.ErrGroupAccessDenied
	}

	gb.rooms.Subscribe(GroupTopic(groupID), connectionID)

	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupMemberJoined, groupMemberPayload{
			GroupID:   groupID,
			ProfileID: profileID,
		}), connectionID)

	return grp, nil
}

// Leave unsubscribes the connection from the group's live topic.
func (gb *groupBusiness) Leave(ctx context.Context, profileID, connectionID, groupID string) error {
	if groupID == "" {
		return service.ErrGroupIDRequired
	}

	gb.rooms.Unsubscribe(GroupTopic(groupID), connectionID)

	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupMemberLeft, groupMemberPayload{
			GroupID:   groupID,
			ProfileID: profileID,
		}), connectionID)

	return nil
}

// Send persists a group message and fans it out to the group's live
// topic. Posting policy is re-read on every send so a settings change
// takes effect immediately.
func (gb *groupBusiness) Send(ctx context.Context, in SendGroupMessageInput) (*models.Message, error) {
	if in.Content == "" {
		return nil, service.ErrMessageContentRequired
	}
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if !models.IsValidMessageType(in.Type) {
		return nil, service.ErrMessageTypeInvalid
	}

	grp, err := gb.loadGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if !grp.IsMember(in.SenderID) {
		return nil, service.ErrGroupAccessDenied
	}
	if !grp.CanPost(in.SenderID) {
		return nil, service.ErrGroupPostDenied
	}

	msg := &models.Message{
		SenderID:  in.SenderID,
		GroupID:   in.GroupID,
		Kind:      models.KindGroup,
		Type:      in.Type,
		Content:   in.Content,
		ReplyToID: in.ReplyToID,
		Status:    models.StatusSent,
	}
	if err = gb.msgRepo.Save(ctx, msg); err != nil {
		return nil, err
	}

	senderConn, _ := gb.presence.Resolve(in.SenderID)
	fanout := gb.rooms.Publish(ctx, GroupTopic(in.GroupID),
		service.NewEvent(service.EventGroupMessageReceive, msg), senderConn)

	telemetry.GroupMessagesSentCounter.Add(ctx, 1)
	telemetry.GroupFanoutCounter.Add(ctx, int64(fanout))

	return msg, nil
}

// MarkRead records a member's read receipt on a group message and
// announces it on the group topic.
func (gb *groupBusiness) MarkRead(ctx context.Context, profileID, groupID, messageID string) error {
	grp, err := gb.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !grp.IsMember(profileID) {
		return service.ErrGroupAccessDenied
	}

	msg, err := gb.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return service.ErrMessageNotFound
		}
		return err
	}
	if msg.GroupID != groupID {
		return service.ErrMessageNotFound
	}

	now := time.Now()
	if !msg.MarkReadBy(profileID, now) {
		return nil
	}
	if err = gb.msgRepo.Save(ctx, msg); err != nil {
		return err
	}

	readerConn, _ := gb.presence.Resolve(profileID)
	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupMessageReadReceipt, groupReadReceiptPayload{
			GroupID:   groupID,
			MessageID: messageID,
			ProfileID: profileID,
			ReadAt:    now,
		}), readerConn)

	return nil
}

// AddMembers appends profiles to the group, subject to the add-members
// policy. Existing members are skipped silently. Each added profile is
// told directly; the rest of the group hears it on the topic.
func (gb *groupBusiness) AddMembers(
	ctx context.Context, profileID, groupID string, memberIDs []string,
) (*models.Group, error) {
	if len(memberIDs) == 0 {
		return nil, service.ErrGroupMemberMissing
	}

	grp, err := gb.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !grp.IsMember(profileID) {
		return nil, service.ErrGroupAccessDenied
	}
	if !grp.CanAddMembers(profileID) {
		return nil, service.ErrGroupAdminRequired
	}

	added := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == "" {
			continue
		}
		if grp.AddMember(id, models.RoleMember) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return grp, nil
	}

	if err = gb.groupRepo.Save(ctx, grp); err != nil {
		return nil, err
	}

	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupMembersAdded, groupMembersPayload{
			GroupID:   groupID,
			AddedBy:   profileID,
			MemberIDs: added,
		}), "")

	for _, id := range added {
		if connID, ok := gb.presence.Resolve(id); ok {
			gb.dispatchTo(ctx, connID,
				service.NewEvent(service.EventGroupAddedToGroup, grp))
		}
	}

	return grp, nil
}

// RemoveMember drops a profile from the group. Admin only. The removed
// profile is told directly and its connection leaves the topic.
func (gb *groupBusiness) RemoveMember(
	ctx context.Context, profileID, groupID, memberID string,
) (*models.Group, error) {
	if memberID == "" {
		return nil, service.ErrGroupMemberMissing
	}

	grp, err := gb.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !grp.IsAdmin(profileID) {
		return nil, service.ErrGroupAdminRequired
	}
	if !grp.RemoveMember(memberID) {
		return nil, service.ErrGroupMemberMissing
	}

	if err = gb.groupRepo.Save(ctx, grp); err != nil {
		return nil, err
	}

	if connID, ok := gb.presence.Resolve(memberID); ok {
		gb.rooms.Unsubscribe(GroupTopic(groupID), connID)
		gb.dispatchTo(ctx, connID,
			service.NewEvent(service.EventGroupRemovedFromGroup, groupMemberPayload{
				GroupID:   groupID,
				ProfileID: memberID,
			}))
	}

	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupMemberRemoved, groupMembersPayload{
			GroupID:   groupID,
			RemovedBy: profileID,
			MemberIDs: []string{memberID},
		}), "")

	return grp, nil
}

// UpdateSettings applies admin-editable settings and announces the new
// group state on the topic.
func (gb *groupBusiness) UpdateSettings(
	ctx context.Context, profileID, groupID string, in GroupUpdateInput,
) (*models.Group, error) {
	grp, err := gb.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !grp.IsAdmin(profileID) {
		return nil, service.ErrGroupAdminRequired
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, service.ErrEmptyValueSupplied
		}
		grp.Name = *in.Name
	}
	if in.Description != nil {
		grp.Description = *in.Description
	}
	if in.AvatarURL != nil {
		grp.AvatarURL = *in.AvatarURL
	}
	if in.OnlyAdminsCanPost != nil {
		grp.OnlyAdminsCanPost = *in.OnlyAdminsCanPost
	}
	if in.OnlyAdminsCanAddMembers != nil {
		grp.OnlyAdminsCanAddMembers = *in.OnlyAdminsCanAddMembers
	}

	if err = gb.groupRepo.Save(ctx, grp); err != nil {
		return nil, err
	}

	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupUpdated, grp), "")

	return grp, nil
}

// Typing relays a member's typing indicator on the group topic.
func (gb *groupBusiness) Typing(ctx context.Context, profileID, groupID string, typing bool) {
	if groupID == "" {
		return
	}
	senderConn, _ := gb.presence.Resolve(profileID)
	gb.rooms.Publish(ctx, GroupTopic(groupID),
		service.NewEvent(service.EventGroupTypingUser, typingPayload{
			ProfileID: profileID,
			GroupID:   groupID,
			Typing:    typing,
		}), senderConn)
}

func (gb *groupBusiness) dispatchTo(ctx context.Context, connectionID string, evt service.Event) {
	gb.rooms.dispatcher.SendToConnection(ctx, connectionID, evt)
}
