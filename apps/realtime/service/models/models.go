package models

import (
	"time"

	"github.com/pitabwire/frame/data"
	"gorm.io/datatypes"
)

const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Message content types accepted on the wire.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeVoice = "voice"
)

// Message delivery states. A message only ever moves forward:
// sent -> delivered -> read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	CallKindAudio = "audio"
	CallKindVideo = "video"
)

const (
	CallStatusRinging  = "ringing"
	CallStatusOngoing  = "ongoing"
	CallStatusEnded    = "ended"
	CallStatusMissed   = "missed"
	CallStatusRejected = "rejected"
)

const (
	CallEndReasonCompleted = "completed"
	CallEndReasonRejected  = "rejected"
	CallEndReasonCancelled = "cancelled"
	CallEndReasonMissed    = "missed"
	CallEndReasonFailed    = "failed"
)

// DeletedMessagePlaceholder replaces the content of a message deleted
// for everyone.
const DeletedMessagePlaceholder = "This message was deleted"

var allowedReactions = map[string]bool{
	"👍":  true,
	"❤️": true,
	"😂":  true,
	"😮":  true,
	"😢":  true,
	"🙏":  true,
}

// IsAllowedReaction reports whether an emoji belongs to the reaction set.
func IsAllowedReaction(emoji string) bool {
	return allowedReactions[emoji]
}

// IsValidMessageType reports whether t is an accepted content type.
func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeVoice:
		return true
	}
	return false
}

// Reaction is a single emoji tagged by a profile. At most one reaction
// per profile is kept on a message.
type Reaction struct {
	ProfileID string `json:"profile_id"`
	Emoji     string `json:"emoji"`
}

// ReadReceipt records a group member having read a message.
type ReadReceipt struct {
	ProfileID string    `json:"profile_id"`
	ReadAt    time.Time `json:"read_at"`
}

// EditRevision preserves a message body as it was before an edit.
type EditRevision struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

// Member is a group membership entry.
type Member struct {
	ProfileID string `json:"profile_id"`
	Role      string `json:"role"`
}

// Contact is the persisted profile directory entry. Online and
// LastSeenAt are best-effort mirrors of the in-memory presence state.
type Contact struct {
	data.BaseModel
	DisplayName string       `gorm:"type:varchar(250)" json:"display_name"`
	AvatarURL   string       `json:"avatar_url"`
	Online      bool         `json:"online"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
	Properties  data.JSONMap `json:"properties,omitempty"`
}

// Message is a persisted direct or group message.
type Message struct {
	data.BaseModel
	SenderID   string `gorm:"type:varchar(50);index:idx_message_sender_id" json:"sender_id"`
	ReceiverID string `gorm:"type:varchar(50);index:idx_message_receiver_id" json:"receiver_id,omitempty"`
	GroupID    string `gorm:"type:varchar(50);index:idx_message_group_id" json:"group_id,omitempty"`
	Kind       string `gorm:"type:varchar(20)" json:"kind"`
	Type       string `gorm:"type:varchar(20)" json:"type"`
	Content    string `json:"content"`
	ReplyToID  string `gorm:"type:varchar(50)" json:"reply_to_id,omitempty"`
	Status     string `gorm:"type:varchar(20)" json:"status"`

	ReadBy      datatypes.JSONSlice[ReadReceipt]  `json:"read_by,omitempty"`
	Reactions   datatypes.JSONSlice[Reaction]     `json:"reactions,omitempty"`
	EditHistory datatypes.JSONSlice[EditRevision] `json:"edit_history,omitempty"`
	DeletedFor  datatypes.JSONSlice[string]       `json:"-"`

	IsEdited           bool      `json:"is_edited"`
	EditedAt           time.Time `json:"edited_at,omitzero"`
	DeletedForEveryone bool      `json:"deleted_for_everyone"`
}

// ToggleReaction adds, swaps or removes the profile's reaction. Reacting
// with the emoji already set removes it; reacting with a different emoji
// replaces it. Returns true when a reaction remains after the call.
func (m *Message) ToggleReaction(profileID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.ProfileID != profileID {
			continue
		}
		if r.Emoji == emoji {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			return false
		}
		m.Reactions[i].Emoji = emoji
		return true
	}
	m.Reactions = append(m.Reactions, Reaction{ProfileID: profileID, Emoji: emoji})
	return true
}

// MarkReadBy appends a read receipt if the profile has none yet.
// Returns false when the profile had already read the message.
func (m *Message) MarkReadBy(profileID string, at time.Time) bool {
	for _, r := range m.ReadBy {
		if r.ProfileID == profileID {
			return false
		}
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{ProfileID: profileID, ReadAt: at})
	return true
}

// IsDeletedFor reports whether the message is hidden from the profile,
// either by a delete-for-me or a delete-for-everyone.
func (m *Message) IsDeletedFor(profileID string) bool {
	if m.DeletedForEveryone {
		return true
	}
	for _, id := range m.DeletedFor {
		if id == profileID {
			return true
		}
	}
	return false
}

// Group is a persisted group conversation with its embedded member list.
type Group struct {
	data.BaseModel
	Name        string                      `gorm:"type:varchar(250)" json:"name"`
	Description string                      `json:"description"`
	AvatarURL   string                      `json:"avatar_url"`
	Members     datatypes.JSONSlice[Member] `json:"members"`

	OnlyAdminsCanPost       bool `json:"only_admins_can_post"`
	OnlyAdminsCanAddMembers bool `json:"only_admins_can_add_members"`
}

func (g *Group) IsMember(profileID string) bool {
	for _, m := range g.Members {
		if m.ProfileID == profileID {
			return true
		}
	}
	return false
}

func (g *Group) IsAdmin(profileID string) bool {
	for _, m := range g.Members {
		if m.ProfileID == profileID {
			return m.Role == RoleAdmin
		}
	}
	return false
}

// CanPost reports whether the profile may send messages to the group,
// honouring the admins-only posting setting.
func (g *Group) CanPost(profileID string) bool {
	for _, m := range g.Members {
		if m.ProfileID == profileID {
			return !g.OnlyAdminsCanPost || m.Role == RoleAdmin
		}
	}
	return false
}

// CanAddMembers reports whether the profile may add members, honouring
// the admins-only add setting.
func (g *Group) CanAddMembers(profileID string) bool {
	for _, m := range g.Members {
		if m.ProfileID == profileID {
			return !g.OnlyAdminsCanAddMembers || m.Role == RoleAdmin
		}
	}
	return false
}

// AddMember appends a membership entry, returning false when the
// profile already belongs to the group.
func (g *Group) AddMember(profileID, role string) bool {
	if g.IsMember(profileID) {
		return false
	}
	g.Members = append(g.Members, Member{ProfileID: profileID, Role: role})
	return true
}

// RemoveMember drops the profile's membership entry, returning false
// when it was not a member.
func (g *Group) RemoveMember(profileID string) bool {
	for i, m := range g.Members {
		if m.ProfileID == profileID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// MemberIDs lists member profile IDs, optionally skipping one.
func (g *Group) MemberIDs(exclude string) []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.ProfileID == exclude {
			continue
		}
		ids = append(ids, m.ProfileID)
	}
	return ids
}

// CallRecord is the persisted history entry for a call session. Live
// call state is held in memory; this row trails the state machine.
type CallRecord struct {
	data.BaseModel
	CallerID   string `gorm:"type:varchar(50);index:idx_call_caller_id" json:"caller_id"`
	ReceiverID string `gorm:"type:varchar(50);index:idx_call_receiver_id" json:"receiver_id"`
	Kind       string `gorm:"type:varchar(20)" json:"kind"`
	Status     string `gorm:"type:varchar(20)" json:"status"`

	StartedAt    time.Time `json:"started_at,omitzero"`
	EndedAt      time.Time `json:"ended_at,omitzero"`
	EndedBy      string    `gorm:"type:varchar(50)" json:"ended_by,omitempty"`
	EndReason    string    `gorm:"type:varchar(20)" json:"end_reason,omitempty"`
	DurationSecs int64     `json:"duration_secs"`
}

// IsTerminal reports whether the call can no longer change state.
func (c *CallRecord) IsTerminal() bool {
	switch c.Status {
	case CallStatusEnded, CallStatusMissed, CallStatusRejected:
		return true
	}
	return false
}
