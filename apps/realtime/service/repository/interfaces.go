package repository

import (
	"context"
	"time"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

// ContactRepository manages profile directory entries.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	UpdateOnlineStatus(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

// MessageRepository manages direct and group messages.
type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Save(ctx context.Context, msg *models.Message) error
	MarkConversationRead(ctx context.Context, senderID, receiverID string) (int64, error)
}

// GroupRepository manages group conversations.
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
	Save(ctx context.Context, group *models.Group) error
}

// CallRepository manages call history records.
type CallRepository interface {
	GetByID(ctx context.Context, id string) (*models.CallRecord, error)
	Save(ctx context.Context, call *models.CallRecord) error
}
