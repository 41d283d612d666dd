package repository

import (
	"context"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type messageRepository struct {
	datastore.BaseRepository[*models.Message]
}

// MarkConversationRead transitions every unread message sent by senderID to
// receiverID into the read state and reports how many rows changed.
func (mr *messageRepository) MarkConversationRead(
	ctx context.Context, senderID, receiverID string,
) (int64, error) {
	result := mr.Pool().DB(ctx, false).
		Model(&models.Message{}).
		Where("kind = ? AND sender_id = ? AND receiver_id = ? AND status <> ?",
			models.KindDirect, senderID, receiverID, models.StatusRead).
		Update("status", models.StatusRead)
	return result.RowsAffected, result.Error
}

// NewMessageRepository creates a new message repository instance.
func NewMessageRepository(ctx context.Context, dbPool pool.Pool, workMan workerpool.Manager) MessageRepository {
	return &messageRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Message](
			ctx, dbPool, workMan, func() *models.Message { return &models.Message{} },
		),
	}
}
