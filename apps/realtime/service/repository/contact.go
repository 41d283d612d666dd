package repository

import (
	"context"
	"time"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type contactRepository struct {
	datastore.BaseRepository[*models.Contact]
}

// UpdateOnlineStatus flips a contact's online flag and last-seen marker
// without loading the row.
func (cr *contactRepository) UpdateOnlineStatus(
	ctx context.Context, id string, online bool, lastSeen time.Time,
) error {
	return cr.Pool().DB(ctx, false).
		Model(&models.Contact{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"online":       online,
			"last_seen_at": lastSeen,
		}).Error
}

// NewContactRepository creates a new contact repository instance.
func NewContactRepository(ctx context.Context, dbPool pool.Pool, workMan workerpool.Manager) ContactRepository {
	return &contactRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Contact](
			ctx, dbPool, workMan, func() *models.Contact { return &models.Contact{} },
		),
	}
}
