package repository

import (
	"context"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type groupRepository struct {
	datastore.BaseRepository[*models.Group]
}

// NewGroupRepository creates a new group repository instance.
func NewGroupRepository(ctx context.Context, dbPool pool.Pool, workMan workerpool.Manager) GroupRepository {
	return &groupRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Group](
			ctx, dbPool, workMan, func() *models.Group { return &models.Group{} },
		),
	}
}
