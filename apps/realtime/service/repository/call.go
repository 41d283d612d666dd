package repository

import (
	"context"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

type callRepository struct {
	datastore.BaseRepository[*models.CallRecord]
}

// NewCallRepository creates a new call repository instance.
func NewCallRepository(ctx context.Context, dbPool pool.Pool, workMan workerpool.Manager) CallRepository {
	return &callRepository{
		BaseRepository: datastore.NewBaseRepository[*models.CallRecord](
			ctx, dbPool, workMan, func() *models.CallRecord { return &models.CallRecord{} },
		),
	}
}
