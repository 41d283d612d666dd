package repository

import (
	"context"

	"github.com/pitabwire/frame"

	"github.com/chatmail/service-realtime/apps/realtime/service/models"
)

func Migrate(ctx context.Context, svc *frame.Service, migrationPath string) error {
	return svc.MigrateDatastore(ctx, migrationPath,
		&models.Contact{}, &models.Message{}, &models.Group{}, &models.CallRecord{})
}
