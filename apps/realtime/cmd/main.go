package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/util"

	rconfig "github.com/chatmail/service-realtime/apps/realtime/config"
	"github.com/chatmail/service-realtime/apps/realtime/service/business"
	"github.com/chatmail/service-realtime/apps/realtime/service/handlers"
	"github.com/chatmail/service-realtime/apps/realtime/service/repository"
	"github.com/chatmail/service-realtime/internal/health"
)

// runService initializes and starts the realtime service with all dependencies.
func runService(ctx context.Context) error {
	cfg, err := config.FromEnv[rconfig.RealtimeConfig]()
	if err != nil {
		util.Log(ctx).With("err", err).Error("could not process configs")
		return err
	}

	if cfg.Name() == "" {
		cfg.ServiceName = "service_realtime"
	}

	if err = cfg.Validate(); err != nil {
		util.Log(ctx).WithError(err).Error("invalid configuration")
		return err
	}

	ctx, svc := frame.NewServiceWithContext(
		ctx,
		frame.WithConfig(&cfg),
		frame.WithDatastore(),
	)
	defer svc.Stop(ctx)
	log := svc.Log(ctx)

	workMan := svc.WorkManager()
	dbManager := svc.DatastoreManager()
	dbPool := dbManager.GetPool(ctx, datastore.DefaultPoolName)

	// Handle database migration if requested
	if cfg.DoDatabaseMigrate() {
		if err = repository.Migrate(ctx, svc, cfg.GetDatabaseMigrationPath()); err != nil {
			log.WithError(err).Fatal("main -- Could not migrate successfully")
		}
		return nil
	}

	contactRepo := repository.NewContactRepository(ctx, dbPool, workMan)
	messageRepo := repository.NewMessageRepository(ctx, dbPool, workMan)
	groupRepo := repository.NewGroupRepository(ctx, dbPool, workMan)
	callRepo := repository.NewCallRepository(ctx, dbPool, workMan)

	hub := handlers.NewHub(int32(cfg.MaxConnections))
	presence := business.NewPresenceTracker()
	rooms := business.NewRoomRegistry(hub)

	messageBiz := business.NewMessageBusiness(
		messageRepo, groupRepo, presence, rooms, hub, cfg.EditWindow(), cfg.DeleteWindow(),
	)
	groupBiz := business.NewGroupBusiness(groupRepo, messageRepo, presence, rooms)
	callBiz := business.NewCallBusiness(
		callRepo, presence, hub, cfg.RingTimeout(), cfg.PersistTimeout(),
	)

	verifier := handlers.NewJWTVerifier(cfg.TokenSecret)
	router := handlers.NewRouter(messageBiz, groupBiz, callBiz, hub)

	manager := handlers.NewManager(ctx, hub, verifier, router,
		presence, rooms, callBiz, contactRepo,
		handlers.Options{
			SendBufferSize:    cfg.SendBufferSize,
			ReadLimitBytes:    int64(cfg.ReadLimitBytes),
			WriteTimeout:      cfg.WriteTimeout(),
			HeartbeatInterval: cfg.HeartbeatInterval(),
		})
	defer func() { _ = manager.Shutdown(ctx) }()

	healthHandler := setupHealthChecks(dbPool, hub, int32(cfg.MaxConnections))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/ws", manager.Handler())

	svc.Init(ctx, frame.WithHTTPHandler(mux))

	return svc.Run(ctx, "")
}

func main() {
	ctx := context.Background()
	if err := runService(ctx); err != nil {
		util.Log(ctx).WithError(err).Fatal("could not run service")
	}
}

// setupHealthChecks creates the health check handler with database and
// socket pool checkers.
func setupHealthChecks(dbPool pool.Pool, hub *handlers.Hub, maxConns int32) *health.Handler {
	handler := health.NewHandler()
	handler.AddChecker(health.NewDatabaseChecker(dbPool, 5*time.Second))
	handler.AddChecker(health.NewSocketChecker(hub.Size, maxConns))
	return handler
}
