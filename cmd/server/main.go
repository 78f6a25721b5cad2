// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/campusloop/loopd/internal/auth"
	"github.com/campusloop/loopd/internal/config"
	"github.com/campusloop/loopd/internal/engine"
	"github.com/campusloop/loopd/internal/events"
	"github.com/campusloop/loopd/internal/handlers"
	"github.com/campusloop/loopd/internal/index"
	"github.com/campusloop/loopd/internal/middleware"
	"github.com/campusloop/loopd/internal/store"
	"github.com/campusloop/loopd/internal/venues"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init: %v", err)
	}

	ctx := context.Background()

	roomStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer roomStore.Close()

	crossIndex, err := buildIndex(ctx, cfg, roomStore)
	if err != nil {
		log.Fatalf("index: %v", err)
	}

	var publisher events.Publisher
	if cfg.EventsEnabled {
		publisher, err = events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.EventQueue)
		if err != nil {
			log.Fatalf("events: %v", err)
		}
		defer publisher.Close()
	}

	var catalog venues.Catalog
	if cfg.VenueCatalogPath != "" {
		catalog, err = venues.LoadCatalog(cfg.VenueCatalogPath)
		if err != nil {
			log.Fatalf("venue catalog: %v", err)
		}
	}

	eng := engine.New(roomStore, crossIndex, engine.Options{
		Catalog:         catalog,
		Events:          publisher,
		Logger:          logger,
		AutoCloseAfter:  cfg.AutoCloseAfter,
		ScheduleGrace:   cfg.ScheduleGrace,
		ScheduleHorizon: cfg.ScheduleHorizon,
	})
	srv := handlers.NewServer(eng, logger)

	logged := middleware.LogMiddleware(logger)
	mux := http.NewServeMux()

	// room engine endpoints
	mux.Handle("/room/snapshot", logged(handlers.SnapshotHandler(srv)))
	mux.Handle("/room/claim", logged(handlers.ClaimHandler(srv)))
	mux.Handle("/room/join", logged(handlers.JoinHandler(srv)))
	mux.Handle("/room/queue/join", logged(handlers.QueueJoinHandler(srv)))
	mux.Handle("/room/leave", logged(handlers.LeaveHandler(srv)))
	mux.Handle("/room/configure", logged(handlers.ConfigureHandler(srv)))
	mux.Handle("/room/start", logged(handlers.StartLoopHandler(srv)))
	mux.Handle("/room/end", logged(handlers.EndLoopHandler(srv)))
	mux.Handle("/room/chat", logged(handlers.ChatHandler(srv)))
	mux.Handle("/room/location", logged(handlers.LocationHandler(srv)))
	mux.Handle("/room/reset", logged(handlers.ResetHandler(srv)))
	mux.Handle("/room/match/preview", logged(handlers.MatchPreviewHandler(srv)))

	// cross-room listing
	mux.Handle("/loops", logged(handlers.ListUserLoopsHandler(srv)))

	addr := cfg.Addr()
	logger.Infof("Running on %s (store=%s index=%s)", addr, cfg.StoreBackend, cfg.IndexMode)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.RoomStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBadger:
		return store.NewBadgerStore(cfg.BadgerPath)
	case config.StorePostgres:
		return store.NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, s store.RoomStore) (index.CrossRoomIndex, error) {
	if cfg.IndexMode == config.IndexReverse {
		return index.NewReverseIndex(ctx, s)
	}
	return index.NewScanIndex(s), nil
}
