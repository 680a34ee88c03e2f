// README: Entry point; loads config, wires stores, services and the notifier, starts the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fooddash/internal/config"
	"fooddash/internal/geo"
	httptransport "fooddash/internal/http"
	"fooddash/internal/http/handlers"
	"fooddash/internal/http/respond"
	"fooddash/internal/infra"
	"fooddash/internal/modules/catalog"
	"fooddash/internal/modules/order"
	"fooddash/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.IsProduction())
	respond.HideInternalErrors(cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, mongoDB, err := infra.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.MaxPoolSize)
	if err != nil {
		log.WithError(err).Fatal("mongo init")
	}
	orderStore := order.NewStore(mongoDB)
	if err := orderStore.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("order indexes")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("postgres init")
	}
	redisClient := infra.NewRedis(cfg.Redis.Addr)

	geoClient, err := geo.NewClient(cfg.Maps.APIKey, geo.Options{
		Timeout:    cfg.Maps.Timeout,
		MaxRetries: cfg.Maps.MaxRetries,
		Backoff:    cfg.Maps.Backoff,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("maps init")
	}
	origin := geo.NewOriginCache(geoClient, cfg.Maps.RestaurantAddress, redisClient, cfg.Maps.OriginTTL, log)

	var verifier infra.TokenVerifier
	sinks := []notify.Sink{}

	hub := notify.NewHub(notify.HubOptions{
		ClientBuffer: cfg.Notifier.ClientBuffer,
		MaxClients:   cfg.Notifier.MaxClients,
	}, log)
	hub.Initialize(cfg.HTTP.FrontendURL)
	sinks = append(sinks, hub)

	if cfg.Auth.Provider == "firebase" || cfg.Firebase.FCMEnabled || cfg.Firebase.DatabaseURL != "" {
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.DatabaseURL, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.WithError(err).Fatal("firebase init")
		}
		if cfg.Auth.Provider == "firebase" {
			if verifier, err = infra.NewFirebaseVerifier(ctx, app); err != nil {
				log.WithError(err).Fatal("firebase auth")
			}
		}
		if cfg.Firebase.FCMEnabled {
			msg, err := infra.NewMessaging(ctx, app)
			if err != nil {
				log.WithError(err).Fatal("firebase messaging")
			}
			sinks = append(sinks, notify.NewFCMSink(msg, log))
		}
		if cfg.Firebase.DatabaseURL != "" {
			rtdb, err := infra.NewRealtimeDB(ctx, app)
			if err != nil {
				log.WithError(err).Fatal("firebase realtime database")
			}
			sinks = append(sinks, notify.NewRTDBSink(rtdb))
		}
	}
	if verifier == nil {
		verifier = infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	}

	if cfg.NATS.URL != "" {
		nc, err := infra.NewNATS(cfg.NATS.URL, log)
		if err != nil {
			log.WithError(err).Fatal("nats init")
		}
		defer nc.Close()
		sinks = append(sinks, notify.NewNATSSink(nc, cfg.NATS.Prefix))
	}

	queue := notify.NewQueue(cfg.Notifier.QueueSize, cfg.Notifier.Workers, log, sinks...)
	queue.Start()

	catalogSvc := catalog.NewService(catalog.NewStore(dbPool))
	orderSvc := order.NewService(orderStore, order.Deps{
		Catalog:     catalogSvc,
		Router:      geoClient,
		Origin:      origin,
		Publisher:   queue,
		Policy:      order.Policy{AllowCancelAfterReady: cfg.Order.AllowCancelAfterReady},
		MaxPageSize: cfg.Order.MaxPageSize,
		Log:         log,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Order:       orderSvc,
		Tracking:    orderSvc,
		Catalog:     catalogSvc,
		Hub:         hub,
		Verifier:    verifier,
		RateLimiter: redisClient,
		RateLimit:   cfg.RateLimit,
		FrontendURL: cfg.HTTP.FrontendURL,
		Checks: map[string]handlers.Check{
			"mongo":    func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Log: log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("notification queue did not drain")
	}
	hub.Shutdown()

	dbPool.Close()
	if err := redisClient.Close(); err != nil {
		log.WithError(err).Warn("redis close")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Warn("mongo disconnect")
	}
	log.Info("shutdown complete")
}
