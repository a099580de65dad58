// Command server runs the gate credential service: credential issuance,
// scan verification, the gate event ledger, scholar presence, and the
// dashboard rollups, all behind one HTTP surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"gatewarden/internal/blob"
	s3blob "gatewarden/internal/blob/s3"
	credentialhandler "gatewarden/internal/credential/handler"
	"gatewarden/internal/credential/issuer"
	credstore "gatewarden/internal/credential/store"
	"gatewarden/internal/dashboard"
	dashboardhandler "gatewarden/internal/dashboard/handler"
	"gatewarden/internal/gate"
	gatehandler "gatewarden/internal/gate/handler"
	"gatewarden/internal/identity"
	"gatewarden/internal/ledger"
	ledgerstore "gatewarden/internal/ledger/store"
	"gatewarden/internal/ledger/stream"
	"gatewarden/internal/platform/config"
	"gatewarden/internal/platform/httpserver"
	"gatewarden/internal/platform/logger"
	"gatewarden/internal/platform/metrics"
	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/platform/postgres"
	"gatewarden/internal/platform/redis"
	"gatewarden/internal/presence"
	presencehandler "gatewarden/internal/presence/handler"
	presencestore "gatewarden/internal/presence/store"
	httptransport "gatewarden/internal/transport/http"
	id "gatewarden/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	health := make(map[string]httptransport.HealthChecker)

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		credentials   credstore.Store
		events        interface {
			ledger.Store
			dashboard.EventCounter
		}
		presenceStore presence.Store
		presenceCount dashboard.PresenceCounter
	)
	directory := seedDirectory(log)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		health["postgres"] = db.Ping

		credentials = credstore.NewPostgres(db)
		events = ledgerstore.NewPostgres(db)
		presenceStore = presencestore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		credentials = credstore.NewMemoryStore()
		events = ledgerstore.NewMemoryStore()
		presenceStore = presencestore.NewMemoryStore()
	}

	// Ledger service and its optional Kafka fanout.
	ledgerOpts := []ledger.Option{ledger.WithMetrics(m)}
	var publisher stream.Publisher = stream.Noop{}
	if cfg.KafkaBrokers != "" {
		kafka, err := stream.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		publisher = kafka
		defer kafka.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithStream(publisher))
	}
	ledgerSvc, err := ledger.New(events, log, ledgerOpts...)
	if err != nil {
		return err
	}

	// Issuer with its optional S3 payload archive.
	issuerOpts := []issuer.Option{issuer.WithMetrics(m)}
	if cfg.QRBucket != "" {
		var blobs blob.Store
		blobs, err = s3blob.New(ctx, cfg.AWSRegion, cfg.QRBucket)
		if err != nil {
			return err
		}
		issuerOpts = append(issuerOpts, issuer.WithBlobStore(blobs))
	}
	issuerSvc, err := issuer.New(credentials, directory, log, issuerOpts...)
	if err != nil {
		return err
	}

	gateSvc, err := gate.New(credentials, ledgerSvc, log, gate.WithMetrics(m))
	if err != nil {
		return err
	}

	// Presence: the Redis lock serializes toggles across instances; a
	// single instance falls back to the in-process lock.
	presenceOpts := []presence.Option{presence.WithMetrics(m)}
	if cfg.RedisURL != "" {
		redisClient, err := redis.New(cfg.Redis())
		if err != nil {
			return err
		}
		defer redisClient.Close()
		health["redis"] = func() error { return redisClient.Health(context.Background()) }
		presenceOpts = append(presenceOpts, presence.WithKeyedLock(presence.NewRedisLock(redisClient.Client)))
	}
	presenceSvc, err := presence.New(presenceStore, directory, ledgerSvc, log, presenceOpts...)
	if err != nil {
		return err
	}
	presenceCount = presenceSvc

	dashboardSvc, err := dashboard.New(credentials, events, presenceCount)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		Metrics:      m,
		JWTValidator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		Handlers: []httptransport.Registrar{
			credentialhandler.New(issuerSvc, log),
			gatehandler.New(gateSvc, ledgerSvc, log),
			presencehandler.New(presenceSvc, log),
			dashboardhandler.New(dashboardSvc, log),
		},
		Health:         health,
		RequestTimeout: cfg.PersistTimeout * 6,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gatewarden", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// seedDirectory builds the development identity directory. The production
// deployment replaces this with the real identity collaborator.
func seedDirectory(log *slog.Logger) identity.Directory {
	directory := identity.NewMemoryDirectory()
	for _, seed := range []struct {
		env  string
		role id.Role
		name string
	}{
		{"SEED_ADMIN_ID", id.RoleAdmin, "Seed Admin"},
		{"SEED_GUARD_ID", id.RoleGuard, "Seed Guard"},
	} {
		raw := os.Getenv(seed.env)
		if raw == "" {
			continue
		}
		identityID, err := id.ParseIdentityID(raw)
		if err != nil {
			log.Warn("ignoring invalid seed identity", "env", seed.env, "error", err)
			continue
		}
		directory.Put(identity.Identity{
			ID:     identityID,
			Role:   seed.role,
			Name:   seed.name,
			Active: true,
		})
	}
	return directory
}
