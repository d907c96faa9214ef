package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/userhub/apiserver/config"
	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/db"
	"github.com/userhub/apiserver/internal/events"
	"github.com/userhub/apiserver/internal/handlers"
	"github.com/userhub/apiserver/internal/metrics"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/storage"
	"github.com/userhub/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	issuer := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	var (
		dbConn      *sql.DB
		userRepo    services.UserRepository
		profileRepo services.ProfileRepository
	)
	if strings.TrimSpace(cfg.Database.Host) == "" {
		// No database configured: run against the in-memory store.
		// State does not survive a restart.
		slog.Warn("DB_HOST is empty, using the in-memory store")
		memory := store.NewMemory()
		userRepo = memory
		profileRepo = memory
	} else {
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbConn = conn
		userRepo = store.NewUserRepository(conn)
		profileRepo = store.NewProfileRepository(conn)
	}

	avatarStorage, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		closeDB(dbConn)
		return nil, err
	}

	bus, err := newEventBus(ctx, cfg.Events)
	if err != nil {
		closeDB(dbConn)
		return nil, err
	}

	collector := metrics.NewCollector()
	profileService := services.NewProfileService(profileRepo, avatarStorage)
	userService := services.NewUserService(userRepo, profileService, bus)
	authService := services.NewAuthService(userRepo, issuer)

	if err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		closeDB(dbConn)
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	requireAuth := handlers.RequireAuth(issuer)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", collector.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authService, collector)
	})
	router.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.UserRouter(r, userService, profileService.ResolveOwner, collector)
	})
	router.Route("/profile", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.ProfileRouter(r, profileService, collector)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	closeDB(s.db)
	return s.httpServer.Close()
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return wrapped, nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return wrapped, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newEventBus(ctx context.Context, cfg config.EventsConfig) (*events.Bus, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := events.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.New(client), nil
	case "pubsub":
		client, err := events.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.New(client), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

func closeDB(conn *sql.DB) {
	if conn != nil {
		_ = conn.Close()
	}
}
