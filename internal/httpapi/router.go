package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Phannhothinh/chatbot-op/internal/auth"
	"github.com/Phannhothinh/chatbot-op/internal/chat"
	"github.com/Phannhothinh/chatbot-op/internal/config"
	"github.com/Phannhothinh/chatbot-op/internal/logging"
	"github.com/Phannhothinh/chatbot-op/internal/middleware"
	"github.com/Phannhothinh/chatbot-op/internal/providers"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB            *storage.DB
	Redis         *storage.RedisClient // nil when Redis is not configured
	Sessions      SessionService
	Credentials   CredentialService
	Chat          ChatService
	AuditSink     logging.Sink
	RequestLogger *logging.RequestLogger
}

// Shutdown flushes the background writers and closes connections
func (d *Dependencies) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.RequestLogger != nil {
		d.RequestLogger.Shutdown()
	}
	if d.AuditSink != nil {
		keep(d.AuditSink.Shutdown(ctx))
	}
	if d.Redis != nil {
		keep(d.Redis.Close())
	}
	if d.DB != nil {
		keep(d.DB.Close())
	}
	return firstErr
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (http.Handler, *Dependencies, error) {
	logger := utils.NewLogger("router")

	// Initialize database
	db, err := storage.NewDB(storage.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{DB: db}
	fail := func(err error) (http.Handler, *Dependencies, error) {
		_ = deps.Shutdown(context.Background())
		return nil, nil, err
	}

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx); err != nil {
		return fail(fmt.Errorf("failed to migrate database: %w", err))
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize encryption: %w", err))
	}

	// Initialize Redis client when configured
	var revocations auth.RevocationStore
	if cfg.Redis.Enabled() {
		redisClient, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize Redis: %w", err))
		}
		deps.Redis = redisClient
		revocations = storage.NewRedisRevocationStore(redisClient.Client())
	} else {
		logger.Warn("REDIS_ADDRESS not set, session revocations are kept in memory")
		revocations = storage.NewMemoryRevocationStore(cfg.Session.RevocationSize)
	}

	adapters, err := providers.NewDefaultAdapterSet(providers.Options{
		Timeout: cfg.Provider.RequestTimeout,
		BaseURLs: map[string]string{
			"openai": cfg.Provider.OpenAIBaseURL,
			"cohere": cfg.Provider.CohereBaseURL,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize provider adapters: %w", err))
	}

	sink, err := newAuditSink(context.Background(), cfg.AuditSink, deps.Redis)
	if err != nil {
		return fail(err)
	}
	deps.AuditSink = sink

	if cfg.RequestLogger.Enabled {
		requestLogger, err := logging.NewLogger(
			cfg.RequestLogger.FilePathTemplate,
			cfg.RequestLogger.MaxSize,
			cfg.RequestLogger.MaxFiles,
			cfg.RequestLogger.BufferSize,
			cfg.RequestLogger.FlushInterval,
		)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize request logger: %w", err))
		}
		deps.RequestLogger = requestLogger
	}

	credentials := db.NewCredentialRepository(encryption)
	deps.Credentials = credentials
	deps.Sessions = auth.NewSessionAuthority(db.NewUserRepository(), revocations, cfg.JWTSecret, cfg.Session.MaxAge)
	deps.Chat = chat.NewService(credentials, db.NewMessageRepository(), adapters, sink, chat.Config{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MessageListLimit: cfg.Chat.MessageListLimit,
		SystemPrompt:     cfg.Chat.SystemPrompt,
	})

	logger.Info("Router initialized",
		"database", db.Driver(),
		"redis", deps.Redis != nil,
		"adapters", adapters.IDs(),
		"audit_sink", cfg.AuditSink.Enabled,
	)

	return newHandler(deps, cfg.Session), deps, nil
}

// newHandler builds the route table over already constructed dependencies
func newHandler(deps *Dependencies, session config.SessionConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)

	registerRoutes(r, deps, session)

	var requestLogger middleware.RequestLogger
	if deps.RequestLogger != nil {
		requestLogger = deps.RequestLogger
	}
	return middleware.AccessLog(requestLogger)(r)
}

var publicPaths = map[string]bool{
	"/health":          true,
	"/api/auth/signin": true,
}

func registerRoutes(r *mux.Router, deps *Dependencies, session config.SessionConfig) {
	requireSession := middleware.SessionMiddleware(deps.Sessions, session.CookieName)
	protect := func(h http.HandlerFunc) http.Handler {
		return requireSession(h)
	}

	// A wrong method on a protected path still needs a session first
	gatedMethodNotAllowed := protect(methodNotAllowed)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if publicPaths[req.URL.Path] {
			methodNotAllowed(w, req)
			return
		}
		gatedMethodNotAllowed.ServeHTTP(w, req)
	})

	authHandler := NewAuthHandler(deps.Sessions, session.CookieName, session.CookieSecure)
	chatHandler := NewChatHandler(deps.Chat)
	settingsHandler := NewSettingsHandler(deps.Credentials)

	// Health check endpoint - public
	r.HandleFunc("/health", deps.handleHealth).Methods(http.MethodGet)

	// Sign-in - public
	r.HandleFunc("/api/auth/signin", authHandler.SignIn).Methods(http.MethodPost)

	// Everything else requires a session
	r.Handle("/api/auth/signout", protect(authHandler.SignOut)).Methods(http.MethodPost)
	r.Handle("/api/auth/session", protect(authHandler.Session)).Methods(http.MethodGet)

	r.Handle("/api/chat", protect(chatHandler.SendMessage)).Methods(http.MethodPost)
	r.Handle("/api/messages", protect(chatHandler.ListMessages)).Methods(http.MethodGet)

	r.Handle("/api/settings/api-key", protect(settingsHandler.GetAPIKey)).Methods(http.MethodGet)
	r.Handle("/api/settings/api-key", protect(settingsHandler.SaveAPIKey)).Methods(http.MethodPost)

	r.Handle("/api/providers", protect(settingsHandler.ListProviders)).Methods(http.MethodGet)
}

// handleHealth reports whether the database answers
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if d.DB != nil {
		if err := d.DB.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithError(w, http.StatusNotFound, "Not found")
}
