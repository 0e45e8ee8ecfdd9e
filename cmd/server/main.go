package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/bookjournal-backend/internal/auth"
	"github.com/AnshRaj112/bookjournal-backend/internal/config"
	"github.com/AnshRaj112/bookjournal-backend/internal/database"
	"github.com/AnshRaj112/bookjournal-backend/internal/handlers"
	"github.com/AnshRaj112/bookjournal-backend/internal/journal"
	"github.com/AnshRaj112/bookjournal-backend/internal/logger"
	"github.com/AnshRaj112/bookjournal-backend/internal/middleware"
	"github.com/AnshRaj112/bookjournal-backend/internal/review"
	"github.com/AnshRaj112/bookjournal-backend/internal/routes"
	"github.com/AnshRaj112/bookjournal-backend/internal/services"
	"github.com/AnshRaj112/bookjournal-backend/pkg/clientip"
	"github.com/AnshRaj112/bookjournal-backend/pkg/utils"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	sugar, err := logger.New("bookjournal", cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer sugar.Sync()

	// Entry store
	var repo journal.Repository
	switch cfg.Store {
	case "memory":
		sugar.Warn("using in-memory entry store; entries are lost on restart")
		repo = journal.NewMemoryRepository()
	default:
		client, err := database.ConnectMongo(cfg.MongoURI, sugar)
		if err != nil {
			sugar.Fatalw("failed to connect to MongoDB", "uri", database.MaskURI(cfg.MongoURI), "error", err)
		}
		defer database.DisconnectMongo(client)

		mongoRepo := journal.NewMongoRepository(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			sugar.Warnw("failed to ensure entry indexes", "error", err)
		} else {
			sugar.Info("entry indexes ensured")
		}
		if err := mongoRepo.HealthPing(ctx); err != nil {
			sugar.Warnw("entry store liveness check failed", "error", err)
		}
		cancel()
		repo = mongoRepo
	}

	// Redis backs sessions and the review cache. Sign-in cannot work without it.
	var rdb *redis.Client
	if cfg.RedisURI != "" {
		rdb, err = database.ConnectRedis(cfg.RedisURI, sugar)
		if err != nil {
			if cfg.OIDCEnabled() {
				sugar.Fatalw("failed to connect to Redis", "error", err)
			}
			sugar.Warnw("Redis unavailable; reviews will not be cached", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// PostgreSQL activity log (optional)
	var activity *services.ActivityLog
	if cfg.PostgresURI != "" {
		db, err := database.ConnectPostgres(cfg.PostgresURI, sugar)
		if err != nil {
			sugar.Warnw("PostgreSQL unavailable; activity log disabled", "error", err)
		} else {
			defer db.Close()
			activity = services.NewActivityLog(db)
		}
	}

	// Identity
	var (
		signIn   handlers.SignIn
		sessions middleware.SessionValidator
	)
	switch {
	case cfg.OIDCEnabled():
		if rdb == nil {
			sugar.Fatal("sign-in needs Redis for sessions; set REDIS_URI")
		}
		sealer, err := sessionSealer(cfg, sugar)
		if err != nil {
			sugar.Fatalw("invalid SESSION_KEY", "error", err)
		}
		store := services.NewSessionStore(rdb)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		authenticator, err := auth.New(ctx, auth.Config{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		}, store, sealer, sugar)
		cancel()
		if err != nil {
			sugar.Fatalw("failed to set up sign-in", "issuer", cfg.OIDCIssuer, "error", err)
		}
		signIn = authenticator
		sessions = store
		sugar.Infow("sign-in enabled", "issuer", cfg.OIDCIssuer)
	case cfg.DevUserID != "":
		if cfg.IsProduction() {
			sugar.Fatal("DEV_USER_ID must not be used in production; configure OIDC_ISSUER and OIDC_CLIENT_ID")
		}
		sugar.Warnw("no identity provider configured; every request runs as the development user", "user_uid", cfg.DevUserID)
	default:
		sugar.Fatal("no identity configured: set OIDC_ISSUER and OIDC_CLIENT_ID, or DEV_USER_ID for local use")
	}

	// Review composer
	composer := review.NewComposer(review.NewClient(review.ClientConfig{
		APIType:    cfg.OpenAIAPIType,
		BaseURL:    cfg.OpenAIAPIBase,
		APIVersion: cfg.OpenAIAPIVersion,
		APIKey:     cfg.OpenAIAPIKey,
		Deployment: cfg.OpenAIDeployment,
	}), review.Config{
		Model:         cfg.OpenAIDeployment,
		ContextTokens: cfg.ReviewContext,
		Timeout:       cfg.ReviewTimeout,
	}, sugar)
	if cfg.OpenAIAPIKey == "" {
		sugar.Warn("OPENAI_API_KEY not set; review generation will fail")
	}

	opts := handlers.Options{
		Repo:          repo,
		Composer:      composer,
		Auth:          signIn,
		Logger:        sugar,
		SecureCookies: strings.HasPrefix(cfg.Host, "https://"),
	}
	if rdb != nil {
		opts.Cache = services.NewReviewCache(rdb)
	}
	h := handlers.New(opts)

	// Setup router
	resolveIP := clientip.Resolver(cfg.TrustProxyHeaders)
	globalLimiter := middleware.GlobalRateLimiter(resolveIP)
	reviewLimiter := middleware.ReviewRateLimiter(resolveIP)
	stopCleanup := make(chan struct{})
	go globalLimiter.RunCleanup(stopCleanup)
	go reviewLimiter.RunCleanup(stopCleanup)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(sugar))
	r.Use(middleware.RequestLogging(sugar, resolveIP))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	if cfg.IsProduction() && opts.SecureCookies {
		r.Use(middleware.StrictTransport)
	}
	r.Use(globalLimiter.Handler)

	mw := routes.Middleware{
		Identity:    middleware.Identity(sessions, cfg.DevUserID, sugar),
		ReviewLimit: reviewLimiter.Handler,
	}
	if activity.Enabled() {
		mw.Activity = middleware.Activity(activity, sugar)
	}
	routes.SetupRoutes(r, h, mw)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.ReviewTimeout + 15*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Start server in a goroutine
	go func() {
		sugar.Infow("book journal running", "port", cfg.Port, "env", cfg.Environment, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down server")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Errorw("server forced to shutdown", "error", err)
	}
	sugar.Info("server exited")
}

// sessionSealer seals OAuth tokens kept with sessions. Without SESSION_KEY a random key is
// used, which signs everyone out on restart.
func sessionSealer(cfg *config.Config, sugar *zap.SugaredLogger) (*utils.Sealer, error) {
	if cfg.SessionKey != "" {
		return utils.NewSealer(cfg.SessionKey)
	}
	if cfg.IsProduction() {
		return nil, errors.New("SESSION_KEY is required in production (generate with: openssl rand -base64 32)")
	}
	sugar.Warn("SESSION_KEY not set; using a random key for this run")
	return utils.NewRandomSealer()
}
