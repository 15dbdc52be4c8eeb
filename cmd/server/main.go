package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogapi/internal/cache"
	"blogapi/internal/config"
	"blogapi/internal/crypto"
	"blogapi/internal/repository"
	"blogapi/internal/server"
	"blogapi/internal/service"
	"blogapi/internal/token"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Database connection
	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := repository.MigrateDB(db, cfg.Database.Type, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	key, err := crypto.NewSigningKey(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("Failed to load JWT signing key", zap.Error(err))
	}

	hasher, err := crypto.NewPasswordHasher(cfg.Auth.PasswordAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("Failed to initialize password hasher", zap.Error(err))
	}

	issuer := token.NewIssuer(key, token.Config{
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, logger)
	blocklistRepo := repository.NewBlocklistRepository(db, logger)

	// Redis revocation cache (optional)
	var revocations cache.RevocationCache
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		revocations = cache.NewRedisRevocationCache(client, logger)
		logger.Info("Redis revocation cache enabled")
	}

	blocklist := service.NewBlocklist(blocklistRepo, revocations, cfg.RedisCacheTTL(), logger)

	if cfg.Blocklist.PruneSchedule != "" {
		pruner, err := service.NewBlocklistPruner(blocklistRepo, cfg.Blocklist.PruneSchedule, logger)
		if err != nil {
			logger.Fatal("Failed to initialize blocklist pruner", zap.Error(err))
		}
		pruner.Start()
		defer pruner.Stop()
	}

	authService := service.NewAuthService(userRepo, hasher, issuer, blocklist, logger)

	// Initialize and run the server
	srv := server.NewServer(authService, logger)
	if err := srv.Run(ctx, cfg.Server.Port, cfg.ShutdownTimeout()); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Application stopped.")
}

func newLogger(mode string) (*zap.Logger, error) {
	gin.SetMode(mode)
	if mode == gin.ReleaseMode {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
