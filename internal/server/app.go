// Package server wires the Wayne control plane: configuration, storage,
// services, the HTTP API and the gRPC health endpoint, plus graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/dmitrijs2005/wayne/internal/server/config"
	"github.com/dmitrijs2005/wayne/internal/server/httpapi"
	"github.com/dmitrijs2005/wayne/internal/server/provisioning"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wayne/internal/server/secrets"
	"github.com/dmitrijs2005/wayne/internal/server/services"

	gs "github.com/dmitrijs2005/wayne/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	health *gs.HealthServer
}

var openDB = repomanager.Open

// NewApp opens the database, applies migrations and builds every service.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN, repomanager.PoolOptions{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	deps, err := buildServices(ctx, c, db, rm, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(c.HTTPAddr, logger, deps.users, deps.tokens, deps.envelopes, deps.buckets, db),
		health: gs.NewHealthServer(c.GRPCHealthAddr, logger, db, 0),
	}, nil
}

type serviceSet struct {
	tokens    *services.TokenService
	users     *services.UserService
	envelopes *services.EnvelopeService
	buckets   *services.BucketService
}

func buildServices(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) (*serviceSet, error) {
	hasher, err := auth.NewPasswordHasher(c.BcryptCost, c.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	cipher, err := NewCipher(c)
	if err != nil {
		return nil, err
	}

	prov, err := provisioning.NewS3Provisioner(ctx, provisioning.S3Config{
		Endpoint:       c.S3Endpoint,
		IAMEndpoint:    c.IAMEndpoint,
		Region:         c.S3Region,
		RootUser:       c.S3RootUser,
		RootPassword:   c.S3RootPassword,
		PublicEndpoint: c.S3PublicEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioner: %w", err)
	}

	tokens := services.NewTokenService(db, rm, c, logger)
	envelopes := services.NewEnvelopeService(db, rm, logger)
	buckets := services.NewBucketService(db, rm, prov, cipher, logger)
	users := services.NewUserService(db, rm, hasher, tokens, envelopes, buckets, logger)

	return &serviceSet{tokens: tokens, users: users, envelopes: envelopes, buckets: buckets}, nil
}

// NewCipher selects the credential cipher named by c.SecretBackend.
func NewCipher(c *config.Config) (secrets.Cipher, error) {
	switch c.SecretBackend {
	case config.SecretBackendVault:
		v, err := secrets.NewVaultTransitCipher(secrets.VaultConfig{
			Address: c.VaultAddress,
			Token:   c.VaultToken,
			Mount:   c.VaultMount,
			KeyName: c.VaultKeyName,
		})
		if err != nil {
			return nil, fmt.Errorf("vault cipher: %w", err)
		}
		return v, nil
	case config.SecretBackendLocal, "":
		l, err := secrets.NewAESGCMCipher(c.CredentialEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("local cipher: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown secret backend %q", c.SecretBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC health until a signal arrives or either listener
// fails, then shuts both down and closes the pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx, app.config.ShutdownTimeout); err != nil {
			app.logger.Error(ctx, "HTTP server failed", "error", err)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.health.Run(ctx); err != nil {
			app.logger.Error(ctx, "gRPC health server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
