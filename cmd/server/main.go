package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medreza/agt-claim-service/pkg/claims"
	"github.com/medreza/agt-claim-service/pkg/config"
	"github.com/medreza/agt-claim-service/pkg/database"
	"github.com/medreza/agt-claim-service/pkg/handlers"
	"github.com/medreza/agt-claim-service/pkg/oracle"
	"github.com/medreza/agt-claim-service/pkg/ratelimit"
	"github.com/medreza/agt-claim-service/pkg/repository"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogger()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, closeStore, err := openClaimStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize claim store: %v", err)
	}
	defer closeStore()

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	defer closeLimiter()

	balances, rpcClient, err := oracle.Dial(ctx, cfg.RPCURL, cfg.TokenAddress, cfg.BalanceTimeout)
	if err != nil {
		logrus.Fatalf("Failed to initialize balance oracle: %v", err)
	}
	defer rpcClient.Close()

	claimService := claims.NewService(store, balances, limiter, []byte(cfg.Secret), cfg.MinBalance)
	claimHandler := handlers.NewClaimHandler(claimService)
	router, err := handlers.NewRouter(claimHandler, handlers.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logrus.Fatalf("Failed to build router: %v", err)
	}

	srv := newHTTPServer(cfg.Port, router, cfg.BalanceTimeout)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpired(sweepCtx, claimService, cfg.Retention, cfg.SweepInterval)

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"store":       cfg.Store,
			"token":       cfg.TokenAddress,
			"min_balance": cfg.MinBalance.String(),
		}).Info("Starting claim service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start service: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down service...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Service forced to shutdown: %v", err)
		return
	}

	logrus.Info("Service exited")
}

// newHTTPServer returns the API server. The write timeout outlasts the slowest
// balance lookup.
func newHTTPServer(port string, handler http.Handler, balanceTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      balanceTimeout + 20*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func openClaimStore(ctx context.Context, cfg *config.Config) (repository.ClaimStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresClaimStore(pool), pool.Close, nil

	case config.StoreMongo:
		client, err := database.InitMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoClaimStore(client.Database(cfg.MongoDatabase), cfg.Retention)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return repository.NewMemoryClaimStore(), func() {}, nil
	}
}

func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		l, err := ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		return l, func() {}, err
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	l, err := ratelimit.NewRedisLimiter(client, cfg.RateLimit, cfg.RateLimitWindow)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return l, func() { _ = client.Close() }, nil
}

// sweepExpired removes records that expired more than retention ago until ctx
// is cancelled.
func sweepExpired(ctx context.Context, svc *claims.Service, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := svc.PurgeExpired(ctx, retention)
			if err != nil {
				logrus.WithError(err).Error("sweepExpired: Failed to purge expired claims")
				continue
			}
			if purged > 0 {
				logrus.WithField("purged", purged).Info("sweepExpired: Purged expired claims")
			}
		}
	}
}
