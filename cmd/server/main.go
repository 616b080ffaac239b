package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/identity"
	"github.com/BioHazard786/Warpmeet/internal/logging"
	"github.com/BioHazard786/Warpmeet/internal/metrics"
	"github.com/BioHazard786/Warpmeet/internal/relay"
	"github.com/BioHazard786/Warpmeet/internal/server"
	"github.com/BioHazard786/Warpmeet/internal/store"
	"github.com/BioHazard786/Warpmeet/internal/version"
)

func main() {
	// 1. Parse command line parameters
	addr := flag.String("addr", "", "HTTP serve address (overrides ADDR)")
	driver := flag.String("store", "", "store driver: memory, redis, sqlite, postgres (overrides STORE_DRIVER)")
	dsn := flag.String("dsn", "", "database source name (overrides DSN)")
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	// 2. Load configuration and logging
	cfg, err := config.LoadServer(config.ServerOptions{
		Addr:        *addr,
		StoreDriver: *driver,
		DSN:         *dsn,
		EnvFile:     *envFile,
	})
	if err != nil {
		panic("config load failed: " + err.Error())
	}
	log := logging.Init(logging.Options{DefaultLevel: zapcore.InfoLevel})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the store
	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.StoreDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		DSN:           cfg.DSN,
	})
	if err != nil {
		log.Fatal("store setup failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()

	// 4. Identity
	var ids identity.Resolver = identity.Deny{}
	if cfg.IdentityURL != "" {
		ids = identity.NewCached(&identity.HTTP{URL: cfg.IdentityURL}, cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	}

	// 5. Hub and routes
	m := metrics.New()
	hub := relay.NewHub(st, log, m)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(cfg, hub, st, ids, m, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdown)
	}()

	log.Info("starting signaling server",
		zap.String("version", version.Version),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("identity", cfg.IdentityURL != ""))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server run failed", zap.Error(err))
	}
}
