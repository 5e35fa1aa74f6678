package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"plixa.org/internal/auth"
	"plixa.org/internal/cluster"
	"plixa.org/internal/config"
	"plixa.org/internal/httpapi"
	"plixa.org/internal/obs"
	"plixa.org/internal/school"
	"plixa.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Local development convenience; a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	codec, err := auth.NewCodec(auth.TokenConfig{
		Secret: []byte(cfg.TokenSecret),
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// Postgres when a DSN is configured, in-memory otherwise. The memory
	// stores are for local runs; they lose everything on restart.
	var (
		db       *sql.DB
		users    auth.UserStore
		clusters cluster.Service
		schools  school.Store
	)
	if cfg.PostgresDSN != "" {
		pg, err := cluster.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pg.DB()
		clusters = pg
		users = auth.NewPGStore(db)
		schools = school.NewPGStore(db)
	} else {
		log.Println("PLIXA_PG_DSN not set, using in-memory stores")
		users = auth.NewMemStore()
		clusters = cluster.NewInMemory()
		schools = school.NewMemStore()
	}

	svc, err := auth.NewService(users, codec)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	authn, err := auth.NewAuthenticator(codec, users)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}

	// Optional bootstrap superuser for fresh environments.
	if email := os.Getenv("PLIXA_ADMIN_EMAIL"); email != "" {
		pass := os.Getenv("PLIXA_ADMIN_PASSWORD")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := svc.CreateSuperuser(ctx, email, "Plixa", "Admin", pass); err != nil {
			log.Printf("bootstrap superuser: %v", err)
		}
		cancel()
	}

	api := httpapi.New(httpapi.Options{
		Auth:          svc,
		Authenticator: authn,
		Clusters:      clusters,
		Schools:       schools,
		Stream:        stream.New(),
		Ready:         httpapi.ReadyProbe{DB: db},
		Version:       version,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting plixa-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
