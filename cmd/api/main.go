package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rollcall.org/internal/auth"
	"rollcall.org/internal/httpapi"
	"rollcall.org/internal/ids"
	"rollcall.org/internal/obs"
	"rollcall.org/internal/roster"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := strings.TrimSpace(os.Getenv("ROLLCALL_AUTH_SECRET"))
	if secret == "" {
		log.Fatal("ROLLCALL_AUTH_SECRET is required")
	}

	var (
		db     *sql.DB
		store  auth.CredentialStore
		lookup roster.Lookup
	)
	if dsn := os.Getenv("ROLLCALL_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
		lookup = roster.NewPG(db)
	} else {
		// Local development without Postgres: volatile store, tiny roster.
		log.Println("ROLLCALL_PG_DSN not set, using in-memory store (dev only)")
		store = auth.NewMemStore()
		lookup = roster.Static{
			{ID: ids.New(), ExternalID: "a1234567", Name: "Dev Member", Email: "dev.member@example.org"},
		}
	}

	var tokenOpts []auth.TokenOption
	if raw := strings.TrimSpace(os.Getenv("ROLLCALL_TOKEN_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("parse ROLLCALL_TOKEN_TTL: %v", err)
		}
		tokenOpts = append(tokenOpts, auth.WithTTL(ttl))
	}
	tokens, err := auth.NewTokens([]byte(secret), store, tokenOpts...)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	identity, err := auth.NewService(lookup, store, tokens)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	guard := auth.NewGuard(tokens)

	addr := os.Getenv("ROLLCALL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	api := httpapi.New(identity, guard, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting rollcall-api %s on %s", version, srv.Addr)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go auth.StartSweeper(sweepCtx, store, time.Hour)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
