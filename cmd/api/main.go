package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"kadro.org/internal/auth"
	"kadro.org/internal/httpapi"
	"kadro.org/internal/identity"
	"kadro.org/internal/location"
	"kadro.org/internal/obs"
	"kadro.org/internal/security"
	"kadro.org/internal/stream"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("KADRO_COMMIT"))
	logger := obs.Logger()
	defer obs.Sync()

	secret := os.Getenv("KADRO_AUTH_SECRET")
	if secret == "" {
		logger.Fatal("KADRO_AUTH_SECRET is required")
	}

	dsn := os.Getenv("KADRO_PG_DSN")
	if dsn == "" {
		logger.Fatal("KADRO_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	issuer, err := auth.NewIssuer([]byte(secret))
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	st := stream.New()
	secSvc := security.NewService(security.NewPGEventStore(db), st)

	var authOpts []auth.ServiceOption
	if clientID := os.Getenv("KADRO_GOOGLE_CLIENT_ID"); clientID != "" {
		google, err := identity.NewGoogle(identity.GoogleConfig{
			ClientID:     clientID,
			ClientSecret: os.Getenv("KADRO_GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("KADRO_GOOGLE_REDIRECT_URI"),
		})
		if err != nil {
			logger.Fatal("google provider", zap.Error(err))
		}
		authOpts = append(authOpts, auth.WithIdentityProvider(google))
	}
	authSvc := auth.NewService(auth.NewPGStore(db), secSvc, issuer, authOpts...)

	api := httpapi.New(authSvc, secSvc, httpapi.ReadyProbe{DB: db}, version,
		httpapi.WithStream(st),
		httpapi.WithLocationResolver(location.NewIPAPI()),
	)

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 20, 10)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	addr := os.Getenv("KADRO_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	// No WriteTimeout: the security event stream holds responses open.
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting kadro-api", zap.String("version", version), zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	logger.Info("stopped")
}
