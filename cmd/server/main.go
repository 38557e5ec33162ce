package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-device-link/auth"
	"github.com/jrsteele09/go-device-link/devices"
	devicefakerepo "github.com/jrsteele09/go-device-link/devices/repofake"
	devicepgrepo "github.com/jrsteele09/go-device-link/devices/pgrepo"
	"github.com/jrsteele09/go-device-link/identity"
	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/jrsteele09/go-device-link/internal/logging"
	"github.com/jrsteele09/go-device-link/internal/storage"
	"github.com/jrsteele09/go-device-link/logintoken"
	tokenpgrepo "github.com/jrsteele09/go-device-link/logintoken/pgrepo"
	tokenfakerepo "github.com/jrsteele09/go-device-link/logintoken/repofake"
	"github.com/jrsteele09/go-device-link/render"
	"github.com/jrsteele09/go-device-link/server"
	"github.com/jrsteele09/go-device-link/sessions"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("recovered from panic: %v", r)
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	displayAppname(c.GetAppName())

	tokenRepo, deviceRepo, closeDB, err := openRepos(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	sessionRepo, renderCache, closeRedis, err := openCaches(ctx, c)
	if err != nil {
		return err
	}
	defer closeRedis()

	verifier, err := identity.NewVerifierFromPEM(c.GetJWTPublicKey(), c.GetDeveloperID())
	if err != nil {
		return fmt.Errorf("[main run] %w", err)
	}

	tokens := logintoken.NewManager(tokenRepo, c)
	tokens.StartCleanupJob(ctx, c.GetLoginTokenCleanupInterval())

	authService, err := auth.NewService(verifier, tokens, sessionRepo, c)
	if err != nil {
		return fmt.Errorf("[main run] %w", err)
	}

	handler, err := server.New(c, server.Services{
		Auth:    authService,
		Tokens:  tokens,
		Devices: devices.NewAuthorizer(deviceRepo),
		Renders: render.NewService(
			renderCache,
			render.NewPlaceholderClient(c.GetPlaceholderBaseURL(), c.GetPlaceholderTimeout()),
			c.GetRenderCacheTTL(),
		),
	})
	if err != nil {
		return fmt.Errorf("[main run] %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serverErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// openRepos uses PostgreSQL when DATABASE_URL is set and in-memory repos otherwise
func openRepos(ctx context.Context, c config.Config) (logintoken.Repo, devices.Repo, func(), error) {
	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, login tokens and devices are held in memory")
		return tokenfakerepo.NewFakeLoginTokenRepo(), devicefakerepo.NewFakeDeviceRepo(), func() {}, nil
	}

	if err := storage.Migrate(databaseURL); err != nil {
		return nil, nil, nil, err
	}
	pool, err := storage.OpenPostgres(ctx, databaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Msg("connected to postgres")
	return tokenpgrepo.New(pool), devicepgrepo.New(pool), pool.Close, nil
}

// openCaches uses Redis when REDIS_ADDR is set and process memory otherwise
func openCaches(ctx context.Context, c config.Config) (sessions.Repo, render.Cache, func(), error) {
	addr := c.GetRedisAddr()
	if addr == "" {
		log.Warn().Msg("REDIS_ADDR not set, sessions and renders are held in memory")
		return sessions.NewInMemoryRepo(), render.NewMemoryCache(), func() {}, nil
	}

	client, closer, err := storage.OpenRedis(ctx, addr, c.GetRedisPassword(), c.GetRedisDB())
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return sessions.NewRedisRepo(client), render.NewRedisCache(client), closer, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
