package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/groupcall/internal/adapters/http"
	"github.com/dkeye/groupcall/internal/adapters/rtc"
	wssignal "github.com/dkeye/groupcall/internal/adapters/signal"
	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/app/orch"
	"github.com/dkeye/groupcall/internal/app/sfu"
	"github.com/dkeye/groupcall/internal/config"
	"github.com/dkeye/groupcall/internal/idgen"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	hub := sfu.NewHub()
	engine, err := rtc.NewEngine(rtc.Options{
		ICEServers: cfg.ICEServers,
		UDPPortMin: cfg.UDPPortMin,
		UDPPortMax: cfg.UDPPortMax,
	}, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create media engine")
	}
	defer engine.Close()

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Engine:   engine,
		Chat:     app.NewRateLimiter(cfg.ChatLimit, cfg.ChatInterval),
		NewID:    idgen.NewMessageID,
		Now:      time.Now,
	}
	ctl := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupRouter(ctx, cfg, o, ctl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("groupcall server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
