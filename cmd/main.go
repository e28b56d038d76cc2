// Package main wires the HTTP server for the facility maintenance service.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"facility-maintenance/config"
	"facility-maintenance/internal/channel"
	"facility-maintenance/internal/dispatch"
	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/escalation"
	"facility-maintenance/internal/oapi"
	"facility-maintenance/internal/repository"
	"facility-maintenance/internal/settings"
	"facility-maintenance/internal/transport/http/middleware"
	"facility-maintenance/internal/transport/http/server/handlers-fiber"
	"facility-maintenance/internal/usecase"
	"facility-maintenance/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	repo, err := repository.New(ctx, cfg.Repository.Backend, log, cfg)
	if err != nil {
		log.Errorw("repository initialization error", "error", err)
		return
	}
	if err := repo.OnStart(ctx); err != nil {
		log.Errorw("repository start error", "error", err)
		return
	}
	defer func() {
		_ = repo.OnStop(context.Background())
	}()

	provider := settings.New(log, repo, entities.DefaultSettings(cfg.Channels.DefaultPrimaryEmail))
	if _, err := provider.Reload(ctx); err != nil {
		log.Errorw("settings load error, serving defaults", "error", err)
	}

	senders := map[entities.Channel]channel.Sender{
		entities.ChannelEmail:    channel.NewEmail(log, cfg.Channels.SMTP),
		entities.ChannelWhatsApp: channel.NewGateway(log, "whatsapp", cfg.Channels.WhatsApp),
		entities.ChannelSMS:      channel.NewGateway(log, "sms", cfg.Channels.SMS),
	}
	dispatcher := dispatch.New(log, provider, senders, repo, cfg.Dispatcher)
	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, cfg.Scheduler.TickInterval)
		close(dispatchDone)
	}()

	scheduler := escalation.New(log, provider, repo, dispatcher, cfg.Scheduler.TickInterval)
	if err := scheduler.Load(ctx); err != nil {
		log.Errorw("escalation registry load error", "error", err)
		return
	}
	go scheduler.Run(ctx)

	timeout := cfg.HTTP.RequestTimeout
	uc := usecase.New(log, ctx, repo, provider, scheduler, dispatcher, timeout)

	serv := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.RequestTimeout,
		WriteTimeout: cfg.HTTP.RequestTimeout,
		ErrorHandler: handlers_fiber.ErrorHandler,
	})
	serv.Use(recover.New())
	serv.Use(requestid.New())
	serv.Use(middleware.RequestLogger(log))

	serv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	serv.Get(cfg.HTTP.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	h := handlers_fiber.NewHandler(log, uc)
	oapi.RegisterHandlers(serv.Group("/api/v1"), h)

	go func() {
		if err := serv.Listen(cfg.ServerAddr()); err != nil {
			log.Errorw("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = serv.Shutdown()
		<-dispatchDone
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warnw("server shutdown timeout", "timeout", cfg.Server.ShutdownTimeout)
	}
}
