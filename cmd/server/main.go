package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/site-listing-marketplace/internal/auth"
	"github.com/iliyamo/site-listing-marketplace/internal/config"
	"github.com/iliyamo/site-listing-marketplace/internal/database"
	"github.com/iliyamo/site-listing-marketplace/internal/handler"
	"github.com/iliyamo/site-listing-marketplace/internal/lock"
	"github.com/iliyamo/site-listing-marketplace/internal/middleware"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
	"github.com/iliyamo/site-listing-marketplace/internal/router"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't open MySQL connection")
	}
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't migrate database")
	}

	// Redis is optional: without it the submission lock, rate limiter and
	// cache degrade to no-ops and the transaction alone guards submissions.
	rdb := config.NewRedisClient(cfg.Redis)
	var locker service.Locker = lock.Noop{}
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.Lock.Prefix, cfg.Lock.TTL, cfg.Lock.Wait)
	} else {
		logger.Warn().Str("addr", cfg.Redis.Address()).Msg("redis unavailable, running without lock, cache and rate limit")
	}

	var (
		events    service.EventPublisher = queue.Discard{}
		amqpConn  *amqp.Connection
		publisher *queue.Publisher
	)
	if cfg.RabbitMQ.URL != "" {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Fatal().
				Err(err).
				Msg("can't open RabbitMQ connection")
		}
		publisher, err = queue.NewPublisher(amqpConn, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal().
				Err(err).
				Msg("can't declare listing exchange")
		}
		events = publisher
	}

	store := repository.NewListingRepo(db)
	listings := service.NewListingService(store, locker, events, &logger)
	moderation := service.NewModerationService(store, events, &logger)
	conflicts := service.NewConflictService(store, events, &logger)

	roles := auth.Chain{auth.NewStaticResolver(cfg.AdminUserIDs)}
	if cfg.RoleTable {
		roles = append(roles, repository.NewRoleRepo(db))
	}
	sec := router.Security{
		JWTSecret:      cfg.JWTSecret,
		Roles:          roles,
		TrustRoleClaim: cfg.TrustRoleClaim,
		Logger:         &logger,
	}
	pc := router.PublicCache{
		RateLimit:  middleware.NewTokenBucket(cfg.RateLimit, rdb, &logger),
		Cache:      middleware.NewRedisCache(cfg.Cache, rdb, &logger),
		Invalidate: middleware.InvalidateCache(cfg.Cache, rdb, &logger),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover(), middleware.RequestLogger(&logger))
	router.RegisterRoutes(e, db)
	router.RegisterListings(e, handler.NewListingHandler(listings, moderation, &logger), sec, pc)
	router.RegisterConflicts(e, handler.NewConflictHandler(conflicts, &logger), sec, pc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listing marketplace up and running")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.RabbitMQ.URL != "" && cfg.RabbitMQ.Consume {
		consumer := queue.NewAuditConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.AuditQueue, cfg.RabbitMQ.AuditLog, &logger)
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("graceful shutdown start")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().
			Err(err).
			Msg("server stopped with error")
	}

	// close connections
	wg := sync.WaitGroup{}
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("can't close MySQL connection")
		}
	}()

	go func() {
		defer wg.Done()
		if rdb == nil {
			return
		}
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("can't close Redis connection")
		}
	}()

	go func() {
		defer wg.Done()
		if publisher != nil {
			_ = publisher.Close()
		}
		if amqpConn == nil {
			return
		}
		if err := amqpConn.Close(); err != nil {
			logger.Error().Err(err).Msg("can't close RabbitMQ connection")
		}
	}()

	wg.Wait()

	logger.Info().Msg("graceful shutdown successful")
}
