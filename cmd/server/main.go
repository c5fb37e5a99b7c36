package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"                      // loads .env in local development
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // panic recovery
	"github.com/sirupsen/logrus"                    // structured logging
	"golang.org/x/sync/errgroup"                    // runs the server, consumer and reminder worker together

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/database"
	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
	"github.com/iliyamo/cinema-ticket-booking/internal/router"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
	"github.com/iliyamo/cinema-ticket-booking/internal/worker"
)

// paymentGateway is what the server needs from the payment provider: the
// checkout calls used by the booking engine and webhook parsing.
type paymentGateway interface {
	service.PaymentProvider
	handler.PaymentEvents
}

func main() {
	_ = godotenv.Load() // a missing .env is fine outside development

	cfg := config.Load()
	bookingCfg := config.LoadBookingConfig()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	paymentCfg := config.LoadPaymentConfig()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.Init(level, cfg.IsDev())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Storage
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if err := database.InitializeSchema(ctx, db); err != nil {
		logrus.WithError(err).Fatal("failed to initialize schema")
	}
	rdb := config.NewRedisClient() // nil disables caching and rate limiting

	bookingRepo := repository.NewBookingRepo(db)
	showRepo := repository.NewShowRepo(db)
	seatRepo := repository.NewShowSeatRepo(db)
	movieRepo := repository.NewMovieRepo(db)
	userRepo := repository.NewUserRepo(db)

	// External providers.  Development runs without credentials on the
	// in-memory doubles; every other environment must configure them.
	var catalog service.CatalogProvider = &gateway.CatalogMock{}
	if catalogCfg := config.LoadCatalogConfig(); catalogCfg.APIKey != "" {
		catalog = gateway.NewCatalogClient(catalogCfg)
	} else if !cfg.IsDev() {
		logrus.Fatal("missing required env var: TMDB_API_KEY")
	}

	var payments paymentGateway = &gateway.PaymentMock{}
	if paymentCfg.SecretKey != "" {
		payments = gateway.NewPaymentClient(paymentCfg)
	} else if !cfg.IsDev() {
		logrus.Fatal("missing required env var: STRIPE_SECRET_KEY")
	}

	var mailer service.EmailSender = &gateway.MailMock{}
	if mailCfg := config.LoadMailConfig(); mailCfg.Host != "" {
		mailer = gateway.NewMailClient(mailCfg)
	} else if !cfg.IsDev() {
		logrus.Fatal("missing required env var: SMTP_HOST")
	}

	var signatures handler.IdentitySignatures
	if identityCfg := config.LoadIdentityConfig(); identityCfg.WebhookSecret != "" {
		v, err := gateway.NewIdentityVerifier(identityCfg.WebhookSecret)
		if err != nil {
			logrus.WithError(err).Fatal("invalid identity webhook secret")
		}
		signatures = v
	} else if !cfg.IsDev() {
		logrus.Fatal("missing required env var: IDENTITY_WEBHOOK_SECRET")
	}

	// Deferred tasks
	amqpCfg := config.LoadAMQPConfig()
	publisher, err := queue.NewPublisher(amqpCfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to message broker")
	}
	defer publisher.Close()

	// Services
	seatCache := service.NewSeatCache(rdb, cacheCfg.SeatTTL)
	bookings := service.NewBookingService(bookingRepo, showRepo, seatRepo, movieRepo, payments, publisher, seatCache, bookingCfg.HoldWindow)
	registry := service.NewRegistryService(movieRepo, showRepo, seatRepo, catalog, publisher, seatCache)
	dashboard := service.NewDashboardService(bookingRepo, showRepo, userRepo, registry)
	users := service.NewUserService(userRepo)
	notifications := service.NewNotificationService(bookingRepo, showRepo, seatRepo, movieRepo, userRepo, mailer, bookingCfg, paymentCfg.Currency)

	consumer := queue.NewConsumer(amqpCfg, publisher, bookingCfg.TaskMaxAttempts)
	consumer.HandleDurable(queue.KindFinalizeBooking, func(ctx context.Context, task queue.Task) error {
		var p queue.BookingPayload
		if err := task.Decode(&p); err != nil {
			return err
		}
		_, err := bookings.FinalizeOrExpire(ctx, p.BookingID)
		return err
	})
	consumer.Handle(queue.KindBookingConfirmed, func(ctx context.Context, task queue.Task) error {
		var p queue.BookingPayload
		if err := task.Decode(&p); err != nil {
			return err
		}
		return notifications.SendBookingConfirmation(ctx, p.BookingID)
	})
	consumer.Handle(queue.KindShowAdded, func(ctx context.Context, task queue.Task) error {
		var p queue.ShowAddedPayload
		if err := task.Decode(&p); err != nil {
			return err
		}
		_, err := notifications.NotifyNewShow(ctx, p.MovieID)
		return err
	})

	reminders := worker.NewReminderWorker(notifications, bookingCfg.ReminderEvery)
	holds := worker.NewHoldSweeper(bookings, bookingCfg.HoldSweepEvery)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.Correlation())
	e.Use(middleware.Logger())

	checks := map[string]handler.Pinger{"mysql": db}
	if rdb != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	router.RegisterRoutes(e, checks)
	router.RegisterPublic(e, handler.NewShowHandler(registry, bookings), cacheCfg, rdb)
	router.RegisterCustomer(e, handler.NewBookingHandler(bookings, cfg.PublicURL), cfg.JWTSecret, rlCfg, rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(registry, dashboard, notifications), cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(payments, bookings, signatures, users))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(ctx)
	})
	g.Go(func() error {
		return reminders.Run(ctx)
	})
	g.Go(func() error {
		return holds.Run(ctx)
	})
	g.Go(func() error {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Fatal("server stopped")
	}
	logrus.Info("server stopped")
}
