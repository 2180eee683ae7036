package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/logging"
	"github.com/iliyamo/auth-service/internal/mailer"
	"github.com/iliyamo/auth-service/internal/notify"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	// Redis is optional: without it the limiter lets everything through.
	var limiterStore redis.Scripter
	var healthRedis handler.RedisPinger
	if rdb := config.NewRedisClient(ctx); rdb != nil {
		defer rdb.Close()
		limiterStore, healthRedis = rdb, rdb
	} else {
		log.Warn().Msg("redis unavailable, rate limiting disabled")
	}

	transport := mailTransport(ctx, cfg.Mail, log)
	dispatcher := notify.NewDispatcher(cfg.Mail.Sender(), transport, log)

	auth := service.NewAuthService(
		repository.NewUserRepo(db),
		dispatcher,
		utils.NewTokenCodec(cfg.JWTSecret, cfg.JWTExpiresIn),
		utils.NewResetTokenGenerator(cfg.ResetTokenTTL),
		cfg.BcryptCost,
		log,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(log))
	e.Use(echomw.Secure())
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	router.RegisterRoutes(e, router.Deps{
		Auth:      handler.NewAuthHandler(auth, cfg.CookieTTL(), log),
		Health:    handler.NewHealthHandler(db, healthRedis),
		Guard:     auth,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     limiterStore,
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// mailTransport picks the outbound path.  In amqp mode the web process only
// publishes and a consumer goroutine relays the queue to SMTP.
func mailTransport(ctx context.Context, mc config.MailConfig, log zerolog.Logger) notify.Transport {
	smtp := mailer.NewSMTPTransport(mc, log)
	if mc.Transport != config.MailTransportAMQP {
		return smtp
	}
	consumer := queue.NewConsumer(mc.AMQPURL, mc.Queue, smtp, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("mail consumer stopped")
		}
	}()
	return queue.NewPublisher(mc.AMQPURL, mc.Queue, log)
}
