// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"tuzo-service/internal/config"
	"tuzo-service/internal/db"
	"tuzo-service/internal/domain/outbox"
	businessHandler "tuzo-service/internal/handlers/business"
	customerHandler "tuzo-service/internal/handlers/customer"
	mpesaHandler "tuzo-service/internal/handlers/mpesa"
	notifyH "tuzo-service/internal/handlers/notification"
	profileHandler "tuzo-service/internal/handlers/profile"
	rewardHandler "tuzo-service/internal/handlers/reward"
	transactionHandler "tuzo-service/internal/handlers/transaction"
	wsHandler "tuzo-service/internal/handlers/websocket"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/mpesa"
	"tuzo-service/internal/pkg/jwt"
	"tuzo-service/internal/pkg/rabbitmq"
	"tuzo-service/internal/pkg/ratelimit"
	"tuzo-service/internal/realtime"
	"tuzo-service/internal/repository/postgres"
	businessUsecase "tuzo-service/internal/service/business"
	customersvc "tuzo-service/internal/service/customer"
	"tuzo-service/internal/service/email"
	"tuzo-service/internal/service/jobs"
	"tuzo-service/internal/service/loyalty"
	notifyUsecase "tuzo-service/internal/service/notification"
	outboxUsecase "tuzo-service/internal/service/outbox"
	paymentUsecase "tuzo-service/internal/service/payment"
	profileUsecase "tuzo-service/internal/service/profile"
	rewardUsecase "tuzo-service/internal/service/reward"
	transactionUsecase "tuzo-service/internal/service/transaction"
	"tuzo-service/internal/tracing"
	"tuzo-service/internal/websocket"
	wsHandlers "tuzo-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server owns the HTTP listener and every background worker.
type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	broker    realtime.Broker
	publisher rabbitmq.Publisher
	scheduler *jobs.Scheduler

	startWorkers   func() error
	stopWorkers    context.CancelFunc
	shutdownTracer func(context.Context) error
}

// NewServer connects to the backing stores and wires the application. Workers
// are not started until Run.
func NewServer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{cfg: cfg, logger: logger}
	if err := s.build(ctx); err != nil {
		s.closeStores()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context) error {
	cfg := s.cfg
	logger := s.logger

	// ----- Tracing -----
	shutdownTracer, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTracer = shutdownTracer

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{cfg.RedisAddr},
		Password:  cfg.RedisPass,
		DB:        cfg.RedisDB,
		PoolSize:  10,
	})
	if err != nil {
		return err
	}
	s.redis = redisClient
	log.Println("[REDIS] connected")

	// ----- JWT -----
	jwtManager, err := jwt.LoadAndBuild(cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Messaging -----
	s.broker = realtime.NewRedisBroker(redisClient, logger)
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("failed to create event producer: %w", err)
		}
		s.publisher = producer
	} else {
		logger.Warn("RABBITMQ_URL not set, domain events will only be logged")
		s.publisher = &rabbitmq.LogPublisher{Logger: logger}
	}

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	businessRepo := postgres.NewBusinessRepository(dbWrapper)
	customerRepo := postgres.NewCustomerRepository(dbWrapper)
	transactionRepo := postgres.NewTransactionRepository(dbWrapper)
	rewardRepo := postgres.NewRewardRepository(dbWrapper)
	paymentRepo := postgres.NewPaymentRequestRepository(dbWrapper)
	profileRepo := postgres.NewProfileRepository(dbWrapper)
	notifyRepo := postgres.NewNotificationRepository(dbWrapper)
	outboxRepo := postgres.NewOutboxRepository(dbWrapper)
	ledger := postgres.NewLedger(dbWrapper, rewardRepo)

	// ----- M-PESA gateway -----
	var gateway paymentUsecase.Gateway
	if cfg.Mpesa.Mode == config.MpesaModeDaraja {
		gateway = mpesa.NewClient(mpesa.Config{
			BaseURL:         cfg.Mpesa.BaseURL,
			ConsumerKey:     cfg.Mpesa.ConsumerKey,
			ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
			ShortCode:       cfg.Mpesa.ShortCode,
			PartyB:          cfg.Mpesa.PartyB,
			Passkey:         cfg.Mpesa.Passkey,
			CallbackURL:     cfg.Mpesa.CallbackURL,
			CallbackToken:   cfg.Mpesa.CallbackToken,
			TransactionType: cfg.Mpesa.TransactionType,
			Timeout:         cfg.Mpesa.HTTPTimeout,
		}, mpesa.NewRedisTokenCache(redisClient), logger)
	} else {
		logger.Warn("M-PESA running in simulate mode; no real payments will be requested")
		gateway = mpesa.NewSimulator()
	}

	// ----- Services (Usecases) -----
	recorder := loyalty.NewRecorder(ledger, cfg.EventsExchange, logger)
	notifService := notifyUsecase.NewNotificationService(notifyRepo, s.broker, logger)
	businessService := businessUsecase.NewBusinessService(businessRepo, logger)
	customerService := customersvc.NewCustomerService(customerRepo, businessRepo, s.broker, logger)
	transactionService := transactionUsecase.NewTransactionService(transactionRepo, logger)
	rewardService := rewardUsecase.NewRewardService(rewardRepo, recorder, notifService, s.broker, logger)
	profileService := profileUsecase.NewProfileService(profileRepo, businessRepo, customerRepo, rewardRepo, transactionRepo, logger)
	effects := paymentUsecase.NewEffects(notifService, s.broker, businessRepo, logger)
	if cfg.SMTPHost != "" {
		effects.WithMailer(email.NewRewardMailer(customerRepo, outboxRepo, logger))
	}
	paymentService := paymentUsecase.NewPaymentService(
		businessRepo,
		customerRepo,
		paymentRepo,
		gateway,
		ratelimit.NewRateLimiter(redisClient),
		recorder,
		effects,
		paymentUsecase.Options{
			SimulatedDelay: cfg.Mpesa.SimulatedDelay,
			RateLimit:      cfg.STKRateLimit,
			RateWindow:     cfg.STKRateWindow,
		},
		logger,
	)

	// ----- Workers -----
	dispatcher := outboxUsecase.NewDispatcher(outboxRepo, cfg.OutboxBatchSize, cfg.OutboxPollInterval, logger)
	dispatcher.Register(outbox.KindSimulatedCallback, paymentService.HandleSimulatedCallback)
	dispatcher.Register(outbox.KindPublishEvent, outboxUsecase.PublishHandler(s.publisher))
	if cfg.SMTPHost != "" {
		sender := email.NewEmailSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			FromName: cfg.SMTPFromName,
			Secure:   cfg.SMTPSecure,
		})
		dispatcher.Register(outbox.KindSendEmail, email.TaskHandler(sender))
	}

	s.scheduler = jobs.NewScheduler(
		jobs.NewJobs(paymentRepo, notifService, outboxRepo, cfg.PaymentPendingTTL, logger),
		cfg.JobsSchedule,
		logger,
	)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.broker, jwtManager.Verifier, profileService, logger)
	hub.RegisterHandler(wsHandlers.NewNotificationHandler(notifService, logger))

	workerCtx, cancel := context.WithCancel(context.Background())
	s.stopWorkers = cancel
	s.startWorkers = func() error {
		go hub.Run(workerCtx)
		go dispatcher.Run(workerCtx)
		return s.scheduler.Start()
	}

	// ----- Router -----
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	SetupRouter(s.engine, &Handlers{
		MpesaHandler:       mpesaHandler.NewMpesaHandler(paymentService, cfg.Mpesa.CallbackToken, logger),
		BusinessHandler:    businessHandler.NewBusinessHandler(businessService),
		CustomerHandler:    customerHandler.NewCustomerHandler(customerService),
		TransactionHandler: transactionHandler.NewTransactionHandler(transactionService),
		RewardHandler:      rewardHandler.NewRewardHandler(rewardService),
		ProfileHandler:     profileHandler.NewProfileHandler(profileService),
		NotifHandler:       notifyH.NewNotificationHandler(notifService),
		WSHandler:          wsHandler.NewWebSocketHandler(hub, cfg.AllowedOrigins, logger),
		AuthMiddleware:     middleware.NewAuthMiddleware(jwtManager.Verifier, profileService),
		HealthCheck:        s.healthCheck,
	})

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler(cfg.AllowedOrigins)(s.engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:         300,
	})
}

func (s *Server) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Run starts the workers and serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if err := s.startWorkers(); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	log.Printf("Server running on %s (mpesa mode: %s)", s.cfg.HTTPAddr, s.cfg.Mpesa.Mode)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the workers and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := s.http.Shutdown(ctx); err != nil {
		firstErr = err
	}

	s.stopWorkers()
	select {
	case <-s.scheduler.Stop().Done():
	case <-ctx.Done():
	}

	s.closeStores()
	if err := s.shutdownTracer(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Server) closeStores() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("failed to close realtime broker", zap.Error(err))
		}
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
