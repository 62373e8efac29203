package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurak-emp/attendance/config"
	repository "github.com/aurak-emp/attendance/internal/database/postgres"
	"github.com/aurak-emp/attendance/internal/pkg/barcode"
	"github.com/aurak-emp/attendance/internal/pkg/mailer"
	"github.com/aurak-emp/attendance/internal/pkg/storage"
	"github.com/aurak-emp/attendance/internal/service"
	"github.com/aurak-emp/attendance/internal/transport"
	"github.com/aurak-emp/attendance/internal/worker"

	"github.com/aurak-emp/attendance/pkg/postgres"
	"github.com/aurak-emp/attendance/pkg/queue"
	"github.com/aurak-emp/attendance/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	// Initialize barcode delivery dependencies
	renderer := barcode.NewRenderer(cfg.Barcode.Width, cfg.Barcode.Height)
	fileStorage := storage.NewFileStorage(cfg.Barcode.StoragePath)

	var barcodeMailer mailer.Mailer
	if cfg.Email.Enabled {
		barcodeMailer = mailer.NewMailer(&cfg.Email)
		logrus.Info("SMTP mailer initialized")
	} else {
		barcodeMailer = mailer.NopMailer{}
		logrus.Warn("Email delivery disabled, barcodes will not be sent")
	}

	var redisQueue *queue.RedisQueue
	var taskPublisher service.TaskPublisher

	if cfg.Redis.URL != "" {
		redisConfig := &queue.RedisQueueConfig{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		retryManager := queue.NewRetryManager(3, 5*time.Second)
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		dlqHandler := queue.NewDefaultDLQHandler(redisClient, "attendance:dlq")

		redisQueue, err = queue.NewRedisQueue(redisConfig, retryManager, dlqHandler)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
			redisQueue = nil
		} else {
			logrus.Info("Redis queue initialized")
			// Создаем адаптер для очереди
			taskPublisher = queue.NewPublisherAdapter(redisQueue)
		}
	}

	// Initialize services
	attendanceService := service.NewAttendanceService(attendanceRepo, eventRepo, taskPublisher)
	eventService := service.NewEventService(eventRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize task handler if queue is available
	if redisQueue != nil {
		taskHandler := queue.NewTaskHandler(attendanceService, renderer, barcodeMailer, fileStorage)

		// Start queue consumer
		if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		} else {
			logrus.Info("Queue subscriber started")
		}
	}

	// Initialize resend worker
	resendWorker := worker.NewNotificationResendWorker(
		attendanceService,
		cfg.Worker.ResendInterval,
		cfg.Worker.StaleAfter,
		cfg.Worker.BatchSize,
	)
	go resendWorker.Start(ctx)
	logrus.Info("Notification resend worker started")

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService)
	attendanceHandler := transport.NewAttendanceHandler(attendanceService)
	healthHandler := transport.NewHealthHandler(db, redisQueue)

	// Setup HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(eventHandler, attendanceHandler, healthHandler)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			logrus.Errorf("error occured on queue shutting down: %s", err.Error())
		}
	}
}
