package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/controller"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/logx"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/queue"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/service"
)

func main() {
	logger := logx.New("content-scheduler")

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("no .env file found, relying on OS environment variables")
	}

	conn, err := db.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	queueRepo := &repository.QueueRepository{Conn: conn}
	assignmentRepo := &repository.AssignmentRepository{Conn: conn}
	sprintRepo := &repository.SprintRepository{Conn: conn}
	stateRepo := &repository.AccountStateRepository{Conn: conn}
	accountRepo := &repository.AccountRepository{Conn: conn}
	logRepo := &repository.EmergencyLogRepository{Conn: conn}

	validator := &service.ValidationService{
		AccountRepo: accountRepo,
		StateRepo:   stateRepo,
		SprintRepo:  sprintRepo,
	}
	assignmentService := &service.AssignmentService{
		Conn:           conn,
		AssignmentRepo: assignmentRepo,
		SprintRepo:     sprintRepo,
		StateRepo:      stateRepo,
		QueueRepo:      queueRepo,
		Validator:      validator,
		Calculator:     schedule.New(),
		Logger:         logger,
	}
	conflictService := &service.ConflictService{SprintRepo: sprintRepo, Conn: conn}
	engine := &service.EmergencyQueueService{
		Conn:           conn,
		QueueRepo:      queueRepo,
		AssignmentRepo: assignmentRepo,
		SprintRepo:     sprintRepo,
		StateRepo:      stateRepo,
		Calculator:     schedule.New(),
		Logger:         logger,
	}
	emergencyService := &service.EmergencyService{
		AccountRepo: accountRepo,
		QueueRepo:   queueRepo,
		LogRepo:     logRepo,
		Conflicts:   conflictService,
		Engine:      engine,
		Logger:      logger,
	}
	controlService := &service.QueueControlService{Conn: conn, QueueRepo: queueRepo, Logger: logger}
	queryService := &service.QueueQueryService{QueueRepo: queueRepo}

	// Posting jobs go to RabbitMQ when available, otherwise to an in-process
	// executor on the in-memory queue.
	var publisher queue.Publisher
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		amqpConn, err := amqp.Dial(amqpURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer amqpConn.Close()
		ch, err := amqpConn.Channel()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open AMQP channel")
		}
		defer ch.Close()
		publisher, err = queue.NewAMQPPublisher(ch)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to declare posting queue")
		}
	} else {
		inMemory := queue.NewInMemoryQueue(logger)
		executor := &service.PostingExecutor{
			Conn:           conn,
			QueueRepo:      queueRepo,
			AssignmentRepo: assignmentRepo,
			Send:           service.MockPoster,
			Logger:         logger,
		}
		queue.StartPostingSubscriber(inMemory, func(itemID int) error {
			return executor.Execute(context.Background(), itemID)
		}, logger)
		publisher = inMemory
		logger.Info().Msg("AMQP_URL not set, posting jobs run in-process")
	}

	dispatcher := &service.Dispatcher{
		Conn:      conn,
		QueueRepo: queueRepo,
		Publisher: publisher,
		Logger:    logger,
	}
	go dispatcher.Run(context.Background(), time.Minute)

	queueController := &controller.QueueController{Control: controlService, Query: queryService}
	emergencyController := &controller.EmergencyController{Emergency: emergencyService}
	assignmentController := &controller.AssignmentController{Assignments: assignmentService}

	r := chi.NewRouter()

	r.Route("/content-queue", func(r chi.Router) {
		r.Get("/", queueController.List)
		r.Get("/account/{id}", queueController.AccountQueue)
		r.Get("/upcoming", queueController.Upcoming)
		r.Get("/overdue", queueController.Overdue)
		r.Get("/stats", queueController.Stats)
		r.Get("/health", queueController.Health)
		r.Get("/summary", queueController.Summary)
		r.Put("/bulk-update", queueController.BulkUpdate)
		r.Post("/cleanup", queueController.Cleanup)
		r.Put("/{id}/reschedule", queueController.Reschedule)
		r.Post("/{id}/retry", queueController.Retry)
		r.Get("/{id}/can-modify", queueController.ValidateModification)
		r.Delete("/{id}", queueController.Remove)
		r.Post("/account/{id}/cancel", queueController.CancelAccountQueue)
	})

	r.Route("/emergency-content", func(r chi.Router) {
		r.Post("/inject", emergencyController.Inject)
		r.Post("/preview", emergencyController.Preview)
		r.Post("/inject-immediate", emergencyController.InjectImmediate)
		r.Post("/batch-inject", emergencyController.BatchInject)
		r.Post("/validate", emergencyController.Validate)
		r.Get("/stats", emergencyController.Stats)
		r.Post("/account/{id}/resume-sprints", emergencyController.ResumeSprints)
		r.Post("/cleanup", emergencyController.Cleanup)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", assignmentController.Create)
		r.Post("/bulk", assignmentController.Bulk)
		r.Get("/", assignmentController.List)
		r.Get("/{id}", assignmentController.Get)
		r.Post("/{id}/activate", assignmentController.Activate)
		r.Post("/{id}/pause", assignmentController.Pause)
		r.Post("/{id}/resume", assignmentController.Resume)
		r.Post("/{id}/complete", assignmentController.Complete)
		r.Post("/{id}/cancel", assignmentController.Cancel)
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info().Str("addr", addr).Msg("server running")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
