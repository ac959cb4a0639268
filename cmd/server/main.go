package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/auth"
	"github.com/mealweek/api/internal/client"
	"github.com/mealweek/api/internal/config"
	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/handler"
	"github.com/mealweek/api/internal/middleware"
	"github.com/mealweek/api/internal/pipeline"
	"github.com/mealweek/api/internal/service"
	"github.com/mealweek/api/internal/store"
	"github.com/mealweek/api/internal/tasks"
	"github.com/mealweek/api/internal/worker"
	ws "github.com/mealweek/api/internal/websocket"
)

// batchPrepConcurrency bounds batch-prep generation system-wide; every run
// hits the paid generation service.
const batchPrepConcurrency = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := initLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zap.L().Sync()
	sugar := zap.S()

	// Database
	db, err := store.InitDB(&cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect database", "error", err)
	}
	dataStore := store.NewStore(db)
	if err := dataStore.Migrate(); err != nil {
		sugar.Fatalw("failed to migrate database", "error", err)
	}
	ctx := context.Background()
	if err := dataStore.Seed(ctx); err != nil {
		sugar.Fatalw("failed to seed theme catalog", "error", err)
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		sugar.Warnw("redis not available", "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Content generator: fixtures in test mode, otherwise the configured
	// provider behind the gateway
	var generator pipeline.ContentGenerator
	var geminiClient *client.GeminiClient
	if cfg.Pipeline.TestMode {
		sugar.Warn("pipeline test mode enabled, generation stages return fixture content")
		generator = &pipeline.FixtureGenerator{}
	} else {
		var textGen gateway.TextGenerator
		if cfg.LLM.Provider == "gemini" {
			geminiClient, err = client.NewGeminiClient(ctx, &cfg.Gemini)
			if err != nil {
				sugar.Fatalw("failed to init gemini client", "error", err)
			}
			textGen = geminiClient
		} else {
			llmClient := client.NewLLMClient(&cfg.LLM)
			if !llmClient.IsConfigured() {
				sugar.Warn("llm api key not set, generation will fail")
			}
			textGen = llmClient
		}
		generator = gateway.New(textGen)
	}
	if geminiClient != nil {
		defer geminiClient.Close()
	}

	// Raw prep payload archive (optional)
	var archive client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		sugar.Infow("r2 archive disabled", "reason", err)
	} else {
		archive = r2
	}

	mailer := client.NewMailerClient(&cfg.Mailer)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	orchestrator := pipeline.New(pipeline.Config{
		Store:        dataStore,
		Generator:    generator,
		Enqueuer:     asynqClient,
		Archive:      archive,
		Notifier:     hub,
		SnacksPerDay: cfg.Pipeline.SnacksPerDay,
	})

	planService := service.NewPlanService(dataStore, asynqClient)

	validate := validator.New()
	planHandler := handler.NewPlanHandler(planService, validate)
	themeHandler := handler.NewThemeHandler(planService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Auth: Traefik gateway headers, or JWKS with legacy HMAC fallback
	var authenticate fiber.Handler
	var authHandler *handler.AuthHandler
	if cfg.Gateway.Enabled {
		authenticate = middleware.GatewayAuthMiddleware()
	}
	var verifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		verifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			sugar.Fatalw("failed to init token verifier", "error", err)
		}
		defer verifier.Close()
	}
	authHandler = handler.NewAuthHandler(verifier, cfg.JWT.Secret)
	if authenticate == nil {
		authenticate = middleware.NewAuthMiddlewareWithFallback(verifier, cfg.JWT.Secret).Authenticate()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authenticate)

	plans := api.Group("/plans")
	plans.Post("/generate", rateLimiter.PlanLimit(cfg.RateLimit.PlansPerHour), planHandler.Generate)
	plans.Get("/jobs/:jobId", planHandler.JobStatus)
	plans.Get("/:planId", planHandler.GetPlan)
	plans.Post("/:planId/favorite", planHandler.Favorite)

	api.Get("/themes", themeHandler.List)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Worker servers: plans and fan-out share one; batch prep gets its own
	// so its concurrency cap is global
	go startPlanWorkerServer(redisOpt, dataStore, orchestrator, mailer, redisClient)
	go startBatchPrepWorkerServer(redisOpt, orchestrator)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		sugar.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			sugar.Errorw("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	sugar.Infof("server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		sugar.Fatalw("server error", "error", err)
	}
}

func startPlanWorkerServer(redisOpt asynq.RedisClientOpt, dataStore store.Store, orchestrator *pipeline.Orchestrator, mailer client.Notifier, redisClient *redis.Client) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			tasks.QueuePlans:  6,
			tasks.QueueFanout: 4,
		},
	})

	planWorker := worker.NewPlanWorker(dataStore, orchestrator)
	fanoutWorker := worker.NewFanoutWorker(dataStore, mailer, redisClient)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePlanGenerate, planWorker.ProcessTask)
	mux.HandleFunc(tasks.TypeFanoutEmail, fanoutWorker.ProcessTask)
	mux.HandleFunc(tasks.TypeFanoutCounters, fanoutWorker.ProcessTask)
	mux.HandleFunc(tasks.TypeFanoutThemeUsage, fanoutWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		zap.S().Errorw("plan worker server error", "error", err)
	}
}

func startBatchPrepWorkerServer(redisOpt asynq.RedisClientOpt, orchestrator *pipeline.Orchestrator) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: batchPrepConcurrency,
		Queues: map[string]int{
			tasks.QueueBatchPrep: 1,
		},
	})

	batchWorker := worker.NewBatchPrepWorker(orchestrator)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBatchPrep, batchWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		zap.S().Errorw("batch prep worker server error", "error", err)
	}
}

func initLogger(env, level string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = parsed
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
