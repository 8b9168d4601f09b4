package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postloop/postloop/configs"
	"github.com/postloop/postloop/internal/api/handlers"
	"github.com/postloop/postloop/internal/api/middleware"
	job "github.com/postloop/postloop/internal/jobs"
	"github.com/postloop/postloop/internal/media"
	"github.com/postloop/postloop/internal/platform"
	"github.com/postloop/postloop/internal/queue"
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/rewrite"
	"github.com/postloop/postloop/internal/scheduler"
	"github.com/postloop/postloop/internal/service"
	"github.com/postloop/postloop/internal/tokens"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postPlatformRepo := repository.NewPostPlatformRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	libraryRepo := repository.NewLibraryRepository(db)
	slotRepo := repository.NewWeeklySlotRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	publishRunRepo := repository.NewPublishRunRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)

	registry := platform.NewRegistry(*cfg, nil)
	resolver := media.NewResolver(nil)
	tokenManager := tokens.NewManager(*cfg, socialAccountRepo, nil)
	rewriter := rewrite.NewRewriter(*cfg, nil)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	accountService := service.NewAccountService(*cfg, socialAccountRepo, activityRepo, nil)
	libraryService := service.NewLibraryService(libraryRepo, postRepo)
	slotService := service.NewSlotService(slotRepo, libraryRepo)
	activityService := service.NewActivityService(activityRepo)
	postService := service.NewPostService(db, postRepo, postPlatformRepo, libraryRepo, mediaAssetRepo, postMediaRepo, registry, r2Service)
	publishService := service.NewPublishService(tokenManager, registry, resolver, postRepo, postPlatformRepo, postMediaRepo, postingHistoryRepo)

	rotation := scheduler.New(*cfg, slotRepo, libraryRepo, postRepo, postPlatformRepo, postMediaRepo, activityRepo, publishRunRepo, rewriter, publishService)

	queueW := queue.NewQueue(postRepo, activityRepo, publishService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platformHandler := handlers.NewPlatformHandler(accountService, *cfg)
	app.Get("/auth/:platform", platformHandler.AddSocialAccount)
	app.Get("/auth/:platform/callback", platformHandler.CallbackHandler)

	trigger := handlers.NewTriggerHandler(*cfg, rotation)
	app.Post("/cron/rotate", trigger.RunRotation)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	library := handlers.NewLibraryHandler(libraryService)
	api.Post("/libraries/create", library.CreateLibrary)
	api.Get("/libraries", library.ListLibraries)
	api.Get("/libraries/posts", library.ListLibraryPosts)
	api.Post("/libraries/update", library.UpdateLibrary)
	api.Post("/libraries/remove", library.RemoveLibrary)

	slot := handlers.NewSlotHandler(slotService)
	api.Post("/slots/create", slot.CreateSlot)
	api.Get("/slots", slot.ListSlots)
	api.Post("/slots/remove", slot.RemoveSlot)

	post := handlers.NewPostHandler(postService, queueW, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/publish", post.PublishNow)
	api.Post("/posts/remove", post.RemovePost)

	activity := handlers.NewActivityHandler(activityService)
	api.Get("/activities", activity.ListActivities)

	// social accounts api routes
	api.Get("/accounts", platformHandler.ListSocialAccounts)
	api.Post("/accounts/bluesky", platformHandler.ConnectBluesky)
	api.Post("/accounts/remove", platformHandler.DeleteSocialAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokenManager)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@hourly", runRotation(rotation))
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func runRotation(rotation *scheduler.Scheduler) func() {
	return func() {
		summary, err := rotation.Run(context.Background())
		if err != nil {
			log.Printf("Rotation run failed: %v", err)
			return
		}
		log.Printf("Rotation run processed %d slots", summary.Processed)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
