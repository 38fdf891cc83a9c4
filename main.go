package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/collab-task-board/config"
	"github.com/example/collab-task-board/middleware/ratelimit"
	"github.com/example/collab-task-board/modules/activity"
	"github.com/example/collab-task-board/modules/api"
	"github.com/example/collab-task-board/modules/auth"
	"github.com/example/collab-task-board/modules/board"
	"github.com/example/collab-task-board/modules/broadcast"
	"github.com/example/collab-task-board/modules/cache"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Collaborative Task Board - Fiber + EventBus ===")

	cfg := config.Load()

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	jwtConfig := auth.DefaultJWTConfig()
	if cfg.JWTSecretKey != "" {
		jwtConfig.SecretKey = cfg.JWTSecretKey
	} else {
		log.Println("WARNING: JWT_SECRET_KEY not set, using the development secret")
	}
	if cfg.JWTIssuer != "" {
		jwtConfig.Issuer = cfg.JWTIssuer
	}
	jwtConfig.AccessTokenDuration = cfg.AccessTokenTTL
	jwtConfig.RefreshTokenDuration = cfg.RefreshTokenTTL

	boardModule := board.NewModule(cfg.BoardDBPath, cfg.DBDebug, cfg.StoreTimeout)
	authModule := auth.NewModule(jwtConfig)
	activityModule := activity.NewModule(cfg.ActivityDBPath, cfg.DBDebug, cfg.LogFeedLimit)
	broadcastModule := broadcast.NewModule()
	apiModule := api.NewModule(cfg.HTTPPort, cfg.CORSOrigins, cfg.LogFeedLimit)

	// The hub is not exposed via ServiceContainer, so it is injected by hand.
	apiModule.SetHub(broadcastModule.GetHub())

	var cacheModule *cache.Module
	if cfg.RedisEnabled() {
		client := cache.NewClient(cfg.RedisAddr)
		cacheModule = cache.NewModule(client, cfg.CachePrefix, cfg.CacheTTL)
		boardModule.SetCache(cacheModule.GetCache())
		apiModule.SetRateLimiter(ratelimit.NewSlidingWindowLimiter(
			client, cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.CachePrefix+"ratelimit:",
		))
	} else {
		log.Println("REDIS_ADDR not set: task list cache and login rate limiting disabled")
	}

	// Order: independent modules first, then modules with dependencies
	// - cache: Redis connection (optional)
	// - board: tasks and users (ServiceProviderModule + EventEmitterModule)
	// - auth: credentials and tokens, depends on board
	// - activity: log feed (EventConsumerModule), depends on board
	// - broadcast: realtime hub (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on auth, board, activity
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	app.Register(boardModule)
	app.Register(authModule)
	app.Register(activityModule)
	app.Register(broadcastModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.HTTPPort)
	log.Println("  GET    /health                       - Health check")
	log.Println("  POST   /api/users/register           - Register a member")
	log.Println("  POST   /api/users/login              - Login")
	log.Println("  POST   /api/users/refresh            - Refresh tokens")
	log.Println("  GET    /api/users                    - Members and their load (auth)")
	log.Println("  GET    /api/users/me                 - Current member (auth)")
	log.Println("  GET    /api/tasks                    - List tasks (auth)")
	log.Println("  POST   /api/tasks                    - Create a task (auth)")
	log.Println("  PUT    /api/tasks/:id                - Update a task (auth)")
	log.Println("  DELETE /api/tasks/:id                - Delete a task (auth)")
	log.Println("  PUT    /api/tasks/:id/smart-assign   - Assign to the least loaded member (auth)")
	log.Println("  GET    /api/logs?limit=20            - Recent activity (auth)")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws):", cfg.HTTPPort)
	log.Println("  Send new-task / update-task after a change; peers receive refresh-tasks")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
