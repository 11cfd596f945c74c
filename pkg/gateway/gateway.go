package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/Gabiro3/blimp2/pkg/api/v1"
	"github.com/Gabiro3/blimp2/pkg/auth"
	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/credentials"
	"github.com/Gabiro3/blimp2/pkg/executor"
	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/notify"
	"github.com/Gabiro3/blimp2/pkg/oauth"
	"github.com/Gabiro3/blimp2/pkg/planner"
	"github.com/Gabiro3/blimp2/pkg/redact"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/responder"
	"github.com/Gabiro3/blimp2/pkg/scheduler"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type Gateway struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	BackendRepo repository.BackendRepository
	httpServer  *http.Server
	echo        *echo.Echo
	ctx         context.Context
	cancelFunc  context.CancelFunc

	baseRouteGroup *echo.Group

	scheduler   *scheduler.Scheduler
	registry    *integrations.Registry
	credentials *credentials.Provider
	executor    *executor.Executor
	chat        *services.ChatService
	workflows   *services.WorkflowService
}

func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	config := configManager.GetConfig()

	// Setup logging
	if config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	var redisClient *common.RedisClient
	var backendRepo repository.BackendRepository

	if config.IsLocalMode() {
		log.Info().Msg("running in local mode - redis and postgres disabled")
		backendRepo = repository.NewMemoryBackend()
	} else {
		redisClient, err = common.NewRedisClient(config.Database.Redis, common.WithClientName("BlimpGateway"))
		if err != nil {
			return nil, err
		}

		pg, err := repository.NewPostgresBackend(config.Database.Postgres, common.NewSealer(config.Security.CredentialKey))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		backendRepo = pg
	}

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:      config,
		RedisClient: redisClient,
		BackendRepo: backendRepo,
		ctx:         ctx,
		cancelFunc:  cancel,
	}

	if err := gateway.migrate(); err != nil {
		cancel()
		return nil, err
	}

	return gateway, nil
}

// migrate runs the postgres migrations once across replicas.
func (g *Gateway) migrate() error {
	unlock, err := g.initLock("migrations")
	if err != nil {
		log.Info().Err(err).Msg("another replica is migrating, skipping")
		return nil
	}
	defer unlock()

	if err := g.BackendRepo.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (g *Gateway) initLock(name string) (func(), error) {
	// Skip locking in local mode (no Redis)
	if g.RedisClient == nil {
		return func() {}, nil
	}

	lockKey := common.Keys.GatewayInitLock(name)
	lock := common.NewRedisLock(g.RedisClient)

	if err := lock.Acquire(g.ctx, lockKey, common.RedisLockOptions{TtlS: 10, Retries: 1}); err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(lockKey); err != nil {
			log.Error().Str("lock_key", lockKey).Err(err).Msg("failed to release init lock")
		}
	}, nil
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	// Configure logging middleware
	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: g.Config.Gateway.HTTP.CORS.AllowedOrigins,
		AllowHeaders: g.Config.Gateway.HTTP.CORS.AllowedHeaders,
		AllowMethods: g.Config.Gateway.HTTP.CORS.AllowedMethods,
	}))

	e.Use(middleware.Recover())
	e.Use(auth.HTTPMiddleware(auth.NewJWTValidator(g.Config.Gateway.AuthSecret, g.Config.Gateway.AdminToken)))

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)

	// Health check is unauthenticated
	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.RedisClient, g.BackendRepo)

	return nil
}

// initCore builds the request pipeline: credentials, function registry,
// LLM-backed planner and responder, and the executor.
func (g *Gateway) initCore() error {
	var credOpts []credentials.Option
	if g.RedisClient != nil {
		credOpts = append(credOpts, credentials.WithRedisLock(common.NewRedisLock(g.RedisClient)))
	}
	credOpts = append(credOpts, credentials.WithRefreshTimeout(g.Config.Integrations.Timeouts.Credential))
	g.credentials = credentials.NewProvider(g.BackendRepo, oauth.NewRegistryFromConfig(g.Config.OAuth), credOpts...)

	registry, err := integrations.NewDefaultRegistry(g.Config.Integrations, nil)
	if err != nil {
		return err
	}
	g.registry = registry

	// A missing LLM leaves the gateway up; planning then reports NotConfigured.
	client, err := llm.NewFromConfig(g.ctx, g.Config.LLM)
	if err != nil {
		log.Warn().Err(err).Msg("llm unavailable - chat and workflows will fail until configured")
	}

	timeouts := g.Config.Integrations.Timeouts
	queryPlanner := planner.New(client, registry,
		planner.WithTemperature(g.Config.LLM.PlannerTemperature),
		planner.WithWorkflowTemperature(g.Config.LLM.WorkflowTemperature),
		planner.WithTimeout(timeouts.LLM),
	)
	generator := responder.New(client,
		responder.WithTemperature(g.Config.LLM.ResponseTemperature),
		responder.WithTimeout(timeouts.LLM),
	)

	g.executor = executor.New(registry, g.credentials, generator,
		executor.WithRedactor(redact.New(redact.Options{
			LuhnCheck: g.Config.Security.LuhnCheck,
			BareSSN:   g.Config.Security.BareSSN,
		})),
		executor.WithResearch(client, g.Config.LLM.ResearchTemperature, g.Config.LLM.ResearchMaxTokens),
		executor.WithWorkflowPlanner(queryPlanner),
		executor.WithGmailConcurrency(g.Config.Integrations.GmailDetailConcurrency),
		executor.WithTimeouts(timeouts),
	)

	var sender notify.Sender
	if g.Config.Notify.IsConfigured() {
		sender = notify.New(g.Config.Notify)
	} else {
		log.Info().Msg("notifications disabled - no resend api key")
	}

	g.chat = services.NewChatService(g.credentials, queryPlanner, g.executor, g.BackendRepo)
	g.workflows = services.NewWorkflowService(g.BackendRepo, g.BackendRepo, g.executor, g.credentials, sender,
		services.WithMatcher(queryPlanner, g.credentials),
	)

	log.Info().
		Int("apps", len(types.KnownApps)).
		Bool("llm", client != nil).
		Msg("request pipeline initialized")
	return nil
}

func (g *Gateway) registerServices() error {
	if err := g.initCore(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	api := g.baseRouteGroup.Group("", auth.RequireAuthMiddleware(), apiv1.NewUserMiddleware())
	apiv1.NewChatGroup(api.Group("/chat"), g.chat)
	apiv1.NewWorkflowsGroup(api.Group("/workflows"), g.workflows)
	apiv1.NewConnectionsGroup(api.Group("/connections"), g.credentials)
	log.Info().Msg("chat, workflow and connection APIs registered")

	if g.Config.Scheduler.Enabled {
		var lock scheduler.Locker
		if g.RedisClient != nil {
			lock = common.NewRedisLock(g.RedisClient)
		}
		g.scheduler = scheduler.NewScheduler(g.ctx, g.Config.Scheduler, g.BackendRepo, g.workflows, lock)

		if err := g.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		schedulerService := scheduler.NewSchedulerService(g.scheduler)
		schedulerService.RegisterRoutes(g.baseRouteGroup.Group("/scheduler", apiv1.RequireAdmin()))

		log.Info().Msg("scheduler service registered")
	}

	return nil
}

// StartAsync starts the gateway without blocking.
// Use this when embedding the gateway in another process (e.g., CLI).
func (g *Gateway) StartAsync() error {
	err := g.initHTTP()
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	err = g.registerServices()
	if err != nil {
		return fmt.Errorf("failed to register services: %w", err)
	}

	lis, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on http: %w", err)
	}

	go func() {
		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Str("mode", g.Config.Mode).
		Msg("gateway http server running")

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), g.Config.Gateway.ShutdownTimeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.httpServer.Shutdown(ctx)
	})

	if g.scheduler != nil {
		eg.Go(func() error {
			return g.scheduler.Stop()
		})
	}

	g.cancelFunc()

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown gateway gracefully")
	}

	// Close storage after in-flight requests and scheduled runs are done
	if err := g.BackendRepo.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close backend")
	}
	if g.RedisClient != nil {
		if err := g.RedisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis")
		}
	}

	log.Info().Msg("gateway stopped")
}

// Scheduler returns the scheduler instance, nil when disabled.
func (g *Gateway) Scheduler() *scheduler.Scheduler {
	return g.scheduler
}

// Registry returns the app function registry.
func (g *Gateway) Registry() *integrations.Registry {
	return g.registry
}
