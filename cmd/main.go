package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"copilot-salud-backend/config"
	_ "copilot-salud-backend/docs" // This will be created by swag
	"copilot-salud-backend/internal/audit"
	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/controller"
	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/inference"
	"copilot-salud-backend/internal/parser"
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/scheduler"
	"copilot-salud-backend/internal/security"
	"copilot-salud-backend/internal/store"
)

// @title           Copilot Salud Andalucía API
// @version         1.0
// @description     Role-based health analytics backend for the Málaga province. Natural-language queries are answered by an LLM pipeline over open health datasets, returning structured analyses with renderable charts.

// @contact.name   API Support Team
// @contact.email  soporte@salud-malaga.es

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @tag.name         auth
// @tag.description  Login and role catalog

// @tag.name         ai
// @tag.description  Natural-language analysis pipeline

// @tag.name         datasets
// @tag.description  Role-filtered dataset catalog

// @tag.name         admin
// @tag.description  Rate limiter and pipeline administration

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Enter the token with the `Bearer: ` prefix, e.g. "Bearer abcde12345".

func main() {
	app := fx.New(
		// Core Dependencies
		fx.Provide(
			NewConfig,
		),
		// Infrastructure Dependencies
		fx.Provide(
			NewGinEngine,
			NewAuditLogger,
			NewRateLimiter,
			NewDatasetLoader,
			NewUserStore,
			NewTokenIssuer,
			NewEncryptor,
			NewInferenceClient,
			NewResultCache,
			NewDefaultTheme,
			store.NewInMemoryHistoryStore,
			NewParserPool,
			chart.NewSynthesizer,
			pipeline.NewMetrics,
			pipeline.NewOrchestrator,
			controller.NewAuthController,
			controller.NewQueryController,
			controller.NewDatasetController,
			controller.NewAdminController,
		),
		fx.Invoke(
			RegisterAPIRoutes,
			RegisterScheduler,
			RegisterUserStoreBackup,
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	log.Info().Msg("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
	}
	log.Info().Msg("Exiting.")
}

func NewConfig() (*config.Config, error) {
	return config.NewConfig()
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Add your frontend URLs
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add swagger route
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// --- Factory Functions ---

func NewAuditLogger(cfg *config.Config) *audit.Logger {
	return audit.NewLogger(cfg.Data.LogsDir)
}

func NewRateLimiter(cfg *config.Config, auditor *audit.Logger) *ratelimit.Limiter {
	opts := []ratelimit.Option{}
	if cfg.RateLimit.MaxAIQueriesPerHour > 0 {
		opts = append(opts, ratelimit.WithHourlyAICap(cfg.RateLimit.MaxAIQueriesPerHour))
	}
	return ratelimit.NewLimiter(cfg.Data.StateFile, auditor, opts...)
}

func NewDatasetLoader(cfg *config.Config) dataset.Loader {
	opts := []dataset.Option{}
	if cfg.Data.AdminCacheTTL > 0 {
		opts = append(opts, dataset.WithAdminTTL(cfg.Data.AdminCacheTTL))
	}
	return dataset.NewCSVLoader(cfg.Data.Dir, opts...)
}

func NewUserStore(cfg *config.Config) (*auth.Store, error) {
	return auth.NewStore(cfg.Auth.UsersFile)
}

func NewTokenIssuer(cfg *config.Config) *auth.TokenIssuer {
	return auth.NewTokenIssuer(cfg.Auth.JWTSecret)
}

func NewEncryptor(cfg *config.Config) (*security.Encryptor, error) {
	return security.NewEncryptor(cfg.Data.Dir)
}

func NewInferenceClient(lc fx.Lifecycle, cfg *config.Config) inference.Client {
	opts := []inference.ClientOption{}
	if cfg.Groq.Timeout > 0 {
		opts = append(opts, inference.WithAttemptTimeout(cfg.Groq.Timeout))
	}
	runner := inference.NewRunner(inference.NewClient(cfg, opts...), 0)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			runner.Stop()
			return nil
		},
	})
	return runner
}

func NewResultCache() *inference.ResultCache {
	return inference.NewResultCache()
}

func NewParserPool(lc fx.Lifecycle) *parser.Pool {
	pool := parser.NewPool(parser.New())
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Stop()
			return nil
		},
	})
	return pool
}

func NewDefaultTheme(cfg *config.Config) chart.Theme {
	if cfg.Theme == string(chart.ThemeLight) {
		return chart.ThemeLight
	}
	return chart.ThemeDark
}

// --- Invoker Functions ---

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	issuer *auth.TokenIssuer,
	authController *controller.AuthController,
	queryController *controller.QueryController,
	datasetController *controller.DatasetController,
	adminController *controller.AdminController,
) {
	controller.RegisterAuthRoutes(router, authController)
	controller.RegisterQueryRoutes(router, issuer, queryController)
	controller.RegisterDatasetRoutes(router, issuer, datasetController)
	controller.RegisterAdminRoutes(router, issuer, adminController)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

func RegisterScheduler(lc fx.Lifecycle, limiter *ratelimit.Limiter, loader dataset.Loader) {
	scheduler.NewScheduler(lc, limiter, loader)
}

// RegisterUserStoreBackup seals an encrypted copy of the user store on
// startup. Depending on *auth.Store guarantees the file is seeded
// before it is sealed.
func RegisterUserStoreBackup(lc fx.Lifecycle, cfg *config.Config, enc *security.Encryptor, _ *auth.Store) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			dst := cfg.Auth.UsersFile + ".enc"
			if err := enc.SealFile(cfg.Auth.UsersFile, dst); err != nil {
				log.Warn().Err(err).Msg("Failed to write encrypted user store backup")
				return nil
			}
			log.Info().Str("file", dst).Msg("Encrypted user store backup written")
			return nil
		},
	})
}
