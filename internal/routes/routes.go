package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/lostmarbl3/fai-trainsmart/internal/config"
	"github.com/lostmarbl3/fai-trainsmart/internal/handlers"
	"github.com/lostmarbl3/fai-trainsmart/internal/identity"
	"github.com/lostmarbl3/fai-trainsmart/internal/metrics"
	"github.com/lostmarbl3/fai-trainsmart/internal/middleware"
	"github.com/lostmarbl3/fai-trainsmart/internal/profilesync"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
	"github.com/lostmarbl3/fai-trainsmart/internal/services"
	sessionws "github.com/lostmarbl3/fai-trainsmart/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Dependencies struct {
	Config   *config.Config
	DB       repository.DBTX
	Redis    *redis.Client
	Hub      *sessionws.Hub
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// RegisterRoutes mounts the whole HTTP surface. The returned function stops
// the background work started here.
func RegisterRoutes(app *fiber.App, deps Dependencies) (func(), error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := metrics.NewCollector(deps.Registry)

	identityRepo := repository.NewIdentityRepository(deps.DB)
	profileRepo := repository.NewProfileRepository(deps.DB)
	tokenStore := identity.NewRedisTokenStore(deps.Redis)

	identityService := identity.NewService(identityRepo, tokenStore, deps.Hub, collector, logger.Named("identity"), identity.Config{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	synchronizer := profilesync.New(profileRepo,
		profilesync.WithTimeout(cfg.ProfileResolveTimeout),
		profilesync.WithTrainerClientLimit(cfg.DefaultTrainerClientLimit),
		profilesync.WithLogger(logger.Named("profilesync")),
		profilesync.WithMetrics(collector),
	)
	profileService := services.NewProfileService(profileRepo, synchronizer)

	authHandler := handlers.NewAuthHandler(identityService, profileService, logger.Named("auth"))
	profileHandler := handlers.NewProfileHandler(profileService)
	feedHandler := handlers.NewSessionFeedHandler(deps.Hub)

	authLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.AuthRatePerMinute), logger.Named("ratelimit"))
	authRequired := middleware.AuthRequired(identityService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(deps.Registry)))

	api := app.Group("/api")

	auth := api.Group("/auth", authLimiter.Handler())
	auth.Post("/signup", authHandler.SignUp)
	auth.Post("/signin", authHandler.SignIn)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/signout", authRequired, authHandler.SignOut)
	auth.Get("/session", authRequired, authHandler.Session)
	auth.Get("/bootstrap", authRequired, authHandler.Bootstrap)

	api.Use("/v1/ws", middleware.QueryTokenAuth(identityService), feedHandler.RequireUpgrade)
	api.Get("/v1/ws", websocket.New(feedHandler.HandleWebSocket))

	v1 := api.Group("/v1")

	profiles := v1.Group("/profiles", authRequired)
	profiles.Get("/:user_id", profileHandler.GetProfile)
	profiles.Post("", profileHandler.CreateProfile)
	profiles.Patch("/:user_id", profileHandler.UpdateProfile)

	if err := registerDocsRoutes(app, cfg); err != nil {
		authLimiter.Stop()
		return nil, err
	}

	return authLimiter.Stop, nil
}
