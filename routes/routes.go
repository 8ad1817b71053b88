package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"unihub/config"
	controller "unihub/controllers"
	"unihub/middleware"
	"unihub/utils"
)

// Multipart bodies carry one file of at most middleware.MaxUploadSize plus
// form fields, so the body limit sits a little above it.
const bodyLimit = 12 * 1024 * 1024

// Dependencies are the collaborators shared by every route table.
type Dependencies struct {
	DB               *gorm.DB
	Mailer           utils.Mailer
	Media            utils.MediaStore
	Hub              *utils.SeatHub
	RateLimitStorage fiber.Storage
}

// NewApp builds the Fiber application with its middleware and routes.
func NewApp(deps Dependencies) *fiber.App {
	if deps.Hub == nil {
		deps.Hub = utils.NewSeatHub()
	}

	app := fiber.New(fiber.Config{
		AppName:      "unihub",
		BodyLimit:    bodyLimit,
		ErrorHandler: middleware.ErrorHandler(config.AppConfig.IsProduction()),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(config.AppConfig.AllowedOrigins)))

	SetupRoutes(app, deps)
	return app
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	SetupHealthRoutes(app, deps.DB)

	api := app.Group("/api/v1")
	SetupAuthRoutes(api, deps)
	SetupGalleryRoutes(api, deps)
	SetupTeamRoutes(api, deps)
	SetupEventRoutes(api, deps)

	app.Use(middleware.NotFoundHandler)

	logrus.Info("Routes initialized successfully")
}

func SetupHealthRoutes(app *fiber.App, db *gorm.DB) {
	hc := controller.NewHealthController(db)

	app.Get("/", hc.Root)
	app.Get("/health", hc.Liveness)
	app.Get("/health/db", hc.Database)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func SetupAuthRoutes(api fiber.Router, deps Dependencies) {
	ac := controller.NewAuthController(deps.DB, deps.Mailer)
	limit := middleware.AuthRateLimiter(config.AppConfig.AuthRateLimitMax, deps.RateLimitStorage)

	auth := api.Group("/auth")

	// Public auth endpoints
	auth.Post("/register", limit, ac.Register)
	auth.Post("/verify-email", limit, ac.VerifyEmail)
	auth.Post("/resend-otp", limit, ac.ResendOTP)
	auth.Post("/login", limit, ac.Login)
	auth.Post("/forgot-password", limit, ac.ForgotPassword)
	auth.Post("/reset-password", limit, ac.ResetPassword)
	auth.Post("/refresh-token", limit, ac.RefreshToken)

	// Protected auth endpoints
	protected := middleware.Protected(deps.DB)
	auth.Post("/logout", protected, ac.Logout)
	auth.Get("/current-user", protected, ac.CurrentUser)
}

func SetupGalleryRoutes(api fiber.Router, deps Dependencies) {
	gc := controller.NewGalleryController(deps.DB, deps.Media)
	protected := middleware.Protected(deps.DB)
	upload := middleware.SingleUpload("media", config.AppConfig.UploadTempDir)

	gallery := api.Group("/gallery")

	// Static paths first so they are not captured by /:id
	gallery.Get("/", gc.ListItems)
	gallery.Get("/categories", gc.Categories)
	gallery.Get("/stats", protected, gc.Stats)
	gallery.Get("/:id", gc.GetItem)

	gallery.Post("/create", protected, upload, gc.CreateItem)
	gallery.Patch("/update/:id", protected, upload, gc.UpdateItem)
	gallery.Delete("/delete/:id", protected, gc.DeleteItem)
	gallery.Post("/bulk-delete", protected, gc.BulkDelete)
}

func SetupTeamRoutes(api fiber.Router, deps Dependencies) {
	tc := controller.NewTeamController(deps.DB)

	teams := api.Group("/teams", middleware.Protected(deps.DB))
	teams.Post("/", tc.CreateTeam)
	teams.Get("/", tc.GetMyTeams)
	teams.Get("/:teamId", tc.GetTeam)
	teams.Put("/:teamId", tc.UpdateTeam)
	teams.Delete("/:teamId", tc.DeleteTeam)
}

func SetupEventRoutes(api fiber.Router, deps Dependencies) {
	ec := controller.NewEventController(deps.DB, deps.Media, deps.Hub)
	protected := middleware.Protected(deps.DB)
	poster := middleware.SingleUpload("posterImage", config.AppConfig.UploadTempDir)

	events := api.Group("/events")

	events.Get("/my/registered", protected, ec.MyRegisteredEvents)

	// Public
	events.Get("/", ec.ListEvents)
	events.Get("/:eventId", ec.GetEvent)
	events.Get("/:eventId/live", controller.RequireUpgrade, websocket.New(ec.LiveSeats))

	// Protected
	events.Post("/", protected, poster, ec.CreateEvent)
	events.Put("/:eventId", protected, poster, ec.UpdateEvent)
	events.Delete("/:eventId", protected, ec.DeleteEvent)
	events.Post("/:eventId/register", protected, ec.RegisterTeam)
	events.Delete("/:eventId/unregister/:teamId", protected, ec.UnregisterTeam)
}
