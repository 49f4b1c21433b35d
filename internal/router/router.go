package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-iot-backend/internal/config"
	"go-iot-backend/internal/handler"
	"go-iot-backend/internal/middleware"
	"go-iot-backend/internal/model"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	distanceHandler *handler.DistanceHandler,
	controlHandler *handler.ControlHandler,
	healthHandler *handler.HealthHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", healthHandler.Check)

	superAdmin := authMiddleware.RequireRoles(model.RoleSuperAdmin)
	sensorReader := authMiddleware.RequireSensorReader(handler.SensorParam)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authHandler.Register)
			auth.Post("/login", authHandler.Login)
			auth.With(superAdmin).Get("/logs", authHandler.Logs)
		})

		api.Route("/control", func(control chi.Router) {
			control.Get("/", controlHandler.Get)
			control.With(superAdmin).Post("/", controlHandler.Update)
			control.With(superAdmin).Post("/toggle", controlHandler.Toggle)
			control.With(superAdmin).Get("/summary", controlHandler.Summary)
		})

		api.Route("/distance", func(distance chi.Router) {
			distance.With(superAdmin).Get("/all", distanceHandler.ListAll)

			distance.Post("/{sensor}", distanceHandler.Create)
			distance.With(sensorReader).Get("/{sensor}", distanceHandler.List)
			distance.With(sensorReader).Get("/{sensor}/latest", distanceHandler.Latest)
			distance.With(sensorReader).Get("/{sensor}/stats", distanceHandler.Stats)
			distance.With(superAdmin).Delete("/{sensor}/cleanup", distanceHandler.Cleanup)
		})
	})

	return r
}
