package routes

import (
	"net/http"

	"github.com/Olzhas-K/sportsmeet-system/handlers"
	mw "github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes собирает все маршруты приложения.
// qrLimiter навешивается только на сканирование QR: это единственный
// маршрут, по которому сканеры бьют очередями.
func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	participantHandler *handlers.ParticipantHandler,
	enrollmentHandler *handlers.EnrollmentHandler,
	attendanceHandler *handlers.AttendanceHandler,
	rosterHandler *handlers.RosterHandler,
	eventHandler *handlers.EventHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
	qrLimiter func(http.Handler) http.Handler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := mw.Authenticate(jwtSecret)
	staffOnly := mw.Authorize(models.RoleAdmin, models.RoleManager)
	managerOnly := mw.Authorize(models.RoleManager)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/logout", authHandler.Logout)
		})
	})

	router.Route("/events", func(r chi.Router) {
		// Программа соревнований доступна без токена: её показывают
		// публичные табло.
		r.Get("/", eventHandler.List)
		r.Get("/{id}", eventHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(managerOnly)
			r.Post("/", eventHandler.Create)
			r.Patch("/{id}/active", eventHandler.SetActive)
		})

		// Массовые операции по загруженному списку номеров.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(managerOnly)
			r.Post("/{eventID}/roster/attendance", rosterHandler.BulkMarkAttendance)
			r.Post("/{eventID}/roster/enroll", rosterHandler.BulkEnroll)
			r.Post("/{eventID}/roster/results", rosterHandler.BulkMarkResults)
		})
	})

	router.Route("/participants", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/complete-registration", participantHandler.CompleteRegistration)
		r.Get("/{id}", participantHandler.GetProfile)
		r.Patch("/{id}", participantHandler.UpdateProfile)
		r.Post("/{id}/photo", participantHandler.UploadPhoto)
		r.Post("/{id}/unlock", enrollmentHandler.Unlock)

		r.Group(func(r chi.Router) {
			r.Use(staffOnly)
			r.Delete("/{id}", participantHandler.Delete)
		})
	})

	router.Route("/enrollment", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/lock", enrollmentHandler.Lock)
		r.Post("/unlock", enrollmentHandler.Unlock)
	})

	router.Route("/attendance", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(staffOnly)
		r.Post("/toggle", attendanceHandler.Toggle)
		r.With(qrLimiter).Post("/scan", attendanceHandler.ScanQR)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(managerOnly)
		r.Post("/repair-counters", rosterHandler.RepairCounters)
	})

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)
}
