package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"nafes-passport/backend/internal/auth"
	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/gateway/handlers"
	"nafes-passport/backend/internal/gateway/util"
	"nafes-passport/backend/internal/shared"
	"nafes-passport/backend/internal/student"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
// Endpoints that mutate the roster require an edit token obtained from
// POST /api/auth/unlock.
func SetupRoutes(cfg *shared.Config, db *mongo.Database, authSvc *auth.Service, students *student.Service, logs *changelog.Service) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS Configuration (Allow React Frontend)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           300,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: authSvc}
	studentHandler := &handlers.StudentHandler{Students: students}
	logHandler := &handlers.ChangeLogHandler{Logs: logs}
	watchHandler := &handlers.WatchHandler{DB: db}

	// 3. Routes
	r.Route("/api", func(r chi.Router) {
		// The live roster stream is long-lived; it stays outside the
		// request timeout.
		r.Get("/students/stream", watchHandler.StreamRoster)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Public routes
			r.Get("/health", healthHandler(db))
			r.Post("/auth/unlock", authHandler.Unlock)
			r.Get("/students", studentHandler.ListStudents)
			r.Get("/students/{id}", studentHandler.GetStudent)
			r.Post("/students/{id}/views", studentHandler.IncrementViews)
			r.Get("/leaderboard/stats", studentHandler.GetLeaderboardStats)

			// Protected routes (require edit token)
			r.Group(func(r chi.Router) {
				r.Use(EditMiddleware(authSvc))

				r.Post("/students", studentHandler.CreateStudent)
				r.Put("/students/{id}/points", studentHandler.UpdatePoints)
				r.Post("/students/{id}/points/adjust", studentHandler.AdjustPoints)
				r.Patch("/students/{id}/stamps", studentHandler.SetStamp)
				r.Post("/students/{id}/stamps/recompute", studentHandler.RecomputeStamps)
				r.Post("/students/{id}/comments", studentHandler.AddComment)
				r.Delete("/students/{id}/comments/{commentId}", studentHandler.RemoveComment)
				r.Delete("/students/{id}", studentHandler.DeleteStudent)
				r.Post("/students/bulk-points", studentHandler.BulkUpdatePoints)

				r.Get("/changelog", logHandler.ListChangeLogs)
				r.Post("/changelog/{id}/restore", logHandler.RestoreSnapshot)
			})
		})
	})

	return r
}

// EditMiddleware rejects requests that do not carry a valid edit token.
func EditMiddleware(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Missing edit token")
				return
			}
			if err := authSvc.ValidateEditToken(token); err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired edit token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(db *mongo.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
			util.WriteJSONError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		util.WriteJSON(w, http.StatusOK, util.JSONResponse{
			Success: true,
			Message: "ok",
		})
	}
}
