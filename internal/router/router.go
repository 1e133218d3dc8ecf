package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"airmini-gateway/internal/handlers"
	"airmini-gateway/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	chatHandler *handlers.ChatHandler,
	chatsHandler *handlers.ChatsHandler,
	creditsHandler *handlers.CreditsHandler,
	tripContextHandler *handlers.TripContextHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Guest surface rate limiter (30 req/min per IP). Signed-in users are
	// gated by the credit window instead.
	guestLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Chat Stream Routes (guests allowed) ────
		r.Group(func(r chi.Router) {
			r.Use(guestLimiter.Middleware)
			r.Use(jwtAuth.OptionalMiddleware)
			r.Post("/chat", chatHandler.Stream)
			r.Post("/chat/stop", chatHandler.Stop)
			r.Get("/credits", creditsHandler.Status)
		})

		// ──── Chat History Routes ────
		r.Route("/chats", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", chatsHandler.List)
			r.Post("/claim", chatsHandler.Claim)
			r.Get("/{id}/messages", chatsHandler.Messages)
			r.Patch("/{id}", chatsHandler.Update)
			r.Delete("/{id}", chatsHandler.Delete)
		})

		// ──── Trip Context Routes ────
		r.Route("/trip-context", func(r chi.Router) {
			r.Use(jwtAuth.OptionalMiddleware)
			r.Get("/{chatId}", tripContextHandler.Get)
		})
	})

	return r
}
