package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pressroom-hq/pressroom/internal/auth"
	"github.com/pressroom-hq/pressroom/internal/observability"
	"github.com/pressroom-hq/pressroom/internal/posts"
	"github.com/pressroom-hq/pressroom/internal/roles"
	"github.com/pressroom-hq/pressroom/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Middleware   MiddlewareConfig
	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	PostsHandler *posts.Handler
	RolesHandler *roles.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Pressroom defaults. Handlers
// declare their own policy chains at mount time, so the router stays a
// plain table of route groups.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Middleware) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/users", params.UsersHandler.MountRoutes)
	r.Route("/posts", params.PostsHandler.MountRoutes)
	r.Route("/admin", params.RolesHandler.MountRoutes)

	return r
}
