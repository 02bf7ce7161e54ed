package admin

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/interpreter"
)

// NewRouter builds the admin API router.
func NewRouter(handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Get("/metrics", handlers.handleMetrics)

	r.Route("/interpreters", func(r chi.Router) {
		r.Use(AuthMiddleware)
		r.Get("/", handlers.handleListInterpreters)
		r.Post("/{name}/interpret", handlers.wrapWithInterpreter(handlers.handleInterpret))
		r.Post("/{name}/cancel", handlers.wrapWithInterpreter(handlers.handleCancel))
		r.Get("/{name}/completion", handlers.wrapWithInterpreter(handlers.handleCompletion))
	})

	return r
}

// RegisterRoutes mounts the admin API on mux
func RegisterRoutes(mux *http.ServeMux, handlers *Handlers) {
	mux.Handle("/", NewRouter(handlers))
	log.Info().Msg("Admin endpoints enabled at /interpreters/{name}/*")
}

// wrapWithInterpreter resolves the {name} URL parameter
func (h *Handlers) wrapWithInterpreter(fn func(http.ResponseWriter, *http.Request, *interpreter.Interpreter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			writeErrorResponse(w, http.StatusBadRequest, "interpreter name is required")
			return
		}
		it, ok := h.registry.Get(name)
		if !ok {
			writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("interpreter '%s' not found", name))
			return
		}
		fn(w, r, it)
	}
}
