package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the router.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Handle("/files/*", a.uploads.Handler())

	r.Route("/public/pages/{id}", func(r chi.Router) {
		r.Get("/", a.handlePublicPage)
		r.Get("/blocks", a.handlePublicBlocks)
		r.Get("/export", a.handleExport)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.identity.Middleware)

		r.Get("/pages", a.handleListRootPages)
		r.Post("/pages", a.handleCreatePage)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetPage)
			r.Patch("/", a.handleRenamePage)
			r.Delete("/", a.handleDeletePage)
			r.Get("/children", a.handleListChildPages)
			r.Post("/move", a.handleMovePage)
			r.Put("/visibility", a.handleSetVisibility)
			r.Get("/blocks", a.handleReadBlocks)
			r.Put("/blocks", a.handleSaveBlocks)
			r.Post("/blocks", a.handleCreateBlock)
			r.Post("/import", a.handleImport)
			r.Post("/assistant", a.handleAssistant)
		})

		r.Route("/blocks/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetBlock)
			r.Patch("/", a.handleUpdateBlock)
			r.Delete("/", a.handleDeleteBlock)
			r.Post("/format", a.handleFormatBlock)
		})

		r.Post("/uploads", a.handleUpload)
	})

	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.stores.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
