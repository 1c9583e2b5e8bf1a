package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"blocknotes/internal/domain"
)

// ── Public ────────────────────────────────────────────────

func (a *App) handlePublicPage(w http.ResponseWriter, r *http.Request) {
	p, err := a.pages.GetPublicPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	req, err := readRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	req.View, req.PageID = domain.ViewPublic, p.ID
	blocks, err := a.reader.ReadBlocks(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PageState{Page: *p, Blocks: *blocks})
}

func (a *App) handlePublicBlocks(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	req.View, req.PageID = domain.ViewPublic, chi.URLParam(r, "id")
	page, err := a.reader.ReadBlocks(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleExport renders a public page as ?format=md (default) or html.
func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		body        string
		contentType string
		err         error
	)
	switch r.URL.Query().Get("format") {
	case "", "md", "markdown":
		body, err = a.exporter.Markdown(r.Context(), id)
		contentType = "text/markdown; charset=utf-8"
	case "html":
		body, err = a.exporter.HTML(r.Context(), id)
		contentType = "text/html; charset=utf-8"
	default:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "format must be md or html"})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
