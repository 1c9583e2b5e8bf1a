package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"blocknotes/internal/domain"
)

// ── Pages ─────────────────────────────────────────────────

type createPageRequest struct {
	Title        string  `json:"title"`
	ParentPageID *string `json:"parentPageId"`
}

type renamePageRequest struct {
	Title string `json:"title"`
}

type movePageRequest struct {
	ParentPageID *string `json:"parentPageId"`
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

type visibilityResponse struct {
	IsPublic bool `json:"isPublic"`
}

type importRequest struct {
	SourcePageID string `json:"sourcePageId"`
}

type assistantRequest struct {
	Instruction string `json:"instruction"`
}

func owner(r *http.Request) string {
	o, _ := OwnerFrom(r.Context())
	return o
}

func (a *App) handleListRootPages(w http.ResponseWriter, r *http.Request) {
	pages, err := a.pages.ListRootPages(r.Context(), owner(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if pages == nil {
		pages = []domain.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (a *App) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.pages.CreatePage(r.Context(), owner(r), req.Title, req.ParentPageID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleGetPage returns the page with its first window of blocks.
func (a *App) handleGetPage(w http.ResponseWriter, r *http.Request) {
	p, err := a.pages.GetPage(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	read, err := readRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	read.View, read.OwnerID, read.PageID = domain.ViewOwner, owner(r), p.ID
	blocks, err := a.reader.ReadBlocks(r.Context(), read)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PageState{Page: *p, Blocks: *blocks})
}

func (a *App) handleRenamePage(w http.ResponseWriter, r *http.Request) {
	var req renamePageRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.pages.RenamePage(r.Context(), owner(r), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	res, err := a.tree.DeletePage(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleListChildPages(w http.ResponseWriter, r *http.Request) {
	pages, err := a.pages.ListChildPages(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if pages == nil {
		pages = []domain.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (a *App) handleMovePage(w http.ResponseWriter, r *http.Request) {
	var req movePageRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.pages.MovePage(r.Context(), owner(r), chi.URLParam(r, "id"), req.ParentPageID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.IsPublic == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "isPublic is required"})
		return
	}
	on, err := a.pages.SetVisibility(r.Context(), owner(r), chi.URLParam(r, "id"), *req.IsPublic)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visibilityResponse{IsPublic: on})
}

func (a *App) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.importer.Import(r.Context(), owner(r), chi.URLParam(r, "id"), req.SourcePageID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.assistant.Run(r.Context(), owner(r), chi.URLParam(r, "id"), req.Instruction)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
