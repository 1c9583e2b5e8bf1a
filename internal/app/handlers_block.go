package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

// ── Blocks ────────────────────────────────────────────────

type saveBlocksRequest struct {
	Blocks []domain.Block `json:"blocks"`
}

type saveBlocksResponse struct {
	Blocks []domain.Block `json:"blocks"`
}

type createBlockRequest struct {
	AfterBlockID    *string          `json:"afterBlockId"`
	Type            domain.BlockType `json:"type"`
	Content         json.RawMessage  `json:"content"`
	BackgroundColor *domain.Color    `json:"backgroundColor"`
}

// updateBlockRequest keeps backgroundColor raw so an explicit null can be
// told apart from an absent field.
type updateBlockRequest struct {
	Type            *domain.BlockType `json:"type"`
	Text            *string           `json:"text"`
	Checked         *bool             `json:"checked"`
	Content         json.RawMessage   `json:"content"`
	BackgroundColor json.RawMessage   `json:"backgroundColor"`
}

type formatBlockRequest struct {
	Action service.FormatAction `json:"action"`
	Mark   domain.MarkType      `json:"mark"`
	Start  int                  `json:"start"`
	End    int                  `json:"end"`
}

// handleReadBlocks serves one window of the owner's view. nextCursor is the
// order of the last stored block in the window, taken before hidden
// references are filtered out, so a filtered page can be shorter than limit.
func (a *App) handleReadBlocks(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	req.View, req.OwnerID, req.PageID = domain.ViewOwner, owner(r), chi.URLParam(r, "id")
	page, err := a.reader.ReadBlocks(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleSaveBlocks replaces the page's blocks with the posted snapshot.
func (a *App) handleSaveBlocks(w http.ResponseWriter, r *http.Request) {
	var req saveBlocksRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Blocks == nil {
		req.Blocks = []domain.Block{}
	}
	saved, err := a.sync.Save(r.Context(), owner(r), chi.URLParam(r, "id"), req.Blocks)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if saved == nil {
		saved = []domain.Block{}
	}
	writeJSON(w, http.StatusOK, saveBlocksResponse{Blocks: saved})
}

func (a *App) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	content, err := domain.DecodeContent(req.Type, req.Content)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.blocks.CreateBlock(r.Context(), owner(r), chi.URLParam(r, "id"), service.NewBlock{
		AfterBlockID:    req.AfterBlockID,
		Type:            req.Type,
		Content:         content,
		BackgroundColor: req.BackgroundColor,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *App) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	b, err := a.blocks.GetBlock(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *App) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req updateBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	patch, err := a.blockPatch(r, id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.blocks.UpdateBlock(r.Context(), owner(r), id, patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// blockPatch turns the wire form into a service patch. Content is decoded
// against the requested type, or the block's current type when the patch
// does not convert it.
func (a *App) blockPatch(r *http.Request, id string, req updateBlockRequest) (service.BlockPatch, error) {
	patch := service.BlockPatch{Type: req.Type, Text: req.Text, Checked: req.Checked}

	if len(req.Content) > 0 && string(req.Content) != "null" {
		var t domain.BlockType
		if req.Type != nil {
			t = *req.Type
		} else {
			current, err := a.blocks.GetBlock(r.Context(), owner(r), id)
			if err != nil {
				return patch, err
			}
			t = current.Type
		}
		content, err := domain.DecodeContent(t, req.Content)
		if err != nil {
			return patch, err
		}
		patch.Content = content
	}

	switch {
	case len(req.BackgroundColor) == 0:
	case string(req.BackgroundColor) == "null":
		patch.ClearBackground = true
	default:
		var c domain.Color
		if err := json.Unmarshal(req.BackgroundColor, &c); err != nil {
			return patch, fmt.Errorf("%w: backgroundColor must be a string", domain.ErrInvalidReference)
		}
		patch.BackgroundColor = &c
	}
	return patch, nil
}

func (a *App) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := a.blocks.DeleteBlock(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleFormatBlock(w http.ResponseWriter, r *http.Request) {
	var req formatBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.blocks.FormatBlock(r.Context(), owner(r), chi.URLParam(r, "id"), service.FormatRequest{
		Action: req.Action,
		Mark:   req.Mark,
		Start:  req.Start,
		End:    req.End,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ── Uploads ───────────────────────────────────────────────

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.uploads.MaxBytes+(1<<20))
	f, _, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			a.writeError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrValidation, a.uploads.MaxBytes))
			return
		}
		a.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidReference))
		return
	}
	defer f.Close()

	obj, err := a.uploads.Save(r.Context(), owner(r), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Debug().Str("owner", owner(r)).Str("url", obj.URL).Msg("image uploaded")
	writeJSON(w, http.StatusCreated, obj)
}
