package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/frontdesk/internal/constants"
)

// IdentitiesHandler reports on enrolled identities.
type IdentitiesHandler struct {
	engine Engine
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(e Engine) *IdentitiesHandler {
	return &IdentitiesHandler{engine: e}
}

// List returns enrolled identities with their sample counts.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.engine.Identities()
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": ids,
		"count":      len(ids),
	})
}

// Similar returns the identities whose centroids are closest to {id}.
func (h *IdentitiesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := constants.DefaultSimilarLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	neighbors, err := h.engine.Similar(id, limit)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": id,
		"similar":     neighbors,
	})
}
