package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/kozaktomas/frontdesk/internal/recognition"
)

// GreetingHandler controls the background greeting loop.
type GreetingHandler struct {
	engine Engine
	// base outlives the request that starts the loop.
	base context.Context
}

// NewGreetingHandler creates a new greeting handler. base bounds the loop's lifetime.
func NewGreetingHandler(base context.Context, e Engine) *GreetingHandler {
	return &GreetingHandler{engine: e, base: base}
}

// Status reports whether the loop runs and its recent events.
func (h *GreetingHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"running": h.engine.GreetingRunning(),
		"events":  h.engine.GreetingEvents(),
	})
}

// Start starts the loop.
func (h *GreetingHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.engine.StartGreeting(h.base)
	if err != nil && !errors.Is(err, recognition.ErrAlreadyRunning) {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"running": true})
}

// Stop stops the loop.
func (h *GreetingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.StopGreeting()
	respondJSON(w, http.StatusOK, map[string]bool{"running": false})
}
