package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/frontdesk/internal/recognition"
)

const maxGreetingEvents = 50

// GreetingEvent is one greeting loop event.
type GreetingEvent struct {
	Kind       string    `json:"kind"` // "greet" or "unknown"
	IdentityID string    `json:"identity_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Score      float64   `json:"score,omitempty"`
	At         time.Time `json:"at"`
}

// Greeter records greeting loop events for the desk front end.
type Greeter struct {
	log *slog.Logger

	mu     sync.Mutex
	events []GreetingEvent
}

// NewGreeter creates an empty greeter.
func NewGreeter(logger *slog.Logger) *Greeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Greeter{log: logger}
}

// Greet implements recognition.GreetingHandler.
func (g *Greeter) Greet(ctx context.Context, gr recognition.Greeting) {
	g.log.Info("greeting", "identity", gr.IdentityID, "name", gr.Name, "score", gr.Score)
	g.add(GreetingEvent{Kind: "greet", IdentityID: gr.IdentityID, Name: gr.Name, Score: gr.Score, At: time.Now()})
}

// PromptUnknown implements recognition.GreetingHandler.
func (g *Greeter) PromptUnknown(ctx context.Context) {
	g.log.Info("unknown visitor prompt")
	g.add(GreetingEvent{Kind: "unknown", At: time.Now()})
}

func (g *Greeter) add(ev GreetingEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, ev)
	if len(g.events) > maxGreetingEvents {
		g.events = g.events[len(g.events)-maxGreetingEvents:]
	}
}

// Events returns recorded events, oldest first.
func (g *Greeter) Events() []GreetingEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GreetingEvent(nil), g.events...)
}
