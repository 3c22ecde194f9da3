package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/rs/zerolog"
)

// StatsData counts hook executions since the server started.
type StatsData struct {
	Total     int                       `json:"total"`
	ByEvent   map[string]int            `json:"by_event"`
	ByOutcome map[string]map[string]int `json:"by_outcome"`
	LastEvent *time.Time                `json:"last_event,omitempty"`
}

// Handler turns plugin hook events into dashboard messages.
type Handler struct {
	server *Server
	logger zerolog.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through server.
func NewHandler(server *Server, logger zerolog.Logger) *Handler {
	return &Handler{
		server: server,
		logger: logger,
		stats: StatsData{
			ByEvent:   make(map[string]int),
			ByOutcome: make(map[string]map[string]int),
		},
	}
}

// OnHookEvent records ev and broadcasts it. It has the plugin's OnEvent
// signature.
func (h *Handler) OnHookEvent(ev plugin.HookEvent) {
	h.mu.Lock()
	h.stats.Total++
	h.stats.ByEvent[ev.Event]++
	if h.stats.ByOutcome[ev.Event] == nil {
		h.stats.ByOutcome[ev.Event] = make(map[string]int)
	}
	h.stats.ByOutcome[ev.Event][ev.Outcome]++
	t := ev.Time
	h.stats.LastEvent = &t
	h.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hook event")
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeHookEvent,
		Timestamp: time.Now(),
		Data:      data,
	})
	h.broadcastStats()
}

// Stats returns a copy of the current statistics.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := StatsData{
		Total:     h.stats.Total,
		ByEvent:   make(map[string]int, len(h.stats.ByEvent)),
		ByOutcome: make(map[string]map[string]int, len(h.stats.ByOutcome)),
		LastEvent: h.stats.LastEvent,
	}
	for k, v := range h.stats.ByEvent {
		out.ByEvent[k] = v
	}
	for event, outcomes := range h.stats.ByOutcome {
		m := make(map[string]int, len(outcomes))
		for k, v := range outcomes {
			m[k] = v
		}
		out.ByOutcome[event] = m
	}
	return out
}

func (h *Handler) broadcastStats() {
	data, err := json.Marshal(h.Stats())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal stats")
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      data,
	})
}
