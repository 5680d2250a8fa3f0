package live

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"timelogger/backend/internal/metrics"
)

type delivery struct {
	userID  string
	message []byte
}

// Hub tracks the live connections of every signed-in user.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	disconnect chan string
	done       chan struct{}
	mutex      sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 128),
		unregister: make(chan *Client, 128),
		deliver:    make(chan delivery, 1024),
		disconnect: make(chan string, 128),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "live").Logger(),
	}
}

// Run serves registrations and deliveries until ctx ends, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for userID, set := range h.clients {
				for client := range set {
					client.shutdown()
				}
				delete(h.clients, userID)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.mutex.Unlock()
			metrics.LiveClients.Inc()
			h.logger.Debug().Str("user_id", client.userID).Int("user_clients", len(set)).Msg("Live client connected")

		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.Debug().Str("user_id", client.userID).Msg("Live client disconnected")
			}

		case d := <-h.deliver:
			h.mutex.RLock()
			targets := make([]*Client, 0, len(h.clients[d.userID]))
			for client := range h.clients[d.userID] {
				targets = append(targets, client)
			}
			h.mutex.RUnlock()

			for _, client := range targets {
				select {
				case client.send <- d.message:
				default:
					h.logger.Warn().Str("user_id", d.userID).Msg("Live client too slow, dropping connection")
					h.remove(client)
				}
			}

		case userID := <-h.disconnect:
			h.mutex.RLock()
			targets := make([]*Client, 0, len(h.clients[userID]))
			for client := range h.clients[userID] {
				targets = append(targets, client)
			}
			h.mutex.RUnlock()
			for _, client := range targets {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mutex.Lock()
	set, ok := h.clients[client.userID]
	if ok {
		_, ok = set[client]
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mutex.Unlock()

	client.shutdown()
	if ok {
		metrics.LiveClients.Dec()
	}
	return ok
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.shutdown()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Navigate tells every open session of the user to show a time logger.
func (h *Hub) Navigate(_ context.Context, userID, loggerID string) {
	message, err := encode(ServerMessage{Type: TypeNavigate, LoggerID: loggerID})
	if err != nil {
		return
	}
	select {
	case h.deliver <- delivery{userID: userID, message: message}:
	default:
		h.logger.Warn().Str("user_id", userID).Msg("Navigate dropped, buffer full")
	}
}

// Disconnect closes every open session of the user.
func (h *Hub) Disconnect(userID string) {
	select {
	case h.disconnect <- userID:
	case <-h.done:
	}
}

func (h *Hub) ClientCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}
