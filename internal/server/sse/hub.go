package sse

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan []byte

// Hub verwaltet die Menge der aktiven Clients und sendet Broadcasts an sie
type Hub struct {
	clients map[Client]bool

	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	done       chan struct{}

	mu sync.Mutex
}

// StateChange ist die Nachricht, die bei jeder Zustandsänderung des Kiosks gesendet wird.
// Die Seite lädt daraufhin /api/state neu.
type StateChange struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100),
		register:   make(chan Client),
		unregister: make(chan Client),
		done:       make(chan struct{}),
		clients:    make(map[Client]bool),
	}
}

// Run startet die Verarbeitungsschleife des Hubs bis ctx beendet wird.
// Beim Beenden werden alle Client-Kanäle geschlossen.
func (h *Hub) Run(ctx context.Context) {
	log.Info("SSE Hub started and running")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
			log.Info("SSE Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Infof("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))
			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Kanal voll, Client ist zu langsam
					log.Warn("SSE client channel full or closed, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register registriert einen neuen Client am Hub. Nach dem Beenden des Hubs wird
// der Kanal sofort geschlossen.
func (h *Hub) Register(client Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client)
	}
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount liefert die Anzahl verbundener Clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sendet eine Nachricht an alle registrierten Clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// NotifyStateChanged sendet die neue Zustandsversion an alle Clients.
func (h *Hub) NotifyStateChanged(version uint64) {
	data, err := json.Marshal(StateChange{Type: "state", Version: version})
	if err != nil {
		log.Errorf("Failed to marshal state change for SSE: %v", err)
		return
	}
	h.Broadcast(data)
}
