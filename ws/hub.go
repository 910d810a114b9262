package ws

import (
	"context"
	"sync"

	"gigflow_backend/internal/logger"
)

// Message - кадр, который уходит клиенту
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub - реестр user id -> живые соединения. У пользователя может быть
// несколько вкладок, каждая - отдельный Client.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	sendBuffer int
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
	}
}

// Run обслуживает регистрацию клиентов до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	log := logger.Component("ws_hub")
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			h.mu.Unlock()
			log.Debug("client registered", "user_id", client.UserID, "connections", len(conns))

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for userID, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			log.Info("hub stopped")
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	close(client.send)
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	logger.Debug("client unregistered", "user_id", client.UserID)
}

// Send ставит событие в очередь всех соединений пользователя.
// false - у пользователя нет соединений (это не ошибка).
func (h *Hub) Send(userID, event string, payload any) bool {
	msg := Message{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for client := range h.clients[userID] {
		if h.enqueue(client, msg) {
			delivered = true
		}
	}
	return delivered
}

// enqueue не блокируется: медленный клиент отключается
func (h *Hub) enqueue(client *Client, msg Message) bool {
	select {
	case client.send <- msg:
		return true
	default:
		logger.Warn("client send buffer full, disconnecting", "user_id", client.UserID)
		go h.Unregister(client)
		return false
	}
}

// reply отправляет кадр одному клиенту, если он еще зарегистрирован
func (h *Hub) reply(client *Client, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.UserID][client]; !ok {
		return false
	}
	return h.enqueue(client, msg)
}

// Register добавляет клиента; после остановки хаба ничего не делает
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ConnectionCount - число соединений пользователя
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// IsUserConnected проверяет, есть ли у пользователя хотя бы одно соединение
func (h *Hub) IsUserConnected(userID string) bool {
	return h.ConnectionCount(userID) > 0
}
