// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tuzo-service/internal/domain/profile"
	wstypes "tuzo-service/internal/domain/websocket"
	"tuzo-service/internal/metrics"
	"tuzo-service/internal/pkg/jwt"
	"tuzo-service/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// ProfileResolver returns nil, nil for users without a profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error)
}

// Hub owns the set of live connections and fans realtime change events out
// to the clients allowed to see them.
type Hub struct {
	// Registered clients by user ID
	clients map[uuid.UUID]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	broker          realtime.Broker
	handlerRegistry *HandlerRegistry

	verifier TokenVerifier
	profiles ProfileResolver
	logger   *zap.Logger
}

func NewHub(broker realtime.Broker, verifier TokenVerifier, profiles ProfileResolver, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[uuid.UUID]map[*Client]struct{}),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		broker:          broker,
		handlerRegistry: NewHandlerRegistry(),
		verifier:        verifier,
		profiles:        profiles,
		logger:          logger,
	}
}

// Authenticate validates the token and resolves the caller's scope. Only
// users with a business or customer profile may connect.
func (h *Hub) Authenticate(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	p, err := h.profiles.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return nil, ErrNoProfile
	}

	auth := &ClientAuth{UserID: userID, Email: claims.Email, Role: p.Role}
	switch {
	case p.Role == profile.RoleBusinessOwner && p.BusinessID != nil:
		auth.BusinessID = *p.BusinessID
	case p.Role == profile.RoleCustomer && p.CustomerID != nil && p.CustomerBusinessID != nil:
		auth.BusinessID = *p.CustomerBusinessID
		auth.CustomerID = p.CustomerID
	default:
		return nil, ErrNoProfile
	}
	return auth, nil
}

func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage routes msg to a registered handler. handled is false
// when no handler claims the event type.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (handled bool, err error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Register hands a connected client to the running hub.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Run consumes broker events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	sub := h.broker.Subscribe(realtime.AllTopics...)
	defer sub.Close()
	events := sub.C

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev, ok := <-events:
			if !ok {
				h.logger.Warn("realtime subscription closed; live updates stopped")
				events = nil
				continue
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	id := client.auth.UserID
	if h.clients[id] == nil {
		h.clients[id] = make(map[*Client]struct{})
	}
	h.clients[id][client] = struct{}{}
	total := h.totalClients()
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	h.logger.Info("websocket client connected",
		zap.String("user_id", id.String()),
		zap.String("role", string(client.auth.Role)),
		zap.Int("total", total),
	)

	welcome := map[string]interface{}{
		"user_id":     id,
		"role":        client.auth.Role,
		"business_id": client.auth.BusinessID,
	}
	if client.auth.CustomerID != nil {
		welcome["customer_id"] = *client.auth.CustomerID
	}
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, welcome))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.auth.UserID
	clients, ok := h.clients[id]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, id)
	}
	client.Close()
	metrics.WebsocketConnections.Dec()

	h.logger.Info("websocket client disconnected",
		zap.String("user_id", id.String()),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) dispatch(ev realtime.ChangeEvent) {
	msg := messageFor(ev)
	if msg == nil {
		return
	}
	data, err := msg.ToJSON()
	if err != nil {
		h.logger.Warn("failed to marshal change event", zap.Error(err))
		return
	}
	channel := wstypes.ChannelType(ev.Topic)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.clients {
		for client := range clients {
			if client.IsSubscribed(channel) && visible(client.auth, ev) {
				client.sendRaw(data)
			}
		}
	}
}

// visible reports whether a client may see ev. Owners see everything in their
// business; customers only rows about themselves.
func visible(auth ClientAuth, ev realtime.ChangeEvent) bool {
	if auth.Role == profile.RoleCustomer {
		return auth.CustomerID != nil && ev.CustomerID != nil && *ev.CustomerID == *auth.CustomerID
	}
	return ev.BusinessID != nil && *ev.BusinessID == auth.BusinessID
}

var eventTypes = map[realtime.Topic]map[realtime.Op]wstypes.EventType{
	realtime.TopicTransactions: {
		realtime.OpInsert: wstypes.EventTypeTransactionInsert,
	},
	realtime.TopicCustomers: {
		realtime.OpInsert: wstypes.EventTypeCustomerInsert,
		realtime.OpUpdate: wstypes.EventTypeCustomerUpdate,
	},
	realtime.TopicRewards: {
		realtime.OpInsert: wstypes.EventTypeRewardInsert,
		realtime.OpUpdate: wstypes.EventTypeRewardUpdate,
	},
	realtime.TopicNotifications: {
		realtime.OpInsert: wstypes.EventTypeNotification,
		realtime.OpUpdate: wstypes.EventTypeNotificationCount,
	},
}

func messageFor(ev realtime.ChangeEvent) *wstypes.WSMessage {
	typ, ok := eventTypes[ev.Topic][ev.Op]
	if !ok {
		return nil
	}
	msg := wstypes.NewMessage(typ, json.RawMessage(ev.Record))
	msg.Metadata = map[string]interface{}{
		"topic": ev.Topic,
		"op":    ev.Op,
	}
	if !ev.At.IsZero() {
		msg.Timestamp = ev.At
	}
	return msg
}

func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, clients := range h.clients {
		for client := range clients {
			client.Close()
			metrics.WebsocketConnections.Dec()
		}
		delete(h.clients, id)
	}
}
