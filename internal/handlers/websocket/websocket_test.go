package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tuzo-service/internal/domain/profile"
	wstypes "tuzo-service/internal/domain/websocket"
	"tuzo-service/internal/pkg/jwt"
	"tuzo-service/internal/realtime"
	ws "tuzo-service/internal/websocket"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (*jwt.Claims, error) {
	sub, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{Subject: sub}}, nil
}

type stubProfiles map[uuid.UUID]*profile.UserProfile

func (s stubProfiles) Resolve(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error) {
	return s[id], nil
}

type fixture struct {
	url    string
	broker *realtime.MemoryBroker
	biz    uuid.UUID
	cust   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	owner, customer, stranger := uuid.New(), uuid.New(), uuid.New()
	biz, cust := uuid.New(), uuid.New()

	broker := realtime.NewMemoryBroker()
	hub := ws.NewHub(broker,
		stubVerifier{"owner": owner.String(), "customer": customer.String(), "stranger": stranger.String()},
		stubProfiles{
			owner:    {ID: owner, Role: profile.RoleBusinessOwner, BusinessID: &biz},
			customer: {ID: customer, Role: profile.RoleCustomer, CustomerID: &cust, CustomerBusinessID: &biz},
		},
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub, []string{"*"}, zap.NewNop()).HandleConnection)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
		broker.Close()
	})

	return &fixture{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		broker: broker,
		biz:    biz,
		cust:   cust,
	}
}

func (f *fixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if msg := read(t, conn); msg.Type != wstypes.EventTypeConnected {
		t.Fatalf("expected connected message, got %s", msg.Type)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *wstypes.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		t.Fatalf("bad message: %v", err)
	}
	return msg
}

func (f *fixture) publish(t *testing.T, topic realtime.Topic, op realtime.Op, businessID, customerID *uuid.UUID) {
	t.Helper()
	ev, err := realtime.NewEvent(topic, op, businessID, customerID, map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.broker.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
}

func TestConnectionRejected(t *testing.T) {
	f := newFixture(t)

	for token, want := range map[string]int{"": http.StatusUnauthorized, "nope": http.StatusUnauthorized, "stranger": http.StatusForbidden} {
		_, resp, err := websocket.DefaultDialer.Dial(f.url+"?token="+token, nil)
		if err == nil {
			t.Fatalf("token %q: expected dial to fail", token)
		}
		if resp == nil || resp.StatusCode != want {
			t.Fatalf("token %q: expected %d, got %+v", token, want, resp)
		}
	}
}

func TestOwnerReceivesBusinessEvents(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "owner")

	other := uuid.New()
	f.publish(t, realtime.TopicTransactions, realtime.OpInsert, &other, nil)
	f.publish(t, realtime.TopicTransactions, realtime.OpInsert, &f.biz, &f.cust)

	msg := read(t, conn)
	if msg.Type != wstypes.EventTypeTransactionInsert {
		t.Fatalf("expected transactions:insert, got %s", msg.Type)
	}
}

func TestCustomerReceivesOwnEvents(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "customer")

	someone := uuid.New()
	f.publish(t, realtime.TopicCustomers, realtime.OpUpdate, &f.biz, &someone)
	f.publish(t, realtime.TopicNotifications, realtime.OpInsert, &f.biz, nil)
	f.publish(t, realtime.TopicCustomers, realtime.OpUpdate, &f.biz, &f.cust)

	msg := read(t, conn)
	if msg.Type != wstypes.EventTypeCustomerUpdate {
		t.Fatalf("expected customers:update, got %s", msg.Type)
	}
}

func TestPingPong(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "owner")

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	if msg := read(t, conn); msg.Type != wstypes.EventTypePong {
		t.Fatalf("expected pong, got %s", msg.Type)
	}
}
