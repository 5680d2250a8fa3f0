package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/metrics"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/service"
	"timelogger/backend/internal/store/redisstore"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testHub struct {
	hub      *Hub
	server   *httptest.Server
	services Services
}

func setupHub(t *testing.T) *testHub {
	t.Helper()

	mr := miniredis.RunT(t)
	nodes, err := redisstore.Open(redisstore.Options{Addr: mr.Addr(), Prefix: "live-test"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = nodes.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	clk := clock.NewManual(t0)
	timeLoggers := service.NewTimeLoggerService(nodes, clk, zerolog.Nop())
	services := Services{
		TimeLoggers: timeLoggers,
		Users:       service.NewUserService(nodes, timeLoggers, hub, clk, zerolog.Nop()),
		Clock:       clk,
	}

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("user"), services, zerolog.Nop())
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(server.Close)

	return &testHub{hub: hub, server: server, services: services}
}

func (h *testHub) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestNavigateReachesEverySocketOfTheUser(t *testing.T) {
	h := setupHub(t)
	first := h.dial(t, "ada")
	second := h.dial(t, "ada")
	h.dial(t, "bob")
	waitFor(t, "registrations", func() bool {
		return h.hub.ClientCount("ada") == 2 && h.hub.ClientCount("bob") == 1
	})

	h.hub.Navigate(context.Background(), "ada", "logger-1")

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != TypeNavigate || msg.LoggerID != "logger-1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestDisconnectClosesUserSockets(t *testing.T) {
	h := setupHub(t)
	conn := h.dial(t, "ada")
	h.dial(t, "bob")
	waitFor(t, "registrations", func() bool {
		return h.hub.ClientCount("ada") == 1 && h.hub.ClientCount("bob") == 1
	})

	h.hub.Disconnect("ada")

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected a normal close, got %v", err)
	}
	waitFor(t, "ada to be removed", func() bool { return h.hub.ClientCount("ada") == 0 })
	if h.hub.ClientCount("bob") != 1 {
		t.Fatal("other users must stay connected")
	}
}

func TestSnapshotsFollowCommands(t *testing.T) {
	h := setupHub(t)
	ctx := context.Background()
	group := model.DefaultTimerGroup(t0)
	if err := h.services.TimeLoggers.AddTimerGroup(ctx, "ada", "l1", group); err != nil {
		t.Fatalf("AddTimerGroup: %v", err)
	}

	conn := h.dial(t, "ada")
	if err := conn.WriteJSON(ClientMessage{Type: TypeSubscribe, ID: "t", Kind: KindTimers, LoggerID: "l1", GroupID: group.ID}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	initial := readMessage(t, conn)
	if initial.Type != TypeSnapshot || initial.Sub != "t" {
		t.Fatalf("unexpected first message: %+v", initial)
	}

	if err := conn.WriteJSON(ClientMessage{Type: TypeStart, LoggerID: "l1", GroupID: group.ID, TimerID: group.Timers[0].ID}); err != nil {
		t.Fatalf("start: %v", err)
	}

	for {
		msg := readMessage(t, conn)
		raw, _ := json.Marshal(msg.Data)
		var timers []TimerView
		if err := json.Unmarshal(raw, &timers); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if len(timers) == 1 && timers[0].IsRunning {
			break
		}
	}
}

func TestUnknownSubscriptionKindIsReported(t *testing.T) {
	h := setupHub(t)
	conn := h.dial(t, "ada")

	if err := conn.WriteJSON(ClientMessage{Type: TypeSubscribe, ID: "x", Kind: "bogus"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != TypeError || msg.Sub != "x" {
		t.Fatalf("expected an error for the subscription, got %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readMessage(t, conn)
	if msg.Type != TypeError {
		t.Fatalf("expected an error for malformed input, got %+v", msg)
	}
}

func TestSubscriptionsEndWithTheConnection(t *testing.T) {
	h := setupHub(t)
	waitFor(t, "earlier subscriptions to end", func() bool {
		return testutil.ToFloat64(metrics.ActiveSubscriptions) == 0
	})

	conn := h.dial(t, "ada")
	for _, msg := range []ClientMessage{
		{Type: TypeSubscribe, ID: "g", Kind: KindTimerGroups, LoggerID: "l1"},
		{Type: TypeSubscribe, ID: "e", Kind: KindEditMode, LoggerID: "l1"},
		{Type: TypeSubscribe, ID: "p", Kind: KindProfile},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if got := readMessage(t, conn); got.Type != TypeSnapshot {
			t.Fatalf("expected a snapshot, got %+v", got)
		}
	}
	if got := testutil.ToFloat64(metrics.ActiveSubscriptions); got != 3 {
		t.Fatalf("expected 3 open subscriptions, got %v", got)
	}

	if err := conn.WriteJSON(ClientMessage{Type: TypeUnsubscribe, ID: "e"}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	waitFor(t, "unsubscribe", func() bool {
		return testutil.ToFloat64(metrics.ActiveSubscriptions) == 2
	})

	_ = conn.Close()
	waitFor(t, "subscriptions to close", func() bool {
		return testutil.ToFloat64(metrics.ActiveSubscriptions) == 0
	})
}

func TestTimerGroupViewCarriesElapsedNow(t *testing.T) {
	start := t0
	group := model.TimerGroup{
		ID:   "g1",
		Name: "Work",
		Timers: []model.Timer{
			{ID: "a", ElapsedSec: 10},
			{ID: "b", ElapsedSec: 5, IsRunning: true, StartTime: &start},
		},
	}

	view := NewTimerGroupView(group, t0.Add(7*time.Second))
	if view.ElapsedSecNow != 22 {
		t.Fatalf("expected 22s for the group, got %d", view.ElapsedSecNow)
	}
	if view.Timers[1].ElapsedSecNow != 12 {
		t.Fatalf("expected 12s for the running timer, got %d", view.Timers[1].ElapsedSecNow)
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"elapsedSecNow":12`) {
		t.Fatalf("timers must carry elapsedSecNow: %s", raw)
	}

	empty := NewTimerGroupView(model.TimerGroup{ID: "g2"}, t0)
	if empty.Timers == nil {
		t.Fatal("a group without timers must expose an empty list")
	}
}
