package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/metrics"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/service"
	"timelogger/backend/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var errUnknownKind = errors.New("unknown subscription kind")

// Services are the operations a live client can reach.
type Services struct {
	TimeLoggers *service.TimeLoggerService
	Users       *service.UserService
	Clock       clock.Clock
}

type closer interface {
	Close() error
}

// Client is one WebSocket connection. It owns the subscriptions opened over
// it and closes them when the connection ends.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	services Services
	send     chan []byte
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu   sync.Mutex
	subs map[string]closer
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, services Services, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		services: services,
		send:     make(chan []byte, sendBuffer),
		logger:   logger.With().Str("user_id", userID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]closer),
	}
}

func (c *Client) shutdown() {
	c.once.Do(c.cancel)
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Live connection closed unexpectedly")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail("", "malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case TypeSubscribe:
		if err := c.subscribe(msg); err != nil {
			c.fail(msg.ID, err.Error())
		}
	case TypeUnsubscribe:
		c.unsubscribe(msg.ID)
	default:
		if err := c.command(msg); err != nil {
			c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Live command failed")
			c.fail("", err.Error())
		}
	}
}

// command runs a mutation without waiting on any subscriber. Results reach
// the client through its subscriptions.
func (c *Client) command(msg ClientMessage) error {
	ctx := c.ctx
	tl := c.services.TimeLoggers
	switch msg.Type {
	case TypeStart:
		return tl.StartTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.TimerID)
	case TypeStop:
		return tl.StopTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.TimerID)
	case TypeReset:
		return tl.ResetTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.TimerID)
	case TypeSetEditMode:
		return tl.UpdateEditMode(ctx, c.userID, msg.LoggerID, msg.Value)
	case TypeAddTimerGroup:
		group := model.DefaultTimerGroup(c.services.Clock.Now())
		if msg.Name != "" {
			group.Name = msg.Name
		}
		return tl.AddTimerGroup(ctx, c.userID, msg.LoggerID, group)
	case TypeAddTimer:
		timer := model.DefaultTimer(c.services.Clock.Now())
		if msg.Name != "" {
			timer.Name = msg.Name
		}
		return tl.AddTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, timer)
	case TypeRenameTimerGroup:
		return tl.RenameTimerGroup(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.Name)
	case TypeRenameTimer:
		return tl.RenameTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.TimerID, msg.Name)
	case TypeDeleteTimerGroup:
		return tl.DeleteTimerGroup(ctx, c.userID, msg.LoggerID, msg.GroupID)
	case TypeDeleteTimer:
		return tl.DeleteTimer(ctx, c.userID, msg.LoggerID, msg.GroupID, msg.TimerID)
	default:
		return errors.New("unknown message type " + msg.Type)
	}
}

func (c *Client) subscribe(msg ClientMessage) error {
	if msg.ID == "" {
		return errors.New("subscription id is required")
	}
	c.unsubscribe(msg.ID)

	tl := c.services.TimeLoggers
	switch msg.Kind {
	case KindTimerGroups:
		return open(c, msg, func(ctx context.Context) (*store.Feed[[]model.TimerGroup], error) {
			return tl.TimerGroups(ctx, c.userID, msg.LoggerID)
		}, func(groups []model.TimerGroup, now time.Time) any {
			return NewTimerGroupViews(groups, now)
		})
	case KindTimerGroup:
		return open(c, msg, func(ctx context.Context) (*store.Feed[*model.TimerGroup], error) {
			return tl.TimerGroup(ctx, c.userID, msg.LoggerID, msg.GroupID)
		}, func(group *model.TimerGroup, now time.Time) any {
			if group == nil {
				return nil
			}
			return NewTimerGroupView(*group, now)
		})
	case KindTimers:
		return open(c, msg, func(ctx context.Context) (*store.Feed[[]model.Timer], error) {
			return tl.Timers(ctx, c.userID, msg.LoggerID, msg.GroupID)
		}, func(timers []model.Timer, now time.Time) any {
			return NewTimerViews(timers, now)
		})
	case KindEditMode:
		return open(c, msg, func(ctx context.Context) (*store.Feed[*bool], error) {
			return tl.EditMode(ctx, c.userID, msg.LoggerID)
		}, func(editMode *bool, _ time.Time) any {
			return editMode
		})
	case KindProfile:
		return open(c, msg, func(ctx context.Context) (*store.Feed[*model.UserDetail], error) {
			return c.services.Users.Profile(ctx, c.userID)
		}, func(detail *model.UserDetail, _ time.Time) any {
			return detail
		})
	default:
		return errUnknownKind
	}
}

// open starts a feed bound to the client's lifetime and forwards every
// snapshot as a message tagged with the subscription id.
func open[T any](
	c *Client,
	msg ClientMessage,
	start func(ctx context.Context) (*store.Feed[T], error),
	view func(T, time.Time) any,
) error {
	feed, err := start(c.ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[msg.ID] = feed
	c.mu.Unlock()

	go func() {
		for value := range feed.C {
			if !c.push(ServerMessage{Type: TypeSnapshot, Sub: msg.ID, Data: view(value, c.services.Clock.Now())}) {
				return
			}
			metrics.SnapshotsPushed.WithLabelValues(msg.Kind).Inc()
		}
	}()
	return nil
}

func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		_ = sub.Close()
	}
}

func (c *Client) push(msg ServerMessage) bool {
	message, err := encode(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("sub", msg.Sub).Msg("Failed to encode live message")
		return true
	}
	select {
	case c.send <- message:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) fail(sub, reason string) {
	c.push(ServerMessage{Type: TypeError, Sub: sub, Message: reason})
}
