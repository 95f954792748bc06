// Package bridge hosts the browser playback runtime. A player page loads the
// Web Playback SDK and talks to the Hub over a websocket; the Hub exposes that
// page as a player.Runtime to the server side.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spotyfusion/internal/player"
)

const (
	pollInterval          = 100 * time.Millisecond
	defaultPingInterval   = 30 * time.Second
	defaultCommandTimeout = 10 * time.Second
	writeTimeout          = 5 * time.Second
)

var (
	ErrNoPeer        = errors.New("no player page connected")
	ErrPeerGone      = errors.New("player page disconnected")
	ErrCommandFailed = errors.New("player command failed")
)

// Message types exchanged with the player page.
const (
	TypeSDKReady     = "sdk_ready"
	TypeEvent        = "event"
	TypeResult       = "result"
	TypeTokenRequest = "token_request"
	TypeToken        = "token"
	TypeCreate       = "create"
	TypeConnect      = "connect"
	TypeDisconnect   = "disconnect"
	TypePause        = "pause"
	TypeActivate     = "activate"
)

// Message is the single envelope used in both directions.
type Message struct {
	Type    string               `json:"type"`
	ID      string               `json:"id,omitempty"`
	Device  string               `json:"device,omitempty"`
	Name    string               `json:"name,omitempty"`
	Volume  float64              `json:"volume,omitempty"`
	Event   player.Event         `json:"event,omitempty"`
	Payload *player.EventPayload `json:"payload,omitempty"`
	OK      bool                 `json:"ok,omitempty"`
	Error   string               `json:"error,omitempty"`
	Token   string               `json:"token,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks the single connected player page and the devices created on it.
type Hub struct {
	logger         *zap.Logger
	pingInterval   time.Duration
	commandTimeout time.Duration

	mu      sync.Mutex
	peer    *peer
	devices map[string]*device
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:         logger.Named("bridge"),
		pingInterval:   defaultPingInterval,
		commandTimeout: defaultCommandTimeout,
		devices:        make(map[string]*device),
	}
}

// WithCommandTimeout bounds how long a command waits for the page to answer.
func (h *Hub) WithCommandTimeout(d time.Duration) *Hub {
	h.commandTimeout = d
	return h
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  chan struct{}

	mu       sync.Mutex
	sdkReady bool
	pending  map[string]chan Message
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		conn:    conn,
		closed:  make(chan struct{}),
		pending: make(map[string]chan Message),
	}
}

func (p *peer) send(msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.closed:
		return ErrPeerGone
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.PingMessage, nil)
}

func (p *peer) isReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sdkReady
}

func (p *peer) track(id string) chan Message {
	ch := make(chan Message, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *peer) untrack(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *peer) deliver(msg Message) bool {
	p.mu.Lock()
	ch, ok := p.pending[msg.ID]
	delete(p.pending, msg.ID)
	p.mu.Unlock()
	if ok {
		ch <- msg
	}
	return ok
}

// HandleWebSocket serves the player page connection. A newer page replaces
// the previous one.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	p := newPeer(conn)
	h.attach(p)
	h.logger.Info("Player page connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go h.keepAlive(p, done)

	h.readLoop(p)
	close(done)
	h.detach(p)
	h.logger.Info("Player page disconnected", zap.String("remote", r.RemoteAddr))
}

func (h *Hub) attach(p *peer) {
	h.mu.Lock()
	old := h.peer
	h.peer = p
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("Replacing previous player page")
		_ = old.conn.Close()
	}
}

// detach fails pending commands and marks every device of p as not ready.
func (h *Hub) detach(p *peer) {
	p.writeMu.Lock()
	close(p.closed)
	p.writeMu.Unlock()
	_ = p.conn.Close()

	h.mu.Lock()
	if h.peer == p {
		h.peer = nil
	}
	var lost []*device
	for id, d := range h.devices {
		if d.peer == p {
			lost = append(lost, d)
			delete(h.devices, id)
		}
	}
	h.mu.Unlock()

	for _, d := range lost {
		d.dispatch(player.EventNotReady, player.EventPayload{DeviceID: d.id})
	}
}

func (h *Hub) keepAlive(p *peer, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				h.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) readLoop(p *peer) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Player page read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Ignoring malformed message", zap.Error(err))
			continue
		}
		h.handle(p, msg)
	}
}

func (h *Hub) handle(p *peer, msg Message) {
	switch msg.Type {
	case TypeSDKReady:
		p.mu.Lock()
		p.sdkReady = true
		p.mu.Unlock()
		h.logger.Debug("Playback SDK loaded")

	case TypeResult:
		if !p.deliver(msg) {
			h.logger.Debug("Result for unknown request", zap.String("id", msg.ID))
		}

	case TypeEvent:
		d := h.lookup(msg.Device)
		if d == nil {
			h.logger.Debug("Event for unknown device",
				zap.String("device", msg.Device),
				zap.String("event", string(msg.Event)))
			return
		}
		payload := player.EventPayload{}
		if msg.Payload != nil {
			payload = *msg.Payload
		}
		d.dispatch(msg.Event, payload)

	case TypeTokenRequest:
		d := h.lookup(msg.Device)
		if d == nil || d.opts.Token == nil {
			_ = p.send(Message{Type: TypeToken, ID: msg.ID, Device: msg.Device, Error: "unknown device"})
			return
		}
		go d.answerToken(msg.ID)

	default:
		h.logger.Debug("Ignoring message", zap.String("type", msg.Type))
	}
}

func (h *Hub) lookup(id string) *device {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.devices[id]
}

func (h *Hub) current() *peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer
}

// Connected reports whether a player page with a loaded SDK is attached.
func (h *Hub) Connected() bool {
	p := h.current()
	return p != nil && p.isReady()
}

// WaitAvailable blocks until a player page has loaded the SDK.
func (h *Hub) WaitAvailable(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if h.Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoPeer, ctx.Err())
		case <-ticker.C:
		}
	}
}

// NewDevice asks the current page to construct a player.
func (h *Hub) NewDevice(ctx context.Context, opts player.DeviceOptions) (player.Device, error) {
	p := h.current()
	if p == nil || !p.isReady() {
		return nil, ErrNoPeer
	}

	d := &device{
		id:       uuid.NewString(),
		hub:      h,
		peer:     p,
		opts:     opts,
		handlers: make(map[player.Event][]player.Handler),
	}

	h.mu.Lock()
	h.devices[d.id] = d
	h.mu.Unlock()

	if err := p.send(Message{Type: TypeCreate, Device: d.id, Name: opts.Name, Volume: opts.Volume}); err != nil {
		h.forget(d.id)
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	h.logger.Debug("Device created", zap.String("device", d.id), zap.String("name", opts.Name))
	return d, nil
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	delete(h.devices, id)
	h.mu.Unlock()
}

// device is the server-side handle of one SDK player living in the page.
type device struct {
	id   string
	hub  *Hub
	peer *peer
	opts player.DeviceOptions

	mu       sync.Mutex
	handlers map[player.Event][]player.Handler
}

func (d *device) On(event player.Event, h player.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], h)
}

func (d *device) dispatch(event player.Event, payload player.EventPayload) {
	d.mu.Lock()
	handlers := append([]player.Handler(nil), d.handlers[event]...)
	d.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (d *device) answerToken(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.hub.commandTimeout)
	defer cancel()

	reply := Message{Type: TypeToken, ID: requestID, Device: d.id}
	token, err := d.opts.Token(ctx)
	if err != nil {
		d.hub.logger.Warn("Token request failed", zap.String("device", d.id), zap.Error(err))
		reply.Error = err.Error()
	} else {
		reply.Token = token
	}
	if err := d.peer.send(reply); err != nil {
		d.hub.logger.Debug("Failed to send token", zap.Error(err))
	}
}

// request sends msg and waits for the matching result.
func (d *device) request(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	msg.Device = d.id

	ch := d.peer.track(msg.ID)
	defer d.peer.untrack(msg.ID)

	if err := d.peer.send(msg); err != nil {
		return Message{}, err
	}

	timer := time.NewTimer(d.hub.commandTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-d.peer.closed:
		return Message{}, ErrPeerGone
	case <-timer.C:
		return Message{}, fmt.Errorf("%s: %w", msg.Type, context.DeadlineExceeded)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (d *device) command(ctx context.Context, msg Message) error {
	resp, err := d.request(ctx, msg)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s %s", ErrCommandFailed, msg.Type, resp.Error)
	}
	return nil
}

func (d *device) Connect(ctx context.Context) (bool, error) {
	resp, err := d.request(ctx, Message{Type: TypeConnect})
	if err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, fmt.Errorf("%w: %s", ErrCommandFailed, resp.Error)
	}
	return resp.OK, nil
}

func (d *device) Disconnect() {
	d.hub.forget(d.id)
	if err := d.peer.send(Message{Type: TypeDisconnect, Device: d.id}); err != nil {
		d.hub.logger.Debug("Disconnect not delivered", zap.String("device", d.id), zap.Error(err))
	}
}

func (d *device) Pause(ctx context.Context) error {
	return d.command(ctx, Message{Type: TypePause})
}

func (d *device) Activate(ctx context.Context) error {
	return d.command(ctx, Message{Type: TypeActivate})
}

var (
	_ player.Runtime = (*Hub)(nil)
	_ player.Device  = (*device)(nil)
)
