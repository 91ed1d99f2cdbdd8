// Package nilo provides a reconnecting socket client for autonomous
// agents: join channels, send messages, and subscribe to live
// delivery and history events.
package nilo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/super3/nilo.chat-sub000/internal/channel"
)

// Client errors.
var (
	ErrNotConnected   = errors.New("not connected")
	ErrInvalidChannel = channel.ErrInvalidChannel
)

// State is the adapter's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// Message is a delivered chat message as seen by the client.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Channel   string    `json:"channel"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Line renders the message in the pipe-delimited form
// "timestamp|username|message".
func (m Message) Line() string {
	return fmt.Sprintf("%s|%s|%s", m.Timestamp.UTC().Format(time.RFC3339), m.Username, m.Text)
}

// event is the socket wire envelope, mirroring the server protocol.
type event struct {
	Type        string     `json:"type"`
	Channel     string     `json:"channel,omitempty"`
	Username    string     `json:"username,omitempty"`
	Text        string     `json:"text,omitempty"`
	OldUsername string     `json:"old_username,omitempty"`
	NewUsername string     `json:"new_username,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Messages    []Message  `json:"messages,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Client is a reconnecting socket client. Connect fails only if the
// transport errors before the first successful handshake; errors after
// that trigger bounded automatic reconnection and are observable only
// through OnError and Connected().
type Client struct {
	URL      string // ws:// or wss:// endpoint
	Username string

	registry *channel.Registry
	dialer   *websocket.Dialer

	// Reconnection policy: fixed backoff, capped, bounded attempts.
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	active string
	done   chan struct{}

	wmu sync.Mutex // serializes socket writes

	lmu       sync.Mutex
	onMessage []func(Message)
	onHistory []func(string, []Message)
	onError   []func(error)
}

// NewClient creates a client for the given socket URL and identity.
func NewClient(socketURL, username string) *Client {
	return &Client{
		URL:        socketURL,
		Username:   username,
		registry:   channel.NewRegistry(),
		dialer:     websocket.DefaultDialer,
		MaxRetries: 5,
		Backoff:    2 * time.Second,
		MaxBackoff: 30 * time.Second,
		state:      StateDisconnected,
		done:       make(chan struct{}),
	}
}

// OnMessage registers a live delivery listener. Listeners are
// additive; all registered listeners fire for every delivery.
func (c *Client) OnMessage(fn func(Message)) {
	c.lmu.Lock()
	c.onMessage = append(c.onMessage, fn)
	c.lmu.Unlock()
}

// OnHistory registers a history replay listener.
func (c *Client) OnHistory(fn func(channel string, messages []Message)) {
	c.lmu.Lock()
	c.onHistory = append(c.onHistory, fn)
	c.lmu.Unlock()
}

// OnError registers a transport/server error listener.
func (c *Client) OnError(fn func(error)) {
	c.lmu.Lock()
	c.onError = append(c.onError, fn)
	c.lmu.Unlock()
}

// Connect dials the server, announces identity and active channel,
// and starts the read loop. It returns an error only when the
// transport fails before the first successful handshake.
func (c *Client) Connect(ctx context.Context, channelName string) error {
	if !c.registry.IsValid(channelName) {
		return fmt.Errorf("%w: %s", ErrInvalidChannel, channelName)
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("Connection failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.active = channelName
	c.mu.Unlock()

	if err := c.announce(channelName); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("Connection failed: %w", err)
	}

	go c.readLoop(conn)
	return nil
}

// announce sends the connect event identifying this client.
func (c *Client) announce(channelName string) error {
	return c.write(event{Type: "connect", Username: c.Username, Channel: channelName})
}

// Connected reports whether the client currently holds a live
// connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// JoinChannel switches the active channel and requests its history.
func (c *Client) JoinChannel(channelName string) error {
	if !c.registry.IsValid(channelName) {
		return fmt.Errorf("%w: %s", ErrInvalidChannel, channelName)
	}
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.active = channelName
	c.mu.Unlock()

	return c.write(event{Type: "join_channel", Channel: channelName})
}

// SendMessage submits a message, switching the active channel first
// when the target differs from it.
func (c *Client) SendMessage(channelName, text string) error {
	if !c.registry.IsValid(channelName) {
		return fmt.Errorf("%w: %s", ErrInvalidChannel, channelName)
	}
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	active := c.active
	c.mu.Unlock()

	if active != channelName {
		if err := c.JoinChannel(channelName); err != nil {
			return err
		}
	}

	return c.write(event{Type: "chat_message", Channel: channelName, Username: c.Username, Text: text})
}

// Close tears the connection down permanently; no reconnection is
// attempted afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.state = StateDisconnected
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) write(ev event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(ev)
}

// readLoop dispatches inbound events until the connection fails, then
// hands off to the reconnect loop.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.setState(StateDisconnected)
			c.notifyError(fmt.Errorf("connection lost: %w", err))
			c.reconnect()
			return
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev event) {
	switch ev.Type {
	case "chat_message":
		msg := Message{Channel: ev.Channel, Username: ev.Username, Text: ev.Text}
		if ev.Timestamp != nil {
			msg.Timestamp = *ev.Timestamp
		}
		c.lmu.Lock()
		listeners := append([]func(Message){}, c.onMessage...)
		c.lmu.Unlock()
		for _, fn := range listeners {
			fn(msg)
		}
	case "message_history":
		c.lmu.Lock()
		listeners := append([]func(string, []Message){}, c.onHistory...)
		c.lmu.Unlock()
		for _, fn := range listeners {
			fn(ev.Channel, ev.Messages)
		}
	case "error":
		c.notifyError(errors.New(ev.Message))
	}
}

func (c *Client) notifyError(err error) {
	c.lmu.Lock()
	listeners := append([]func(error){}, c.onError...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

// reconnect retries the connection a bounded number of times with
// fixed-then-capped backoff. Failures here never surface as a
// Connect error; the caller observes them through OnError.
func (c *Client) reconnect() {
	delay := c.Backoff

	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.MaxBackoff {
			delay = c.MaxBackoff
		}

		c.setState(StateConnecting)
		conn, _, err := c.dialer.Dial(c.URL, nil)
		if err != nil {
			c.setState(StateDisconnected)
			c.notifyError(fmt.Errorf("reconnect attempt %d failed: %w", attempt, err))
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.state = StateConnected
		active := c.active
		c.mu.Unlock()

		if err := c.announce(active); err != nil {
			conn.Close()
			c.setState(StateDisconnected)
			c.notifyError(fmt.Errorf("reconnect attempt %d failed: %w", attempt, err))
			continue
		}

		go c.readLoop(conn)
		return
	}

	c.notifyError(fmt.Errorf("gave up after %d reconnect attempts", c.MaxRetries))
}
