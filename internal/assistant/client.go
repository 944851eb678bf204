// Package assistant implements the real-time session client: one
// authenticated WebSocket per active conversation, a server-authoritative
// phase state machine, and bounded reconnection. All hard work (AI
// inference, document rendering, storage) happens server-side; this
// client only keeps a local view consistent with the event stream.
package assistant

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/compliance-assistant/client/internal/model"
	"github.com/compliance-assistant/client/internal/protocol"
	"github.com/compliance-assistant/client/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Transport-level read cap. The protocol bound is enforced by the
	// parser so oversized frames are dropped without killing the socket.
	readLimit = 2 * protocol.MaxInboundFrameSize
)

// Config holds configuration for the session client.
type Config struct {
	// StreamURL is the WebSocket endpoint of the conversation backend.
	StreamURL string

	DialTimeout          time.Duration
	ReconnectInterval    time.Duration // base delay; attempt n waits n*interval
	MaxReconnectAttempts int
	TickInterval         time.Duration // elapsed-counter resolution

	Logger *logger.Logger
}

// Client maintains exactly one live, authenticated event stream with the
// conversation backend and keeps local session state consistent with it.
type Client struct {
	cfg    Config
	events Events
	log    *logger.Logger

	// onSession is invoked whenever a session identifier is adopted, so
	// the caller can persist it for resume after restart.
	onSession func(sessionID, connToken string)

	mu             sync.Mutex
	conn           *websocket.Conn
	connState      ConnState
	state          State
	token          string
	connToken      string
	attempts       int
	manualClose    bool
	reconnectTimer *time.Timer
	timerStop      chan struct{}
}

// New creates a session client. Events callbacks may be left nil.
func New(cfg Config, events Events) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = 3
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Client{
		cfg:       cfg,
		events:    events,
		log:       cfg.Logger,
		connState: ConnDisconnected,
	}
}

// SetSessionHook registers a callback invoked when a session identifier
// is adopted (either passed to Connect or learned from the stream).
func (c *Client) SetSessionHook(fn func(sessionID, connToken string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSession = fn
}

// SetConnToken installs a previously persisted connection token so a
// restarted process presents the same single-owner lease instead of
// minting a new one. Must be called before Connect.
func (c *Client) SetConnToken(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connToken = token
}

// State returns a copy of the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ConnState returns the current connection state.
func (c *Client) ConnState() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Connect opens the stream. A non-empty sessionID resumes an existing
// conversation; any previously open socket is closed first. Fails
// without dialing when no credential is supplied.
func (c *Client) Connect(ctx context.Context, token, sessionID string) error {
	if token == "" {
		return model.ErrNoCredential
	}

	c.mu.Lock()
	c.dropConnLocked()
	c.stopTimerLocked()
	c.manualClose = false
	c.attempts = 0
	c.token = token
	if sessionID == "" || sessionID != c.state.SessionID {
		// A new or different conversation starts from a clean slate. A
		// resume of the session already loaded (via SeedHistory) keeps
		// its transcript and phase.
		c.state = State{SessionID: sessionID}
	}
	if c.state.Phase.LongRunning() {
		c.startTimerLocked()
	}
	if c.connToken == "" {
		// Single-owner lease token, reused on resume so the backend can
		// reject a second concurrent attachment.
		c.connToken = uuid.New().String()
	}
	c.mu.Unlock()

	if sessionID != "" {
		c.notifySession(sessionID)
	}
	return c.dial(ctx)
}

// SeedHistory preloads the transcript fetched over REST when resuming.
// It must be called before events start flowing.
func (c *Client) SeedHistory(session *model.ConversationSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SessionID = session.ID
	c.state.Phase = session.Phase
	c.state.Messages = append([]model.ChatMessage(nil), session.Messages...)
}

// SendText validates and transmits a free-text user message. The local
// transcript gains the user line on success.
func (c *Client) SendText(text string) error {
	msg := &protocol.ClientMessage{Text: text}
	if err := c.send(msg); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Loading = true
	line := model.ChatMessage{Role: model.RoleUser, Content: text, CreatedAt: time.Now()}
	c.state.Messages = append(c.state.Messages, line)
	cb := c.events.OnMessage
	c.mu.Unlock()

	if cb != nil {
		cb(line)
	}
	return nil
}

// SendSelection validates and transmits the selected-document list in
// response to a pending selection request.
func (c *Client) SendSelection(documents []string) error {
	c.mu.Lock()
	selection := c.state.Selection
	c.mu.Unlock()
	if selection != nil {
		if err := selection.ValidateSelection(documents); err != nil {
			return err
		}
	}

	if err := c.send(&protocol.ClientMessage{SelectedDocuments: documents}); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.SubmittingSelection = true
	c.mu.Unlock()
	return nil
}

// send validates, serializes and writes one outbound frame. Messages
// failing validation are never transmitted; sends on a non-open socket
// are rejected with ErrNotConnected.
func (c *Client) send(msg *protocol.ClientMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connState != ConnConnected || c.conn == nil {
		return model.ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	return nil
}

// Close shuts the stream down deliberately: close frame 1000, no
// reconnection, pending reconnect state discarded.
func (c *Client) Close() error {
	c.mu.Lock()
	c.manualClose = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	c.setConnStateLocked(ConnDisconnected)
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// dial opens the socket using the stored credential, session identifier
// and connection token.
func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	target, err := c.buildURLLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.setConnStateLocked(ConnConnecting)
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		c.mu.Lock()
		c.setConnStateLocked(ConnDisconnected)
		c.mu.Unlock()
		return err
	}

	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.setConnStateLocked(ConnConnected)
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// buildURLLocked embeds the credential and session identifier as query
// parameters. Token-in-URL is a known weakness of the wire contract,
// kept because the backend accepts nothing else on the stream endpoint.
func (c *Client) buildURLLocked() (string, error) {
	u, err := url.Parse(c.cfg.StreamURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.token)
	if c.state.SessionID != "" {
		q.Set("session_id", c.state.SessionID)
	}
	q.Set("conn_token", c.connToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readLoop pumps inbound frames through the parser and dispatcher until
// the socket dies. Malformed frames are dropped and logged, never
// surfaced.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(conn, err)
			return
		}

		evt, perr := protocol.ParseServerEvent(frame)
		if perr != nil {
			c.log.Debug("dropped malformed frame", zap.Error(perr), zap.Int("size", len(frame)))
			continue
		}
		c.dispatch(evt)
	}
}

// handleClosed classifies the closure and either stops or schedules a
// bounded reconnect. 1000 and 1008 are terminal; everything else gets
// linear backoff up to the attempt budget.
func (c *Client) handleClosed(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer socket replaced this one; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.stopTimerLocked()

	if c.manualClose {
		c.setConnStateLocked(ConnDisconnected)
		c.mu.Unlock()
		return
	}

	code := websocket.CloseAbnormalClosure
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code = closeErr.Code
	}

	switch code {
	case websocket.CloseNormalClosure:
		c.setConnStateLocked(ConnDisconnected)
		notice := c.events.OnNotice
		c.mu.Unlock()
		if notice != nil {
			notice(NoticeInfo, "Connection closed.")
		}
	case websocket.ClosePolicyViolation:
		c.setConnStateLocked(ConnDisconnected)
		notice := c.events.OnNotice
		c.mu.Unlock()
		c.log.Warn("stream closed for auth reason", zap.Int("code", code))
		if notice != nil {
			notice(NoticeError, "Connection closed: authentication failed. Please sign in again.")
		}
	default:
		c.log.Warn("stream closed abnormally", zap.Int("code", code), zap.Error(err))
		c.scheduleReconnectLocked()
	}
}

// scheduleReconnectLocked arms the next reconnect attempt, or gives up
// once the budget is spent. Delay grows linearly with the attempt count.
// The caller must hold c.mu; the lock is released before returning.
func (c *Client) scheduleReconnectLocked() {
	c.attempts++
	if c.attempts > c.cfg.MaxReconnectAttempts {
		c.setConnStateLocked(ConnDisconnected)
		notice := c.events.OnNotice
		c.mu.Unlock()
		if notice != nil {
			notice(NoticeError, "Connection lost. Start a new session or reopen this one.")
		}
		return
	}

	delay := time.Duration(c.attempts) * c.cfg.ReconnectInterval
	c.setConnStateLocked(ConnConnecting)
	c.log.Info("scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", delay),
		zap.String("session_id", c.state.SessionID))
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()
}

// redial retries the connection, reusing the learned session identifier
// and connection token so the backend resumes instead of restarting.
func (c *Client) redial() {
	c.mu.Lock()
	if c.manualClose {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	if err := c.dial(ctx); err != nil {
		c.log.Warn("reconnect attempt failed", zap.Error(err))
		c.mu.Lock()
		if c.manualClose {
			c.mu.Unlock()
			return
		}
		c.scheduleReconnectLocked()
	}
}

func (c *Client) setConnStateLocked(state ConnState) {
	if c.connState == state {
		return
	}
	c.connState = state
	if cb := c.events.OnConnectionChange; cb != nil {
		// Invoked without the lock to keep callbacks reentrant-safe.
		go cb(state)
	}
}

// startTimerLocked begins the elapsed-seconds counter for long-running
// phases. Idempotent while running.
func (c *Client) startTimerLocked() {
	if c.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.timerStop = stop
	go c.runTimer(stop)
}

// stopTimerLocked halts the counter and resets it to zero.
func (c *Client) stopTimerLocked() {
	if c.timerStop != nil {
		close(c.timerStop)
		c.timerStop = nil
	}
	c.state.ElapsedSeconds = 0
}

func (c *Client) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.state.ElapsedSeconds++
			elapsed := c.state.ElapsedSeconds
			cb := c.events.OnTick
			c.mu.Unlock()
			if cb != nil {
				cb(elapsed)
			}
		case <-stop:
			return
		}
	}
}

// notifySession runs the persistence hook outside the lock.
func (c *Client) notifySession(sessionID string) {
	c.mu.Lock()
	hook := c.onSession
	connToken := c.connToken
	c.mu.Unlock()
	if hook != nil {
		hook(sessionID, connToken)
	}
}

// dropConnLocked discards the current socket without close-frame
// ceremony; used when a new conversation replaces the old one.
func (c *Client) dropConnLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		conn.Close()
	}
}
