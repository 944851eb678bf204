package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliance-assistant/client/internal/model"
	"github.com/compliance-assistant/client/internal/protocol"
)

// streamServer is a scripted stand-in for the conversation backend.
type streamServer struct {
	srv      *httptest.Server
	dials    atomic.Int32
	reject   atomic.Bool
	connCh   chan *serverConn
	upgrader websocket.Upgrader

	mu      sync.Mutex
	queries []url.Values
}

type serverConn struct {
	ws    *websocket.Conn
	query url.Values
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{connCh: make(chan *serverConn, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()
		if s.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.connCh <- &serverConn{ws: ws, query: r.URL.Query()}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) allQueries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

func (s *streamServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/assistant/stream"
}

// accept waits for the next inbound connection.
func (s *streamServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case conn := <-s.connCh:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []string
	levels  []NoticeLevel
}

func (r *noticeRecorder) record(level NoticeLevel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
	r.notices = append(r.notices, text)
}

func (r *noticeRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}

func newStreamClient(t *testing.T, s *streamServer, events Events) *Client {
	t.Helper()
	c := New(Config{
		StreamURL:            s.url(),
		DialTimeout:          2 * time.Second,
		ReconnectInterval:    20 * time.Millisecond,
		MaxReconnectAttempts: 2,
		TickInterval:         10 * time.Millisecond,
	}, events)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectRequiresCredential(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	err := c.Connect(context.Background(), "", "")
	assert.ErrorIs(t, err, model.ErrNoCredential)
	assert.Equal(t, int32(0), s.dials.Load(), "must fail before dialing")
}

func TestConnectCarriesIdentity(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", "sess-42"))
	conn := s.accept(t)
	defer conn.ws.Close()

	assert.Equal(t, "tok-abc", conn.query.Get("token"))
	assert.Equal(t, "sess-42", conn.query.Get("session_id"))

	connToken := conn.query.Get("conn_token")
	_, err := uuid.Parse(connToken)
	assert.NoError(t, err, "conn_token must be a UUID")

	assert.Eventually(t, func() bool {
		return c.ConnState() == ConnConnected
	}, time.Second, 10*time.Millisecond)
}

func TestNewConversationOmitsSessionID(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	_, ok := conn.query["session_id"]
	assert.False(t, ok, "no session_id parameter for a fresh conversation")
}

func TestServerEventsReachState(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	frame := `{"event_type":"phase_change","session_id":"sess-7","payload":{"phase":"information_discovery"}}`
	require.NoError(t, conn.ws.WriteMessage(websocket.TextMessage, []byte(frame)))

	assert.Eventually(t, func() bool {
		st := c.State()
		return st.Phase == model.PhaseInformationDiscovery && st.SessionID == "sess-7"
	}, time.Second, 10*time.Millisecond)
}

func TestMalformedFramesAreDroppedSilently(t *testing.T) {
	s := newStreamServer(t)
	notices := &noticeRecorder{}
	c := newStreamClient(t, s, Events{OnNotice: notices.record})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	bad := [][]byte{
		[]byte(`not json at all`),
		[]byte(`["array","frame"]`),
		[]byte(`{"payload":{"no":"event_type"}}`),
	}
	for _, frame := range bad {
		require.NoError(t, conn.ws.WriteMessage(websocket.TextMessage, frame))
	}
	// A valid frame after the garbage must still be processed.
	require.NoError(t, conn.ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"event_type":"phase_change","payload":{"phase":"framework_analysis"}}`)))

	assert.Eventually(t, func() bool {
		return c.State().Phase == model.PhaseFrameworkAnalysis
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, notices.all(), "malformed frames must not surface to the user")
}

func TestSendText(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	require.Eventually(t, func() bool {
		return c.ConnState() == ConnConnected
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.SendText("We are a 40-person SaaS company."))

	conn.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"We are a 40-person SaaS company."}`, string(frame))

	st := c.State()
	assert.True(t, st.Loading)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.RoleUser, st.Messages[0].Role)
}

func TestSendRejectedWhenDisconnected(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	err := c.SendText("hello")
	assert.ErrorIs(t, err, model.ErrNotConnected)
	assert.Empty(t, c.State().Messages, "rejected sends must not touch the transcript")
}

func TestInvalidOutboundNeverTransmitted(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	require.Eventually(t, func() bool {
		return c.ConnState() == ConnConnected
	}, time.Second, 10*time.Millisecond)

	err := c.SendText(strings.Repeat("x", protocol.MaxTextLength+1))
	assert.ErrorIs(t, err, protocol.ErrTextTooLong)

	conn.ws.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, readErr := conn.ws.ReadMessage()
	assert.Error(t, readErr, "nothing must reach the wire")
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	s := newStreamServer(t)
	notices := &noticeRecorder{}
	c := newStreamClient(t, s, Events{OnNotice: notices.record})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)

	deadline := time.Now().Add(time.Second)
	conn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)
	conn.ws.Close()

	assert.Eventually(t, func() bool {
		return c.ConnState() == ConnDisconnected
	}, time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), s.dials.Load(), "close 1000 is terminal")
	assert.Contains(t, notices.all(), "Connection closed.")
}

func TestAuthCloseIsTerminal(t *testing.T) {
	s := newStreamServer(t)
	notices := &noticeRecorder{}
	c := newStreamClient(t, s, Events{OnNotice: notices.record})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)

	deadline := time.Now().Add(time.Second)
	conn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad token"), deadline)
	conn.ws.Close()

	assert.Eventually(t, func() bool {
		all := notices.all()
		return len(all) == 1 && strings.Contains(all[0], "authentication failed")
	}, time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), s.dials.Load(), "close 1008 is terminal")
}

func TestAbnormalCloseReconnectsWithinBudget(t *testing.T) {
	s := newStreamServer(t)
	notices := &noticeRecorder{}
	c := newStreamClient(t, s, Events{OnNotice: notices.record})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))

	// Learn the session, then make the backend unreachable so every
	// reconnect attempt fails at the handshake.
	first := s.accept(t)
	frame := `{"event_type":"info","session_id":"sess-9"}`
	require.NoError(t, first.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	require.Eventually(t, func() bool {
		return c.State().SessionID == "sess-9"
	}, time.Second, 10*time.Millisecond)
	firstToken := first.query.Get("conn_token")
	s.reject.Store(true)
	first.ws.Close()

	assert.Eventually(t, func() bool {
		for _, n := range notices.all() {
			if strings.Contains(n, "Connection lost") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "budget exhaustion must be announced")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(3), s.dials.Load(), "initial dial plus two retries, no more")
	assert.Equal(t, ConnDisconnected, c.ConnState())

	// Each retry must resume the learned session with the same token.
	for _, q := range s.allQueries()[1:] {
		assert.Equal(t, "sess-9", q.Get("session_id"))
		assert.Equal(t, firstToken, q.Get("conn_token"))
	}
}

func TestManualCloseSendsNormalClosure(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", ""))
	conn := s.accept(t)
	defer conn.ws.Close()

	require.NoError(t, c.Close())

	conn.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), s.dials.Load(), "deliberate close never reconnects")
}

func TestReconnectSucceedsAndResumes(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", "sess-3"))
	first := s.accept(t)
	first.ws.Close()

	// The retry connection stays up; the client must settle back into
	// the connected state with attempts reset.
	retry := s.accept(t)
	defer retry.ws.Close()

	require.Eventually(t, func() bool {
		return c.ConnState() == ConnConnected
	}, 2*time.Second, 10*time.Millisecond)

	frame := `{"event_type":"question","text":"Where were we?"}`
	require.NoError(t, retry.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	assert.Eventually(t, func() bool {
		st := c.State()
		return len(st.Messages) == 1 && st.Messages[0].Role == model.RoleAssistant
	}, time.Second, 10*time.Millisecond)
}

func TestConnectPreservesSeededSession(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	c.SeedHistory(&model.ConversationSession{
		ID:    "sess-11",
		Phase: model.PhaseDocumentGeneration,
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", "sess-11"))
	conn := s.accept(t)
	defer conn.ws.Close()

	st := c.State()
	assert.Equal(t, "sess-11", st.SessionID)
	assert.Equal(t, model.PhaseDocumentGeneration, st.Phase)
	require.Len(t, st.Messages, 2, "seeded transcript must survive connecting")
	assert.Equal(t, "hi", st.Messages[0].Content)

	// A resumed long-running phase drives the elapsed counter.
	assert.Eventually(t, func() bool {
		return c.State().ElapsedSeconds > 0
	}, time.Second, 10*time.Millisecond)
}

func TestConnectToDifferentSessionResets(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	c.SeedHistory(&model.ConversationSession{
		ID:       "sess-11",
		Phase:    model.PhaseDocumentGeneration,
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})

	require.NoError(t, c.Connect(context.Background(), "tok-abc", "sess-other"))
	conn := s.accept(t)
	defer conn.ws.Close()

	st := c.State()
	assert.Equal(t, "sess-other", st.SessionID)
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Phase)
}

func TestConnectReusesInstalledConnToken(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	c.SetConnToken("lease-from-last-run")
	require.NoError(t, c.Connect(context.Background(), "tok-abc", "sess-11"))
	conn := s.accept(t)
	defer conn.ws.Close()

	assert.Equal(t, "lease-from-last-run", conn.query.Get("conn_token"),
		"a restarted process must present the persisted lease, not a fresh one")
}

func TestSeedHistory(t *testing.T) {
	s := newStreamServer(t)
	c := newStreamClient(t, s, Events{})

	c.SeedHistory(&model.ConversationSession{
		ID:    "sess-11",
		Phase: model.PhaseDocumentSelection,
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})

	st := c.State()
	assert.Equal(t, "sess-11", st.SessionID)
	assert.Equal(t, model.PhaseDocumentSelection, st.Phase)
	assert.Len(t, st.Messages, 2)
}
