// Package linking runs the loopback half of the storage OAuth flow: a
// short-lived localhost HTTP listener that catches the provider's
// redirect and hands the authorization code back to the CLI.
package linking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/compliance-assistant/client/pkg/logger"
)

// ErrStateMismatch indicates the redirect carried a state value that
// does not match the one this flow issued.
var ErrStateMismatch = errors.New("oauth state mismatch")

// ErrDenied indicates the provider reported the user refused consent.
var ErrDenied = errors.New("authorization denied")

const shutdownGrace = 2 * time.Second

// CallbackServer listens on localhost for a single OAuth redirect.
type CallbackServer struct {
	port  int
	state string
	log   *logger.Logger

	srv    *http.Server
	codeCh chan string
	errCh  chan error
}

// NewCallbackServer prepares a listener on the given localhost port. A
// fresh state nonce is minted per flow.
func NewCallbackServer(port int, log *logger.Logger) *CallbackServer {
	if log == nil {
		log = logger.NewNop()
	}
	return &CallbackServer{
		port:   port,
		state:  uuid.New().String(),
		log:    log,
		codeCh: make(chan string, 1),
		errCh:  make(chan error, 1),
	}
}

// RedirectURI returns the URI the provider must redirect to. Pass it to
// the backend when starting the link flow.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", s.port)
}

// State returns the nonce embedded in the flow; callers append it to
// the authorize URL when the backend does not do so itself.
func (s *CallbackServer) State() string {
	return s.state
}

// Start binds the listener and begins serving. It returns immediately;
// use Wait to collect the authorization code.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("bind callback listener: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/callback", s.handleCallback)

	s.srv = &http.Server{Handler: r}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("callback server stopped", zap.Error(err))
		}
	}()
	s.log.Debug("callback server listening", zap.String("uri", s.RedirectURI()))
	return nil
}

func (s *CallbackServer) handleCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", resultPage("Authorization was denied. You can close this window."))
		s.deliverErr(fmt.Errorf("%w: %s", ErrDenied, errParam))
		return
	}
	if c.Query("state") != s.state {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", resultPage("This link has expired. Restart the connection from the CLI."))
		s.deliverErr(ErrStateMismatch)
		return
	}
	code := c.Query("code")
	if code == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", resultPage("Missing authorization code. Restart the connection from the CLI."))
		s.deliverErr(errors.New("callback carried no code"))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", resultPage("Storage connected. You can close this window and return to the terminal."))
	select {
	case s.codeCh <- code:
	default:
	}
}

func (s *CallbackServer) deliverErr(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

// Wait blocks until the redirect arrives, the flow fails, or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case code := <-s.codeCh:
		return code, nil
	case err := <-s.errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close shuts the listener down.
func (s *CallbackServer) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func resultPage(message string) []byte {
	return []byte(fmt.Sprintf(`<!doctype html>
<html><head><title>Compliance Assistant</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4rem;">
<p>%s</p>
</body></html>`, message))
}
