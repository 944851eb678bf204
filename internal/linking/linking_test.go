package linking

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func startServer(t *testing.T) *CallbackServer {
	t.Helper()
	s := NewCallbackServer(freePort(t), nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCallbackDeliversCode(t *testing.T) {
	s := startServer(t)

	target := fmt.Sprintf("%s?code=auth-123&state=%s", s.RedirectURI(), url.QueryEscape(s.State()))
	resp, err := http.Get(target)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "auth-123", code)
}

func TestCallbackRejectsWrongState(t *testing.T) {
	s := startServer(t)

	resp, err := http.Get(s.RedirectURI() + "?code=auth-123&state=forged")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.Wait(ctx)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestCallbackReportsDenial(t *testing.T) {
	s := startServer(t)

	resp, err := http.Get(s.RedirectURI() + "?error=access_denied&state=" + url.QueryEscape(s.State()))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.Wait(ctx)
	assert.ErrorIs(t, err, ErrDenied)
}

func TestWaitHonorsContext(t *testing.T) {
	s := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
