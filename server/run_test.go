package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServe_GracefulShutdown(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"site.ncss": nested})
	log := zaptest.NewLogger(t)

	m, err := New(testConfig(t, root, false), nil, log)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, &http.Server{Handler: m.Handler(http.NotFoundHandler())}, ln, log)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/css/site.css")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "div {\n  color: red;\n}\ndiv p {\n  margin: 0;\n}\n", string(body))

	resp, err = http.Get("http://" + ln.Addr().String() + "/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serve(context.Background(), &http.Server{Handler: http.NotFoundHandler()}, ln, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unable to serve")
}
