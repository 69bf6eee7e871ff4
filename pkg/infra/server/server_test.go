package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/ragpipe/pkg/options/server"
	httpopts "github.com/kart-io/ragpipe/pkg/options/server/http"
)

func newTestManager() *Manager {
	h := httpopts.NewOptions()
	h.Addr = "127.0.0.1:0"
	h.Mode = gin.TestMode
	return NewManager(options.WithHTTPOptions(h))
}

func TestManagerServesRoutes(t *testing.T) {
	m := newTestManager()
	m.HTTPServer().Engine().GET("/ping", func(c *gin.Context) {
		c.String(nethttp.StatusOK, "pong")
	})

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop(ctx) }()

	url := fmt.Sprintf("http://%s/ping", m.HTTPServer().Addr())
	resp, err := nethttp.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp404, err := nethttp.Get(fmt.Sprintf("http://%s/missing", m.HTTPServer().Addr()))
	require.NoError(t, err)
	defer resp404.Body.Close()
	assert.Equal(t, nethttp.StatusNotFound, resp404.StatusCode)
}

func TestManagerStartTwice(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop(ctx) }()

	assert.Error(t, m.Start(ctx))
}

func TestManagerClosersRunInReverse(t *testing.T) {
	m := newTestManager()
	var order []string
	m.OnStop("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.OnStop("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("close failed")
	})

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	err := m.Stop(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestManagerStopWithoutStart(t *testing.T) {
	assert.NoError(t, newTestManager().Stop(context.Background()))
}
