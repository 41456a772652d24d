package httpserver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nifty-lil-tricks/testharness"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "user": c.GetHeader("X-User")})
	})
	return router
}

func header(name, value string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPlugin_ServesHandler(t *testing.T) {
	inst, err := NewPlugin().Setup(context.Background(), Config{Handler: newRouter()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(inst.Output.Origin, "http://127.0.0.1:"), inst.Output.Origin)
	assert.Equal(t, "http://"+inst.Output.Addr, inst.Output.Origin)

	status, body := get(t, inst.Output.Origin+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","user":""}`, body)

	require.NoError(t, inst.Teardown(context.Background()))

	_, err = http.Get(inst.Output.Origin + "/health")
	assert.Error(t, err, "server no longer accepts connections after teardown")
}

func TestPlugin_MiddlewareOrder(t *testing.T) {
	// The outermost middleware runs first, so the inner one wins.
	inst, err := NewPlugin().Setup(context.Background(), Config{
		Handler: newRouter(),
		Middleware: []Middleware{
			header("X-User", "outer"),
			header("X-User", "inner"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(context.Background()) })

	_, body := get(t, inst.Output.Origin+"/health")
	assert.JSONEq(t, `{"status":"ok","user":"inner"}`, body)
}

func TestPlugin_MissingHandler(t *testing.T) {
	_, err := NewPlugin().Setup(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestPlugin_BadAddr(t *testing.T) {
	_, err := NewPlugin().Setup(context.Background(), Config{Handler: newRouter(), Addr: "256.0.0.1:0"})
	assert.ErrorContains(t, err, "listening on 256.0.0.1:0")
}

func TestPlugin_WithHarness(t *testing.T) {
	h, err := testharness.New(testharness.Register(Key, NewPlugin()))
	require.NoError(t, err)

	outputs := testharness.Setup(t, h, Key.Configure(Config{Handler: newRouter()}))

	status, _ := get(t, Key.Output(outputs).Origin+"/health")
	assert.Equal(t, http.StatusOK, status)
}
