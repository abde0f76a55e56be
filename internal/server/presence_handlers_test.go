package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresenceTestApp(t *testing.T) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &Server{}
	s.presence = notifications.NewPresenceTracker(rdb, notifications.PresenceTrackerConfig{
		TTL: 10 * time.Second,
	})
	t.Cleanup(s.presence.Stop)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.Next()
	})
	app.Post("/posts/:id/presence", s.PresenceHeartbeat)
	app.Get("/posts/:id/presence", s.GetPresence)
	app.Delete("/posts/:id/presence", s.PresenceLeave)
	return app, mr
}

func presenceBody(t *testing.T, resp *http.Response) (viewers []uint, count int) {
	t.Helper()
	var body struct {
		Viewers []uint `json:"viewers"`
		Count   int    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Viewers, body.Count
}

func TestPresenceEndpoints_HeartbeatListLeave(t *testing.T) {
	app, _ := newPresenceTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/1/presence", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/1/presence", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	viewers, count := presenceBody(t, resp)
	assert.Equal(t, []uint{42}, viewers)
	assert.Equal(t, 1, count)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/posts/1/presence", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/1/presence", nil))
	require.NoError(t, err)
	viewers, count = presenceBody(t, resp)
	assert.Empty(t, viewers)
	assert.Zero(t, count)
	_ = resp.Body.Close()
}

func TestPresenceEndpoints_ExpiredViewerDropsOut(t *testing.T) {
	app, mr := newPresenceTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/1/presence", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	mr.FastForward(11 * time.Second)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/1/presence", nil))
	require.NoError(t, err)
	viewers, count := presenceBody(t, resp)
	assert.Empty(t, viewers)
	assert.Zero(t, count)
	_ = resp.Body.Close()
}
