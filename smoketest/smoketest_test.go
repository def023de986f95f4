package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/zonegraph/models"
	zwebsocket "github.com/aukilabs/zonegraph/websocket"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *models.Entity) {
	scene, err := models.NewScene(models.SceneOptions{
		FrameDuration: time.Millisecond * 10,
	})
	require.NoError(t, err)

	chair := models.NewEntity("chair", models.PoseAt(r3.Vector{X: 1, Y: 1}), r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
	require.NoError(t, scene.AddObject(chair))

	go scene.StartDispatchFrames()
	t.Cleanup(scene.Close)

	server := httptest.NewServer(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := &zwebsocket.ScopeHandler{
				Scene:             scene,
				ClientIdleTimeout: time.Minute,
				MaxScopeDistance:  100,
			}
			defer h.Close()

			zwebsocket.Handle(context.Background(), conn, h)
		},
	})
	t.Cleanup(server.Close)
	return server, chair
}

func postSmokeTest(t *testing.T, h http.HandlerFunc, req Request) int {
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://localzonegraph", bytes.NewBuffer(body)))
	return rec.Code
}

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		server, chair := newTestServer(t)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var res Results
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localzonegraph",
			SendResult: func(_ context.Context, r Results) error {
				res = r
				return nil
			},
		})

		code := postSmokeTest(t, smokeTest, Request{
			Endpoint:      server.URL,
			Timeout:       time.Second * 2,
			Viewpoint:     models.Point{X: 1, Y: 1, Z: 1},
			ScopeDistance: 10,
		})
		require.Equal(t, http.StatusOK, code)

		<-ctx.Done()

		require.Equal(t, StatusSuccess, res.Status, res.Error)
		require.Equal(t, "http://localzonegraph", res.FromEndpoint)
		require.Equal(t, server.URL, res.ToEndpoint)
		require.Contains(t, res.ScopedObjects, chair.ID)
	})

	t.Run("smoke test failed - offline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var res Results
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localzonegraph",
			SendResult: func(_ context.Context, r Results) error {
				res = r
				return nil
			},
		})

		code := postSmokeTest(t, smokeTest, Request{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		})
		require.Equal(t, http.StatusOK, code)

		<-ctx.Done()

		require.Equal(t, StatusFailed, res.Status)
		require.Zero(t, res.LatencyMilliSec)
		require.NotEmpty(t, res.Error)
	})

	t.Run("smoke test failed - rejected viewpoint", func(t *testing.T) {
		server, _ := newTestServer(t)

		res, err := Run(context.Background(), Options{Endpoint: "http://localzonegraph"}, Request{
			Endpoint:      server.URL,
			Timeout:       time.Second * 2,
			ScopeDistance: 1000,
		})
		require.Error(t, err)
		require.Equal(t, StatusFailed, res.Status)
		require.Contains(t, res.Error, "server replied with an error")
	})

	t.Run("bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		rec := httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://localzonegraph", bytes.NewBufferString("{")))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
