package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a WebSocket server that serves each connection with a
// handler from newHandler, and returns two clients connected to it. Logs go
// to t until the returned close function is called.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})
	errors.Encoder = json.Marshal

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := newHandler()
			defer h.Close()

			Handle(context.Background(), conn, h)
		},
	})

	endpoint := strings.Replace(server.URL, "http://", "ws://", 1)
	clientA := dialTestServer(t, endpoint)
	clientB := dialTestServer(t, endpoint)

	return clientA, clientB, func() {
		mutex.Lock()
		logger = nil
		mutex.Unlock()

		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func dialTestServer(t *testing.T, endpoint string) *websocket.Conn {
	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		t.Fatalf("creating websocket config failed: %s", err)
	}

	config.Header.Set("User-Agent", "zonegraph-test")
	config.Header.Set("X-Forwarded-For", "192.0.0.0")
	config.Header.Set(HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("dialing websocket failed: %s", err)
	}
	return conn
}

func newTestHandler(scene *models.Scene) func() Handler {
	return func() Handler {
		var h Handler = &ScopeHandler{
			Scene:             scene,
			ClientIdleTimeout: time.Minute,
			ScopeDistance:     100,
			MaxScopeDistance:  1000,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		return HandlerWithMetrics(h, "https://zonegraph-test.com")
	}
}
