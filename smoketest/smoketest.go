package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/models"
	zwebsocket "github.com/aukilabs/zonegraph/websocket"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	DefaultTimeout = time.Second * 10
)

type Options struct {
	// The endpoint of the server running the smoke test.
	Endpoint string

	UserAgent string

	// Called with the result of every smoke test run.
	SendResult func(context.Context, Results) error
}

// Request describes the server to test and the viewpoint scoped from.
type Request struct {
	Endpoint      string        `json:"endpoint"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Viewpoint     models.Point  `json:"viewpoint"`
	ScopeDistance float64       `json:"scope_distance,omitempty"`
}

type Results struct {
	FromEndpoint    string          `json:"from_endpoint"`
	ToEndpoint      string          `json:"to_endpoint"`
	Status          string          `json:"status"`
	LatencyMilliSec float64         `json:"latency_ms"`
	ScopedObjects   []zone.ObjectID `json:"scoped_objects,omitempty"`
	Error           string          `json:"error,omitempty"`
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body failed", http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// Tests wait on the context cancelation to know the run
				// is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, opts, req)
			if err != nil {
				logs.WithTag("to_endpoint", req.Endpoint).Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run connects to the requested server, checks that it answers pings, and
// waits for the first scope update from the requested viewpoint.
func Run(ctx context.Context, opts Options, req Request) (Results, error) {
	res := Results{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
		Status:       StatusFailed,
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(ctx, opts, req.Endpoint)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	start := time.Now()
	if err := send(conn, zwebsocket.MsgTypePing, zwebsocket.PingRequest{
		Type: zwebsocket.MsgTypePing,
	}); err != nil {
		res.Error = err.Error()
		return res, err
	}
	if _, err := receive(conn, zwebsocket.MsgTypePong); err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

	if err := send(conn, zwebsocket.MsgTypeViewpoint, zwebsocket.ViewpointRequest{
		Type:          zwebsocket.MsgTypeViewpoint,
		Position:      req.Viewpoint,
		ScopeDistance: req.ScopeDistance,
	}); err != nil {
		res.Error = err.Error()
		return res, err
	}

	msg, err := receive(conn, zwebsocket.MsgTypeScopeUpdate)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	var update zwebsocket.ScopeUpdate
	if err := msg.DataTo(&update); err != nil {
		res.Error = err.Error()
		return res, err
	}

	res.Status = StatusSuccess
	res.ScopedObjects = update.ObjectIDs
	return res, nil
}

func dial(ctx context.Context, opts Options, endpoint string) (*websocket.Conn, error) {
	wsEndpoint := strings.Replace(endpoint, "http", "ws", 1)

	config, err := websocket.NewConfig(wsEndpoint, opts.Endpoint)
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing server failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return conn, nil
}

func send(conn *websocket.Conn, msgType string, v any) error {
	msg, err := zwebsocket.MsgFromJSON(msgType, v)
	if err != nil {
		return err
	}

	if _, err := zwebsocket.Send(conn, msg); err != nil {
		return errors.New("sending message failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}
	return nil
}

// receive returns the next message of the given type. An error message from
// the server fails the run.
func receive(conn *websocket.Conn, msgType string) (zwebsocket.Msg, error) {
	for {
		msg, _, err := zwebsocket.Receive(conn)
		if err != nil {
			return zwebsocket.Msg{}, errors.New("receiving message failed").
				WithTag("expected_msg_type", msgType).
				Wrap(err)
		}

		switch msg.Type {
		case msgType:
			return msg, nil

		case zwebsocket.MsgTypeError:
			var res zwebsocket.ErrorResponse
			if err := msg.DataTo(&res); err != nil {
				return zwebsocket.Msg{}, err
			}
			return zwebsocket.Msg{}, errors.New("server replied with an error").
				WithTag("expected_msg_type", msgType).
				WithTag("message", res.Message)
		}
	}
}
