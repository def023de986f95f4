package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	msgTypeLabel        = "msg_type"
	publicEndpointLabel = "public_endpoint"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected clients.",
	}, []string{publicEndpointLabel})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from WebSocket connections.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsReceivedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_bytes",
		Help: "The number of bytes received from WebSocket connections.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_receive_errors",
		Help: "The errors that occurred while receiving a WebSocket message.",
	}, []string{publicEndpointLabel, errTypeLabel})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to WebSocket connections.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to WebSocket connections.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occurred while sending a WebSocket message.",
	}, []string{publicEndpointLabel, errTypeLabel, msgTypeLabel})

	wsMsgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ws_msg_latency",
		Help: "The time to process a WebSocket msg.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsRejectedViewpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_rejected_viewpoints",
		Help: "The number of viewpoints rejected because of an invalid scope distance or payload.",
	}, []string{publicEndpointLabel})
)

func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	publicEndpoint string
}

// labels returns the endpoint label followed by the given key/value pairs.
func (h *handlerWithMetrics) labels(kv ...string) prometheus.Labels {
	labels := prometheus.Labels{publicEndpointLabel: h.publicEndpoint}
	for i := 0; i+1 < len(kv); i += 2 {
		labels[kv[i]] = kv[i+1]
	}
	return labels
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	wsConnectedClients.With(h.labels()).Inc()
	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandlePing(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleViewpoint(ctx context.Context, respond ResponseSender, msg Msg) error {
	err := h.measureLatency(msg, func() error {
		return h.Handler.HandleViewpoint(ctx, respond, msg)
	})
	if errors.IsType(err, ErrTypeBadMessage) {
		wsRejectedViewpoints.With(h.labels()).Inc()
	}
	return err
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedClients.With(h.labels()).Dec()
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			wsReceiveErrors.With(h.labels(errTypeLabel, errors.Type(err))).Inc()
		} else {
			wsReceivedMsgs.With(h.labels(msgTypeLabel, msg.Type)).Inc()
		}

		if n != 0 {
			wsReceivedBytes.With(h.labels(msgTypeLabel, msg.Type)).Add(float64(n))
		}
		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	send := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		n, err := send(msg)
		if err != nil {
			wsSendErrors.With(h.labels(
				msgTypeLabel, msg.Type,
				errTypeLabel, errors.Type(err),
			)).Inc()
		}

		if n != 0 {
			labels := h.labels(msgTypeLabel, msg.Type)
			wsSentMsgs.With(labels).Inc()
			wsSentBytes.With(labels).Add(float64(n))
		}
		return n, err
	}
}

// measureLatency observes the time f takes. Bad messages are not observed.
func (h *handlerWithMetrics) measureLatency(msg Msg, f func() error) error {
	start := time.Now()

	err := f()
	if errors.IsType(err, ErrTypeBadMessage) {
		return err
	}

	wsMsgLatency.
		With(h.labels(msgTypeLabel, msg.Type)).
		Observe(time.Since(start).Seconds())
	return err
}
