package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/models"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header carrying the id a client identifies with.
	HeaderClientID = "X-Zonegraph-Client-Id"

	DefaultScopeDistance = 500
)

// ScopeHandler streams to its client the scene objects in scope from the
// client viewpoint.
type ScopeHandler struct {
	// The scene the client is scoped into.
	Scene *models.Scene

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The scope distance used when a viewpoint does not specify one.
	ScopeDistance float64

	// The largest scope distance a client can ask for. 0 means unlimited.
	MaxScopeDistance float64

	conn     *websocket.Conn
	clientID string

	mutex        sync.Mutex
	viewpoint    r3.Vector
	distance     float64
	hasViewpoint bool
	stopFrames   func()

	// Only used from the scene goroutine.
	inScope []zone.ObjectID
	scoped  map[zone.ObjectID]struct{}
}

func (h *ScopeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *ScopeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(MsgTypePong, PongResponse{Type: MsgTypePong})
	return nil
}

func (h *ScopeHandler) HandleViewpoint(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ViewpointRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	distance := req.ScopeDistance
	if distance == 0 {
		distance = h.ScopeDistance
	}
	if distance == 0 {
		distance = DefaultScopeDistance
	}
	if distance < 0 || (h.MaxScopeDistance > 0 && distance > h.MaxScopeDistance) {
		return errors.New("invalid scope distance").
			WithType(ErrTypeBadMessage).
			WithTag("scope_distance", distance).
			WithTag("max_scope_distance", h.MaxScopeDistance)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.viewpoint = req.Position.Vector()
	h.distance = distance
	if !h.hasViewpoint {
		h.hasViewpoint = true
		h.stopFrames = h.Scene.HandleFrame(func(frame uint64) {
			h.scopeFrame(frame, respond)
		})
	}
	return nil
}

// ObjectInScope collects the objects found during a scoping pass.
func (h *ScopeHandler) ObjectInScope(obj zone.SceneObject) {
	h.inScope = append(h.inScope, obj.SceneObject().ID)
}

func (h *ScopeHandler) scopeFrame(frame uint64, respond ResponseSender) {
	h.mutex.Lock()
	viewpoint := h.viewpoint
	distance := h.distance
	h.mutex.Unlock()

	h.inScope = h.inScope[:0]
	if err := h.Scene.Scope(viewpoint, distance, h); err != nil {
		logs.WithTag(logs.ClientIDTag, h.clientID).
			WithTag("frame", frame).
			Error(errors.New("scoping scene failed").Wrap(err))
		return
	}

	sort.Slice(h.inScope, func(i, j int) bool {
		return h.inScope[i] < h.inScope[j]
	})

	current := make(map[zone.ObjectID]struct{}, len(h.inScope))
	update := ScopeUpdate{
		Type:      MsgTypeScopeUpdate,
		Frame:     frame,
		ObjectIDs: make([]zone.ObjectID, 0, len(h.inScope)),
		Entered:   []zone.ObjectID{},
		Left:      []zone.ObjectID{},
	}

	for _, id := range h.inScope {
		current[id] = struct{}{}
		update.ObjectIDs = append(update.ObjectIDs, id)
		if _, ok := h.scoped[id]; !ok {
			update.Entered = append(update.Entered, id)
		}
	}
	for id := range h.scoped {
		if _, ok := current[id]; !ok {
			update.Left = append(update.Left, id)
		}
	}
	sort.Slice(update.Left, func(i, j int) bool {
		return update.Left[i] < update.Left[j]
	})

	h.scoped = current
	respond.Send(MsgTypeScopeUpdate, update)
}

func (h *ScopeHandler) HandleDisconnect(_ error) {
	h.stopScoping()
}

func (h *ScopeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *ScopeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *ScopeHandler) Close() {
	h.stopScoping()
}

func (h *ScopeHandler) stopScoping() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.stopFrames != nil {
		h.stopFrames()
		h.stopFrames = nil
	}
}

func (h *ScopeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ScopeHandler) GetClientID() string {
	return h.clientID
}
