package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// VerifyClientID returns a WebSocket handshake that rejects connections
// whose client id header is set but is not a UUID.
func VerifyClientID(header string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		clientID := r.Header.Get(header)
		if clientID == "" {
			return nil
		}

		if _, err := uuid.Parse(clientID); err != nil {
			err = errors.New("invalid client id").
				WithTag("client_id", clientID).
				Wrap(err)
			logs.WithTag(logs.ClientIDTag, clientID).Error(err)
			return err
		}
		return nil
	}
}
