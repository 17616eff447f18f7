package portal

import (
	"errors"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/notify"
)

// StreamMessage is a frame on the notification websocket.
type StreamMessage struct {
	Type          string                `json:"type"` // "snapshot", "notification"
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Notification  *notify.Notification  `json:"notification,omitempty"`
}

// Notifications handles GET /api/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := identity.SessionIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.center.Active(sessionID))
}

// NotificationStream upgrades GET /api/notifications/ws and pushes every
// notification raised for the session until the client disconnects.
func (h *Handler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := identity.SessionIDFromContext(r.Context())
	stream := func(conn *websocket.Conn) {
		h.streamNotifications(conn, sessionID)
	}
	if h.streamOrigin == nil {
		websocket.Handler(stream).ServeHTTP(w, r)
		return
	}
	websocket.Server{
		Handshake: func(_ *websocket.Config, req *http.Request) error {
			if !h.streamOrigin(req.Header.Get("Origin")) {
				h.logger.Warn("notification stream origin rejected", "origin", req.Header.Get("Origin"), "session_id", sessionID)
				return errOriginNotAllowed
			}
			return nil
		},
		Handler: stream,
	}.ServeHTTP(w, r)
}

var errOriginNotAllowed = errors.New("portal: origin not allowed")

func (h *Handler) streamNotifications(conn *websocket.Conn, sessionID string) {
	updates, cancel := h.center.Subscribe(sessionID)
	defer cancel()

	if err := websocket.JSON.Send(conn, StreamMessage{Type: "snapshot", Notifications: h.center.Active(sessionID)}); err != nil {
		return
	}

	// Inbound frames are ignored; a read error means the client went away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("notification stream opened", "session_id", sessionID)
	for {
		select {
		case <-closed:
			h.logger.Debug("notification stream closed", "session_id", sessionID)
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, StreamMessage{Type: "notification", Notification: &n}); err != nil {
				h.logger.Debug("notification stream send failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}
