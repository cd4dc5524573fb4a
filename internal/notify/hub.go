package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"carpool-service/internal/events"
	"carpool-service/pkg/jwt"
	"carpool-service/pkg/kafka"
)

// Notification is the JSON frame pushed to a connected user.
type Notification struct {
	Type    string `json:"type"`
	RideID  string `json:"rideId,omitempty"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// Subscriber is the read side of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error)
}

// safeConn serialises writes, since gorilla/websocket permits a single
// writer per connection.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteJSON(v)
}

func (c *safeConn) close() { c.ws.Close() }

// Hub keeps the open notification sockets of each user.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string][]*safeConn
}

// NewHub creates a hub accepting upgrades from the given origins. An empty
// list accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		conns: make(map[string][]*safeConn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Routes returns a chi.Router for the /ws mount point.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireAuth)
	r.Get("/users/{id}", h.HandleWS)
	return r
}

// HandleWS upgrades the connection and keeps it until the client leaves.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if jwt.GetClaims(r.Context()).UserID != userID {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn := &safeConn{ws: ws}
	log := logrus.WithField("user_id", userID)

	h.mu.Lock()
	h.conns[userID] = append(h.conns[userID], conn)
	h.mu.Unlock()
	log.Debug("notification client connected")

	// Block until the client disconnects
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.removeConn(userID, conn)
	conn.close()
	log.Debug("notification client disconnected")
}

// Notify pushes n to every open socket of userID and returns how many
// sockets received it.
func (h *Hub) Notify(userID string, n Notification) int {
	if n.TS == 0 {
		n.TS = time.Now().Unix()
	}

	h.mu.RLock()
	conns := append([]*safeConn(nil), h.conns[userID]...)
	h.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.writeJSON(n); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("notification write failed")
			continue
		}
		sent++
	}
	return sent
}

// Connected returns the number of open sockets for userID.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StartRideDeletedConsumer tells every passenger of a deleted ride that it
// was cancelled.
func (h *Hub) StartRideDeletedConsumer(ctx context.Context, sub Subscriber) {
	sub.Subscribe(ctx, kafka.TopicRideDeleted, "notify-ride-deleted", func(data []byte) error {
		var ev events.RideDeletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		h.notifyRideDeleted(ev)
		return nil
	})
}

func (h *Hub) notifyRideDeleted(ev events.RideDeletedEvent) {
	msg := fmt.Sprintf("Your ride from %s to %s was cancelled by the driver", ev.Origin, ev.Destination)
	for _, p := range ev.PassengerIDs {
		h.Notify(p, Notification{Type: kafka.TopicRideDeleted, RideID: ev.RideID, Message: msg})
	}
}

func (h *Hub) removeConn(userID string, conn *safeConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[userID]
	for i, c := range conns {
		if c == conn {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
