package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/widgets"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	eventBacklog = 32
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(h.origins, r.Header.Get("Origin"))
		},
	}
}

// GET /widgets/:id/events streams the widget's session and status changes.
// The first frame is the current session snapshot.
func (h *Handler) Events(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "widget", w.ID, "error", err)
		return
	}
	defer conn.Close()

	events := make(chan widgets.Event, eventBacklog)
	unsub := w.Subscribe(func(ev widgets.Event) {
		select {
		case events <- ev:
		default:
			log.Warn("dropping widget event for slow client", "widget", w.ID, "type", string(ev.Type))
		}
	})
	defer unsub()

	snap := w.Session().Snapshot()
	if err := writeEvent(conn, widgets.Event{Type: widgets.EventSession, Widget: w.ID, Session: &snap}); err != nil {
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				log.Warn("websocket write failed", "widget", w.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev widgets.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// readPump discards client frames and notices when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}
