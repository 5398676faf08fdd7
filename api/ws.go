package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"mutext/document"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is both directions of the edit channel. Clients send "edit"
// (whole buffer in Data) or "insert" (text appended); the server answers
// every message with "state". The server also pushes "text" followed by
// "state" whenever the buffer changes from elsewhere (reload, open, new).
type wsMessage struct {
	Type  string          `json:"type"`
	Data  string          `json:"data,omitempty"`
	State *document.State `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (h *handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WS upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// gorilla/websocket forbids concurrent writes.
	var writeMu sync.Mutex
	writeMsg := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}
	sendState := func() error {
		st := h.app.Document.State()
		return writeMsg(wsMessage{Type: "state", State: &st})
	}

	// Coalesce change notifications; the pusher always sends the latest text.
	changed := make(chan struct{}, 1)
	cancel := h.app.Document.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-changed:
				if err := writeMsg(wsMessage{Type: "text", Data: h.app.Document.Snapshot()}); err != nil {
					return
				}
				if err := sendState(); err != nil {
					return
				}
			}
		}
	}()

	if err := writeMsg(wsMessage{Type: "text", Data: h.app.Document.Snapshot()}); err != nil {
		return
	}
	if err := sendState(); err != nil {
		return
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// Client disconnected. The document is unaffected.
			return
		}

		switch msg.Type {
		case "edit":
			h.app.Document.SetText(msg.Data)
		case "insert":
			h.app.Document.Insert(msg.Data)
		case "state":
		default:
			if err := writeMsg(wsMessage{Type: "error", Error: "unknown message type " + msg.Type}); err != nil {
				return
			}
			continue
		}
		if err := sendState(); err != nil {
			h.log.Debug("WS write error", "error", err)
			return
		}
	}
}
