package node

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/websocket"
)

// maxIngressBody bounds a single HTTP POST body, so an unauthenticated
// sender cannot exhaust memory before Receive ever gets to look at the
// envelope's own size limits.
const maxIngressBody = 1 << 20 // 1 MiB

// ServeHTTP is the node's plain-HTTP ingress surface (spec.md §6's wire
// format over a POST body instead of the teacher's WebSocket upgrade):
// POST / delivers one packed envelope; GET /health reports readiness.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		n.serveHealth(w, r)
	case r.Method == http.MethodPost:
		n.servePost(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (n *Node) serveHealth(w http.ResponseWriter, _ *http.Request) {
	version := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": version,
		"agents":  n.Registry.Len(),
	})
}

func (n *Node) servePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngressBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := n.Receive(r.Context(), body, r.RemoteAddr); err != nil {
		n.Log.Warn("ingress receive failed", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "message rejected", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// wsUpgrader mirrors the teacher's permissive CheckOrigin (rpc_node.go's
// NewRPCNode): TAP agents are expected to sit behind their own access
// controls, not the origin header, the same assumption the teacher's
// WebSocket upgrader makes.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection to a WebSocket and feeds every text or
// binary frame received into Receive, for agents that prefer a
// persistent duplex channel over repeated HTTP POSTs.
func (n *Node) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		n.Log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := n.Receive(r.Context(), data, conn.RemoteAddr().String()); err != nil {
			n.Log.Warn("ws receive failed", "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, errorFrame(err))
			continue
		}
	}
}

func errorFrame(err error) []byte {
	data, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return []byte(`{"error":"internal"}`)
	}
	return data
}
