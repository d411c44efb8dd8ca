package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/probes"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Probes are authenticated by shared secret, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream serves GET /v1/stream: the probe-facing websocket endpoint. The
// connection is upgraded first so that auth failures can be reported with
// the protocol's close codes (4001 unauthorized, 4002 missing parameters).
func Stream(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		region := r.URL.Query().Get("region")
		authHeader := r.Header.Get("Authorization")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Warnf("stream upgrade failed: %v", err)
			return
		}

		if id == "" || region == "" {
			refuse(conn, probes.CloseMissingParams, "Missing id or region")
			return
		}
		if !authorized(d.Credentials, id, authHeader) {
			d.Logger.Warn("probe failed authentication",
				logger.String("probe", id),
				logger.String("remote", r.RemoteAddr))
			refuse(conn, probes.CloseUnauthorized, "Unauthorized")
			return
		}

		session := probes.NewSession(id, region, conn, d.Logger)
		d.Registry.Register(session)
		go session.ReadLoop(d.Registry, d.Dispatcher)
	}
}

// authorized checks the bearer header against the current credential map.
func authorized(store *probes.CredentialStore, id, header string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	secret, ok := store.Secret(id)
	return ok && strings.TrimPrefix(header, prefix) == secret
}

func refuse(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	_ = conn.Close()
}
