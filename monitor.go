package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	statsInterval = time.Second
	opsWriteWait  = 10 * time.Second
	opsPongWait   = 60 * time.Second
	opsPingPeriod = (opsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Monitor serves the ops endpoint: token login, a websocket feed of
// msgpack-encoded ServerStats frames, JSON stats, and a QR code pointing
// a phone at the monitor. It reads server state only through State's
// accessors and the journal's query methods.
type Monitor struct {
	state *State
	auth  *OpsAuth
	db    *DB
}

// NewMonitor creates the ops monitor. db may be nil.
func NewMonitor(state *State, auth *OpsAuth, db *DB) *Monitor {
	return &Monitor{state: state, auth: auth, db: db}
}

// SetupRoutes configures the ops HTTP routes.
func (m *Monitor) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", m.handleLogin)
	mux.HandleFunc("GET /stats", m.requireToken(m.handleStats))
	mux.HandleFunc("GET /ws", m.requireToken(m.handleWS))
	mux.HandleFunc("GET /qr", m.handleQR)
	return mux
}

func (m *Monitor) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	token, err := m.auth.Login(req.Password, extractIP(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// requireToken wraps a handler with ops token validation. The token comes
// from the query string so the websocket dial can carry it too.
func (m *Monitor) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.auth.ValidateToken(r.URL.Query().Get("token")); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Stats  ServerStats    `json:"stats"`
		Events map[string]int `json:"events,omitempty"`
		Recent []EventRow     `json:"recent,omitempty"`
	}{Stats: m.state.Stats()}

	if m.db != nil {
		counts, err := m.db.EventCounts(7)
		if err != nil {
			log.Printf("ops stats: event counts: %v", err)
		} else {
			resp.Events = counts
		}
		recent, err := m.db.RecentEvents(20)
		if err != nil {
			log.Printf("ops stats: recent events: %v", err)
		} else {
			resp.Recent = recent
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWS streams a msgpack-encoded ServerStats frame every second as a
// binary websocket message.
func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ops upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only surfaces close/pong; the feed is one-way.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(opsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(opsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stats := time.NewTicker(statsInterval)
	defer stats.Stop()
	ping := time.NewTicker(opsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-stats.C:
			frame, err := msgpack.Marshal(m.state.Stats())
			if err != nil {
				log.Printf("ops stats marshal: %v", err)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(opsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(opsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleQR renders the monitor's own URL as a PNG QR code so a phone can
// be pointed at the dashboard. Left unauthenticated: it discloses only
// the address the requester already used.
func (m *Monitor) handleQR(w http.ResponseWriter, r *http.Request) {
	target := "http://" + r.Host + "/stats"
	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
