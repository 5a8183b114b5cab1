package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"nitedsync/internal/config"
	"nitedsync/internal/core"
)

const clientBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub is the feed gateway: it broadcasts fan-out events to connected UI
// clients over websocket. Clients that cannot keep up are dropped.
type Hub struct {
	Logger *slog.Logger
	Config *config.Config
	API    *API

	srv *http.Server

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (h *Hub) Init(context.Context) error {
	h.Logger = h.Logger.With("component", "gateway.Hub")
	h.clients = map[*client]bool{}

	r := chi.NewMux()

	r.Use(
		// json content type
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				next.ServeHTTP(w, r)
			})
		},

		// Logging
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				sw := &statusWriter{ResponseWriter: w}

				next.ServeHTTP(sw, r)

				h.Logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"duration", time.Since(start),
					"status", sw.status,
				)
			})
		},

		// Recovering panics and logging
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if err := recover(); err != nil {
						h.Logger.Error("panic recovered", "error", err)
						http.Error(w, `{"message": "Internal Server Error"}`, http.StatusInternalServerError)
					}
				}()
				next.ServeHTTP(w, r)
			})
		},
	)

	r.Mount("/api", h.API.Routes())

	// The websocket endpoint bypasses the middleware chain: the status
	// recorder does not implement http.Hijacker, which the upgrade needs.
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", h.serveFeed)
	mux.Handle("/", r)

	h.srv = &http.Server{Addr: h.Config.GatewayAddr, Handler: mux}

	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}
	h.Logger.Info("feed gateway listening", "addr", h.srv.Addr)
	go h.srv.Serve(ln) //nolint:errcheck

	return nil
}

func (h *Hub) HealthCheck(context.Context) error {
	return nil
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.clients = map[*client]bool{}
	h.mu.Unlock()

	return h.srv.Shutdown(ctx)
}

// Publish sends the event to every connected client.
func (h *Hub) Publish(event core.FeedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.Logger.Error("failed to marshal feed event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client, drop it.
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
}

func (h *Hub) serveFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.Logger.Debug("feed client connected", "remote", conn.RemoteAddr())

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readPump discards client input; the feed is one-way. It exists to notice
// disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
