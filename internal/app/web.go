// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dprs_gateway/internal/config"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 5 * time.Second

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(r station.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(r)
}

// hub pushes every new report to all connected websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

func (h *hub) broadcast(r station.Report) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(r); err != nil {
			log.WithError(err).Debug("web: dropping websocket client")
			h.remove(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

// webServer serves the station registry fed from MQTT.
type webServer struct {
	stations *station.Registry
	hub      *hub
}

func newWebServer() *webServer {
	return &webServer{stations: station.NewRegistry(), hub: newHub()}
}

// ingest stores r and pushes it to live clients if it is the newest report
// for its station.
func (s *webServer) ingest(r station.Report) {
	current := s.stations.Update(r)
	if current.ReceivedAt.Equal(r.ReceivedAt) {
		s.hub.broadcast(current)
	}
}

func (s *webServer) router(staticDir string) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP, middleware.Recoverer)

	router.Get("/api/stations", s.handleStations)
	router.Get("/api/stations/{id}", s.handleStation)
	router.Get("/ws", s.handleWS)

	if staticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return router
}

func (s *webServer) handleStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stations.All())
}

func (s *webServer) handleStation(w http.ResponseWriter, r *http.Request) {
	report, ok := s.stations.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not heard"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleWS sends the known stations, then every new report, until the
// client goes away.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("web: websocket upgrade error")
		return
	}

	c := &wsClient{conn: conn}
	s.hub.add(c)
	for _, report := range s.stations.All() {
		if err := c.send(report); err != nil {
			s.hub.remove(c)
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.remove(c)
			return
		}
	}
}

// RunWeb subscribes to the fix topic and serves the station API, the live
// websocket stream and the static map page.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialised")
	}

	s := newWebServer()

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeReports(client, cfg.MQTT.TopicFix, s.ingest); err != nil {
		return err
	}
	defer s.hub.closeAll()

	log.Infof("web server listening on %s", cfg.Web.Addr)
	return serveHTTP(ctx, cfg.Web.Addr, s.router(cfg.Web.StaticDir))
}
