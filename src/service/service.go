// Package service exposes the operator HTTP API of a hyperdag node.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
)

// Node is the part of the node the service reports on.
type Node interface {
	GetStats() map[string]string
	GetPeers() []string
}

// Service serves node statistics, the peer list, the blacklist and the
// prometheus metrics. It uses its own ServeMux so that several nodes can run
// in the same process.
type Service struct {
	sync.Mutex

	bindAddress string
	node        Node
	blacklist   *ratelimit.Blacklist
	mux         *http.ServeMux
	server      *http.Server
	closed      bool
	logger      *logrus.Entry
}

// NewService registers the API handlers. gatherer may be nil, in which case
// /metrics is not served.
func NewService(bindAddress string,
	n Node,
	blacklist *ratelimit.Blacklist,
	gatherer prometheus.Gatherer,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress: bindAddress,
		node:        n,
		blacklist:   blacklist,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers(gatherer)

	return &service
}

func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering hyperdag API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/blacklist", s.makeHandler(s.GetBlacklist))
	s.mux.HandleFunc("/blacklist/", s.makeHandler(s.DeleteBlacklisted))
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the API handler, for tests or for embedding in another
// server.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns when the
// server fails or Close is called.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving hyperdag API")

	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.server = &http.Server{
		Addr:              s.bindAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the server started by Serve.
func (s *Service) Close() error {
	s.Lock()
	s.closed = true
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetPeers())
}

// GetBlacklist ...
func (s *Service) GetBlacklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.blacklist.List())
}

// DeleteBlacklisted lifts the ban of the peer named in the path. It is the
// only way a peer leaves the blacklist.
func (s *Service) DeleteBlacklisted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", http.MethodDelete)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	peer := strings.TrimPrefix(r.URL.Path, "/blacklist/")
	if peer == "" {
		http.Error(w, "missing peer", http.StatusBadRequest)
		return
	}

	if !s.blacklist.Remove(peer) {
		http.Error(w, "peer not blacklisted", http.StatusNotFound)
		return
	}

	s.logger.WithField("peer", peer).Warn("Peer removed from blacklist by operator")

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
