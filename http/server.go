// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package http serves derived datasets over HTTP. Datasets are resolved on
// demand through a pipeline, so the first request for a dataset may fetch
// from the API while later ones come straight from the cache.
package http

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pilosa/trialkit/pipeline"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

// Resolver is the part of *pipeline.Pipeline the server uses.
type Resolver interface {
	Resolve(name string) (*trialkit.Dataset, error)
	Stages() []string
}

// Server serves the datasets a Resolver knows about.
type Server struct {
	addr     string
	listener net.Listener
	tls      *tls.Config
	server   *http.Server

	resolver Resolver
	mu       sync.Mutex // Resolver is not safe for concurrent use
	flight   singleflight.Group

	gatherer prometheus.Gatherer
	log      trialkit.Logger
	stats    trialkit.Statter
}

// ServerOption is a functional option type for Server.
type ServerOption func(s *Server)

// WithAddr is an option for the Server which causes it to bind to the given
// address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithListener is an option for Server which causes it to use the given
// listener. It will infer the address from the listener.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = l
		s.addr = l.Addr().String()
	}
}

// WithTLS serves over TLS with the given config.
func WithTLS(conf *tls.Config) ServerOption {
	return func(s *Server) {
		s.tls = conf
	}
}

// WithGatherer exposes the metrics of g at /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(l trialkit.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithStatter sets the Statter.
func WithStatter(st trialkit.Statter) ServerOption {
	return func(s *Server) {
		s.stats = st
	}
}

// NewServer returns a Server for r. Call Serve to start it.
func NewServer(r Resolver, opts ...ServerOption) *Server {
	s := &Server{
		resolver: r,
		log:      trialkit.NopLogger{},
		stats:    trialkit.NopStatter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes of s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/datasets", s.handleList)
	r.Get("/datasets/{name}", s.handleDataset)
	r.Get("/geographic", s.handleGeographic)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Serve listens, unless a listener was given, and serves until Close is
// called.
func (s *Server) Serve() error {
	if s.listener == nil {
		var err error
		s.listener, err = net.Listen("tcp", s.addr)
		if err != nil {
			return errors.Wrap(err, "listening")
		}
	}
	if s.tls != nil {
		s.listener = tls.NewListener(s.listener, s.tls)
	}
	s.log.Printf("serving datasets on %s", s.listener.Addr())
	err := s.server.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "serving")
}

// Addr gets the address that the Server is listening on.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close stops the server.
func (s *Server) Close() error {
	return s.server.Close()
}

// resolve serializes access to the resolver and collapses concurrent requests
// for the same dataset into one resolution.
func (s *Server) resolve(name string) (*trialkit.Dataset, error) {
	v, err, _ := s.flight.Do(name, func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.resolver.Resolve(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*trialkit.Dataset), nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.stats.Count("http.requests", 1, 1, "route:list")
	s.mu.Lock()
	names := s.resolver.Stages()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": names})
}

// DatasetResponse is the JSON form of a dataset.
type DatasetResponse struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.stats.Count("http.requests", 1, 1, "route:dataset")
	d, ok := s.dataset(w, name)
	if !ok {
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		if err := trialkit.WriteCSV(w, d); err != nil {
			s.log.Printf("writing %s: %v", name, err)
		}
		return
	}
	rows := d.Rows
	if rows == nil {
		rows = [][]string{}
	}
	writeJSON(w, http.StatusOK, DatasetResponse{Name: name, Header: d.Header, Rows: rows})
}

func (s *Server) handleGeographic(w http.ResponseWriter, r *http.Request) {
	s.stats.Count("http.requests", 1, 1, "route:geographic")
	d, ok := s.dataset(w, competitors.Geographic)
	if !ok {
		return
	}
	rows, err := competitors.GeoRows(d)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []competitors.GeoRow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

func (s *Server) dataset(w http.ResponseWriter, name string) (*trialkit.Dataset, bool) {
	d, err := s.resolve(name)
	if err == nil {
		return d, true
	}
	if errors.Cause(err) == pipeline.ErrUnknownStage {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	s.log.Printf("resolving %s: %v", name, err)
	s.stats.Count("http.errors", 1, 1, "dataset:"+name)
	writeError(w, http.StatusBadGateway, err)
	return nil, false
}

func wantsCSV(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "csv"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) // nolint: errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
