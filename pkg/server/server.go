// Package server implements the aggregation server's HTTP surface:
// register/roster/model/configure/submit/finish/status/export, backed by
// the round state machine in pkg/roundstate. Routing and CORS follow the
// teacher's monitoring API server (pkg/monitoring/api.go); the wire
// contracts use per-endpoint JSON shapes tailored to this protocol, which
// differ from the teacher's generic {success,data,error} envelope.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ishaileshpant/secureagg-fl/pkg/metrics"
	"github.com/ishaileshpant/secureagg-fl/pkg/roundstate"
)

// Server is the aggregation server's HTTP surface over a round state.
type Server struct {
	state    *roundstate.State
	router   *mux.Router
	metrics  *metrics.Registry
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New builds a Server over state. Pass nil for m to have New register a
// fresh, private Prometheus registry for this Server's own metrics
// collectors, rather than the process-wide default registry.
func New(state *roundstate.State, m *metrics.Registry) *Server {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	s := &Server{
		state:   state,
		router:  mux.NewRouter(),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/register", s.handleRegister).Methods("POST")
	s.router.HandleFunc("/roster", s.handleRoster).Methods("GET")
	s.router.HandleFunc("/model", s.handleModel).Methods("GET")
	s.router.HandleFunc("/configure-training-round", s.handleConfigure).Methods("POST")
	s.router.HandleFunc("/submit-update", s.handleSubmit).Methods("POST")
	s.router.HandleFunc("/finish-round", s.handleFinish).Methods("POST")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/status/stream", s.handleStatusStream).Methods("GET")
	s.router.HandleFunc("/export", s.handleExport).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})).Methods("GET")
}

// Handler returns the CORS-wrapped router, suitable for http.ListenAndServe
// or http.Serve over a custom listener.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// ListenAndServe starts the HTTP server on addr. If tlsConfig is non-nil,
// it serves HTTPS with that configuration (expected to require and verify
// client certificates for mTLS, per pkg/security).
func (s *Server) ListenAndServe(addr string, tlsConfig *tls.Config) error {
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	if tlsConfig != nil {
		s.httpSrv.TLSConfig = tlsConfig
		lis = tls.NewListener(lis, tlsConfig)
	}

	log.Printf("aggregation server listening on %s", addr)
	return s.httpSrv.Serve(lis)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]interface{}{"OK": false, "error": kind})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

const statusStreamPollInterval = 500 * time.Millisecond
