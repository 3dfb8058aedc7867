// Package web provides the HTTP status server for the crossing daemon:
// an HTML status page, its JSON form, a live WebSocket stream, the
// Prometheus endpoint and a simulated button press.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/status"
)

// PressFunc registers a button edge for side and returns the arbiter outcome.
// It must be safe for concurrent use.
type PressFunc func(side logic.Side) logic.Outcome

// Options selects the optional endpoints.
type Options struct {
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Press enables POST /press?side=A|B when set.
	Press PressFunc
	// Live configures the /ws stream.
	Live LiveConfig
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	press      PressFunc
	live       *liveHandler
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{
		tracker: tracker,
		press:   opts.Press,
		live:    newLiveHandler(tracker, opts.Live),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.Handle("/ws", s.live)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	if opts.Press != nil {
		mux.HandleFunc("/press", s.handlePress)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and closes live streams,
// which http.Server.Shutdown does not track once upgraded.
func (s *Server) Shutdown(ctx context.Context) error {
	s.live.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}
