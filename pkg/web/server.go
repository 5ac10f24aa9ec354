package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/syncgraph/pkg/analysis"
	"github.com/ritzau/syncgraph/pkg/cycles"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/lens"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
	"github.com/ritzau/syncgraph/pkg/pubsub"
	"github.com/ritzau/syncgraph/pkg/session"
)

// GraphNode represents a target in the dependency graph
type GraphNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Parent   string `json:"parent"`             // Package of the target
	Universe bool   `json:"universe"`           // Synchronization root
	Distance *int   `json:"distance,omitempty"` // Hops from the focus, if one was requested
}

// GraphEdge represents a "depends on" edge
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData holds the dependency graph for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TargetInfo is the neighbourhood of a single target
type TargetInfo struct {
	Label        model.Label   `json:"label"`
	Dependencies []model.Label `json:"dependencies"`
	Dependents   []model.Label `json:"dependents"`
}

// Syncer is the part of a session the server drives
type Syncer interface {
	Sync(ctx context.Context, opts session.Options) (*session.Result, error)
	ResetState(ctx context.Context) error
	GraphStats() graph.Stats
	Neighbours(label model.Label) (deps, rdeps []model.Label, ok bool)
	Cycles() []cycles.TargetCycle
	WithGraph(fn func(g *graph.TargetGraph))
	LastResult() *session.Result
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	session   Syncer
	publisher pubsub.Publisher
}

// NewServer creates a server for s. Sync events are streamed from publisher.
func NewServer(s Syncer, publisher pubsub.Publisher) *Server {
	srv := &Server{
		router:    mux.NewRouter(),
		session:   s,
		publisher: publisher,
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/graph/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/api/graph/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/api/graph/packages", s.handlePackages).Methods("GET")
	s.router.HandleFunc("/api/graph/target/{label:.+}", s.handleTarget).Methods("GET")
	s.router.HandleFunc("/api/diff", s.handleDiff).Methods("GET")
	s.router.HandleFunc("/api/sync", s.handleSync).Methods("POST")
	s.router.HandleFunc("/api/reset", s.handleReset).Methods("POST")
}

// ServeHTTP makes the server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicSyncStatus && topic != pubsub.TopicSyncDiff {
		http.Error(w, fmt.Sprintf("Unknown topic: %s", topic), http.StatusNotFound)
		return
	}
	logging.DebugContext(r.Context(), "client subscribed", "topic", topic)
	pubsub.ServeSSE(w, r, s.publisher, topic)
}

// handleGraph serves the whole graph, or with ?focus=//main:app,//util&depth=N
// only the targets within N hops of the focus
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var focus *lens.Focus
	if raw := r.URL.Query().Get("focus"); raw != "" {
		focus = &lens.Focus{Selected: strings.Split(raw, ","), MaxDistance: lens.Unlimited}
		if d := r.URL.Query().Get("depth"); d != "" {
			depth, err := strconv.Atoi(d)
			if err != nil || depth < 0 {
				http.Error(w, fmt.Sprintf("Invalid depth: %s", d), http.StatusBadRequest)
				return
			}
			focus.MaxDistance = depth
		}
	}

	var data *GraphData
	s.session.WithGraph(func(g *graph.TargetGraph) {
		var distances map[model.Label]int
		if focus != nil {
			distances = focus.Apply(g)
		}
		data = buildGraphData(g, distances)
	})
	writeJSON(w, r, data)
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	pkg := r.URL.Query().Get("package")

	var deps []analysis.PackageDependency
	s.session.WithGraph(func(g *graph.TargetGraph) {
		if pkg != "" {
			deps = analysis.PackageDependencies(g, pkg)
		} else {
			deps = analysis.FindPackageDependencies(g)
		}
	})
	if deps == nil {
		deps = []analysis.PackageDependency{}
	}
	writeJSON(w, r, deps)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.session.GraphStats())
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	found := s.session.Cycles()
	if found == nil {
		found = []cycles.TargetCycle{}
	}
	writeJSON(w, r, found)
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["label"]

	// Ensure label starts with //
	if !strings.HasPrefix(raw, "//") && !strings.HasPrefix(raw, "@") {
		raw = "//" + raw
	}
	label, err := model.ParseLabel(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deps, rdeps, ok := s.session.Neighbours(label)
	if !ok {
		http.Error(w, fmt.Sprintf("Target not found: %s", label), http.StatusNotFound)
		return
	}
	writeJSON(w, r, TargetInfo{
		Label:        label,
		Dependencies: nonNil(deps),
		Dependents:   nonNil(rdeps),
	})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	last := s.session.LastResult()
	if last == nil {
		http.Error(w, "No sync pass has completed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, r, last)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	opts := session.Options{Full: r.URL.Query().Get("full") == "true"}

	result, err := s.session.Sync(r.Context(), opts)
	if err != nil {
		logging.ErrorContext(r.Context(), "sync request failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, r, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ResetState(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

// buildGraphData flattens the graph for visualization; parallel edges collapse.
// A non-nil distances map restricts the result to its targets.
func buildGraphData(g *graph.TargetGraph, distances map[model.Label]int) *GraphData {
	data := &GraphData{
		Nodes: make([]GraphNode, 0, g.Len()),
		Edges: make([]GraphEdge, 0, g.EdgeCount()),
	}

	visible := func(l model.Label) bool {
		if distances == nil {
			return true
		}
		_, ok := distances[l]
		return ok
	}

	for _, id := range g.VertexIDs() {
		label, _ := g.Label(id)
		if !visible(label) {
			continue
		}
		node := GraphNode{
			ID:       string(label),
			Label:    string(label),
			Parent:   label.Package(),
			Universe: g.IsUniverse(id),
		}
		if d, ok := distances[label]; ok {
			node.Distance = &d
		}
		data.Nodes = append(data.Nodes, node)

		for _, dep := range g.SuccessorLabels(label) {
			if visible(dep) {
				data.Edges = append(data.Edges, GraphEdge{Source: string(label), Target: string(dep)})
			}
		}
	}
	return data
}

func nonNil(labels []model.Label) []model.Label {
	if labels == nil {
		return []model.Label{}
	}
	return labels
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Open SSE streams end with their request contexts once the publisher closes
	if s.publisher != nil {
		s.publisher.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
