// Package web serves a running bench over HTTP: engine status and live
// maps as JSON, and the learning counters in Prometheus format.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/tosih/secu3-ltft/pkg/compare"
	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/sim"
)

type MapResponse struct {
	Name  string      `json:"name"`
	Rows  int         `json:"rows"`
	Cols  int         `json:"cols"`
	Unit  string      `json:"unit"`
	RPM   []int16     `json:"rpm"`
	Load  []int16     `json:"load"`
	Data  [][]float64 `json:"data"`
	Ticks int         `json:"ticks"`
}

type CompareResponse struct {
	Name  string      `json:"name"`
	Unit  string      `json:"unit"`
	Start [][]float64 `json:"start"`
	Now   [][]float64 `json:"now"`
	Diff  [][]float64 `json:"diff"`
	Ticks int         `json:"ticks"`
}

type StatusResponse struct {
	Ticks  int         `json:"ticks"`
	Status ltft.Status `json:"status"`
}

// Monitor holds the first and the latest published bench snapshot.
type Monitor struct {
	mu      sync.RWMutex
	first   *sim.Snapshot
	current *sim.Snapshot
}

// Publish stores s as the latest snapshot.
func (m *Monitor) Publish(s sim.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.first == nil {
		first := s
		m.first = &first
	}
	m.current = &s
}

func (m *Monitor) snapshots() (first, current *sim.Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.first, m.current
}

type Server struct {
	monitor  *Monitor
	gatherer prometheus.Gatherer
	axes     [2]models.Grid
	addr     string
	log      *zap.Logger
}

// NewServer serves monitor on addr. Grids label the map axes.
func NewServer(addr string, monitor *Monitor, gatherer prometheus.Gatherer, rpm, load models.Grid, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		monitor:  monitor,
		gatherer: gatherer,
		axes:     [2]models.Grid{rpm, load},
		addr:     addr,
		log:      log,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/map/", s.handleMapData)
	mux.HandleFunc("/api/compare/", s.handleCompareData)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	pterm.Info.Printf("Bench monitor at http://localhost%s/api/status\n", s.addr)

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.log.Info("bench monitor stopping")
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, cur := s.monitor.snapshots()
	if cur == nil {
		http.Error(w, "No snapshot published yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, StatusResponse{Ticks: cur.Ticks, Status: cur.Status})
}

// mapIndex parses the map index at the end of the path.
func mapIndex(path, prefix string) (int, bool) {
	idx, err := strconv.Atoi(path[len(prefix):])
	if err != nil || idx < 0 || idx >= len(models.MapConfigs) {
		return 0, false
	}
	return idx, true
}

func snapshotMap(snap *sim.Snapshot, idx int) *models.ECUMap {
	switch idx {
	case models.MapLTFT1:
		return snap.Trim[0].ToMap(0)
	case models.MapLTFT2:
		return snap.Trim[1].ToMap(1)
	}
	return snap.VE.ToMap()
}

func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	idx, ok := mapIndex(r.URL.Path, "/api/map/")
	if !ok {
		http.Error(w, "Invalid map index", http.StatusBadRequest)
		return
	}
	_, cur := s.monitor.snapshots()
	if cur == nil {
		http.Error(w, "No snapshot published yet", http.StatusServiceUnavailable)
		return
	}

	m := snapshotMap(cur, idx)
	s.writeJSON(w, MapResponse{
		Name:  m.Config.Name,
		Rows:  m.Config.Rows,
		Cols:  m.Config.Cols,
		Unit:  m.Config.Unit,
		RPM:   s.axes[0].Points[:],
		Load:  s.axes[1].Points[:],
		Data:  m.Data,
		Ticks: cur.Ticks,
	})
}

func (s *Server) handleCompareData(w http.ResponseWriter, r *http.Request) {
	idx, ok := mapIndex(r.URL.Path, "/api/compare/")
	if !ok {
		http.Error(w, "Invalid map index", http.StatusBadRequest)
		return
	}
	first, cur := s.monitor.snapshots()
	if cur == nil {
		http.Error(w, "No snapshot published yet", http.StatusServiceUnavailable)
		return
	}

	start := snapshotMap(first, idx)
	now := snapshotMap(cur, idx)
	s.writeJSON(w, CompareResponse{
		Name:  fmt.Sprintf("%s since tick %d", now.Config.Name, first.Ticks),
		Unit:  now.Config.Unit,
		Start: start.Data,
		Now:   now.Data,
		Diff:  compare.Diff(start.Data, now.Data),
		Ticks: cur.Ticks,
	})
}
