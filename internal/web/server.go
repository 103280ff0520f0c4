// Package web serves the juicescan dashboard pages, JSON API and live
// project stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/internal/middleware"
	"github.com/R3E-Network/juicescan/internal/project"
	"github.com/R3E-Network/juicescan/internal/subgraph"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// ServiceName is reported by /health and /info.
const ServiceName = "juicescan"

// ErrInvalidProjectID is returned for malformed project ids in routes.
var ErrInvalidProjectID = errors.New("project id must be a positive integer")

// ProjectIndex lists known projects.
type ProjectIndex interface {
	Snapshot() subgraph.Snapshot
	Refresh(ctx context.Context) error
}

// TxTracker reports the on-chain state of a transaction.
// *actions.Service satisfies it.
type TxTracker interface {
	TxStatus(ctx context.Context, chainID uint64, hash string) (actions.TxStatus, error)
}

// Config configures a Server.
type Config struct {
	Version string
	Loader  project.Loader
	Actions *actions.Service
	Chains  *chain.Context
	Index   ProjectIndex
	// Tracker defaults to Actions.
	Tracker TxTracker

	WalletConnectProjectID string
	AllowedOrigins         []string
	RateLimit              float64
	Logger                 *logger.Logger
	Metrics                *metrics.Metrics
}

// Server holds the HTTP handlers.
type Server struct {
	version   string
	loader    project.Loader
	actions   *actions.Service
	chains    *chain.Context
	index     ProjectIndex
	tracker   TxTracker
	wcID      string
	origins   []string
	rateLimit float64
	log       *logger.Logger
	metrics   *metrics.Metrics
	pages     *template.Template
	limiter   *middleware.RateLimiter
	started   time.Time
}

// NewServer validates cfg and parses the page templates.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Loader == nil || cfg.Actions == nil || cfg.Chains == nil || cfg.Index == nil {
		return nil, fmt.Errorf("web: loader, actions, chains and index are required")
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("web")
	}
	s := &Server{
		version:   cfg.Version,
		loader:    cfg.Loader,
		actions:   cfg.Actions,
		chains:    cfg.Chains,
		index:     cfg.Index,
		tracker:   cfg.Tracker,
		wcID:      cfg.WalletConnectProjectID,
		origins:   cfg.AllowedOrigins,
		rateLimit: cfg.RateLimit,
		log:       log,
		metrics:   cfg.Metrics,
		pages:     pages,
		started:   time.Now(),
	}
	if s.tracker == nil {
		s.tracker = cfg.Actions
	}
	if s.rateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(s.rateLimit, 0, log)
	}
	return s, nil
}

// RunMaintenance prunes idle rate limiters until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.Run(ctx, time.Minute)
	}
}

// Router builds the route table and middleware chain.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recover(s.log))
	r.Use(middleware.Tracing(s.log))
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/info", s.info).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/", s.indexPage).Methods(http.MethodGet)
	r.HandleFunc("/launch", s.launchForm).Methods(http.MethodPost)
	r.HandleFunc("/p/{projectId}", s.projectPage).Methods(http.MethodGet)
	r.HandleFunc("/p/{projectId}/pay", s.payForm).Methods(http.MethodPost)
	r.HandleFunc("/ws/projects/{projectId}", s.stream).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewCORS(s.origins).Handler)
	if s.limiter != nil {
		api.Use(s.limiter.Handler)
	}
	api.HandleFunc("/networks", s.apiNetworks).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/projects", s.apiProjects).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/projects/{projectId}", s.apiProject).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/projects/{projectId}/pay", s.apiPay).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/launch", s.apiLaunch).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/tx/{hash}", s.apiTx).Methods(http.MethodGet, http.MethodOptions)
	return r
}

// =============================================================================
// Health and info
// =============================================================================

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type infoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.index.Snapshot().Error != "" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Service:   ServiceName,
		Version:   s.version,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	snap := s.index.Snapshot()
	active := s.chains.Snapshot()
	stats := map[string]any{
		"active_chain_id":  active.Network.ID,
		"networks":         len(s.chains.Networks()),
		"indexed_projects": len(snap.Projects),
		"signer":           s.actions.Signer(),
		"uptime":           time.Since(s.started).Round(time.Second).String(),
	}
	if !snap.UpdatedAt.IsZero() {
		stats["index_updated_at"] = snap.UpdatedAt.Format(time.RFC3339)
	}
	if snap.Error != "" {
		stats["index_error"] = snap.Error
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Status:     "active",
		Service:    ServiceName,
		Version:    s.version,
		Timestamp:  time.Now().Format(time.RFC3339),
		Statistics: stats,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func projectIDFrom(r *http.Request) (*big.Int, error) {
	id, ok := new(big.Int).SetString(mux.Vars(r)["projectId"], 10)
	if !ok || id.Sign() <= 0 {
		return nil, ErrInvalidProjectID
	}
	return id, nil
}

// chainIDFrom reads ?chainId=; 0 selects the active network.
func chainIDFrom(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		return 0, nil
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || !id.IsUint64() {
		return 0, fmt.Errorf("invalid chainId %q", raw)
	}
	return id.Uint64(), nil
}
