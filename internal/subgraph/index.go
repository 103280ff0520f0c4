package subgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// DefaultSchedule refreshes the index every five minutes.
const DefaultSchedule = "@every 5m"

// IndexConfig configures an Index.
type IndexConfig struct {
	Schedule       string
	RefreshTimeout time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
}

// Index keeps the last successful project listing. A failed refresh keeps
// the previous listing.
type Index struct {
	lister  Lister
	cron    *cron.Cron
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	projects  []Project
	updatedAt time.Time
	lastErr   error
}

// Snapshot is a copy of the index state.
type Snapshot struct {
	Projects  []Project `json:"projects"`
	UpdatedAt time.Time `json:"updatedAt"`
	Error     string    `json:"error,omitempty"`
}

// NewIndex creates an index refreshed on cfg.Schedule.
func NewIndex(lister Lister, cfg IndexConfig) (*Index, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("subgraph")
	}

	idx := &Index{
		lister:  lister,
		cron:    cron.New(),
		timeout: timeout,
		log:     log,
		metrics: cfg.Metrics,
	}
	if _, err := idx.cron.AddFunc(schedule, idx.scheduledRefresh); err != nil {
		return nil, fmt.Errorf("invalid index refresh schedule %q: %w", schedule, err)
	}
	return idx, nil
}

// Start performs an initial refresh and starts the schedule. An initial
// failure is logged; the index stays empty until a refresh succeeds.
func (i *Index) Start(ctx context.Context) {
	if err := i.Refresh(ctx); err != nil {
		i.log.WithError(err).Warn("initial project index refresh failed")
	}
	i.cron.Start()
}

// Stop stops the schedule and waits for a running refresh.
func (i *Index) Stop() {
	<-i.cron.Stop().Done()
}

func (i *Index) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	if err := i.Refresh(ctx); err != nil {
		i.log.WithError(err).Warn("project index refresh failed")
	}
}

// Refresh queries the subgraph now.
func (i *Index) Refresh(ctx context.Context) error {
	projects, err := i.lister.Projects(ctx)
	i.metrics.RecordIndexRefresh(len(projects), err)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		i.lastErr = err
		return err
	}
	i.projects = projects
	i.updatedAt = time.Now()
	i.lastErr = nil
	i.log.WithField("projects", len(projects)).Debug("project index refreshed")
	return nil
}

// Snapshot returns the current listing.
func (i *Index) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := Snapshot{
		Projects:  append([]Project(nil), i.projects...),
		UpdatedAt: i.updatedAt,
	}
	if i.lastErr != nil {
		snap.Error = i.lastErr.Error()
	}
	return snap
}
