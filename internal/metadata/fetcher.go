package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/R3E-Network/juicescan/internal/httputil"
	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// DefaultGatewayHost serves project metadata.
const DefaultGatewayHost = "jbm.infura-ipfs.io"

// DefaultCacheSize is the number of documents kept in memory.
const DefaultCacheSize = 1024

// DefaultTimeout bounds one shared gateway lookup.
const DefaultTimeout = 30 * time.Second

// Lookup results recorded in metrics.
const (
	resultMemoryHit = "memory_hit"
	resultSharedHit = "redis_hit"
	resultFetched   = "fetched"
	resultFailed    = "failed"
)

// Config configures a Fetcher.
type Config struct {
	// GatewayHost is a host name or a full base URL.
	GatewayHost string
	CacheSize   int
	Timeout     time.Duration
	Shared      SharedCache
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

// Fetcher resolves content identifiers to metadata, caching by identifier.
type Fetcher struct {
	client  *httputil.Client
	local   *lru.Cache[string, *Metadata]
	shared  SharedCache
	group   singleflight.Group
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	local, err := lru.New[string, *Metadata](size)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("metadata")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Fetcher{
		client:  httputil.NewClient(httputil.ClientConfig{BaseURL: GatewayURL(cfg.GatewayHost), Timeout: timeout}),
		local:   local,
		shared:  cfg.Shared,
		timeout: timeout,
		log:     log,
		metrics: cfg.Metrics,
	}, nil
}

// GatewayURL turns a gateway host into a base URL.
func GatewayURL(host string) string {
	if host == "" {
		host = DefaultGatewayHost
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

// Fetch returns the metadata for cid, or nil when it cannot be resolved.
// Failures are logged, never returned: absent metadata is a valid state.
func (f *Fetcher) Fetch(ctx context.Context, cid string) *Metadata {
	m, err := f.Lookup(ctx, cid)
	if err != nil {
		f.log.WithContext(ctx).WithError(err).WithField("cid", cid).Debug("metadata unavailable")
		return nil
	}
	return m
}

// Lookup resolves cid, reporting why it could not. Concurrent lookups of
// one cid share a single gateway request that no caller's cancellation can
// abort; a cancelled caller stops waiting and the others still get the
// document.
func (f *Fetcher) Lookup(ctx context.Context, cid string) (*Metadata, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, fmt.Errorf("empty content identifier")
	}
	if m, ok := f.local.Get(cid); ok {
		f.metrics.RecordMetadataLookup(resultMemoryHit)
		return m, nil
	}

	ch := f.group.DoChan(cid, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.resolve(shared, cid)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			f.metrics.RecordMetadataLookup(resultFailed)
			return nil, res.Err
		}
		return res.Val.(*Metadata), nil
	}
}

func (f *Fetcher) resolve(ctx context.Context, cid string) (*Metadata, error) {
	if f.shared != nil {
		raw, ok, err := f.shared.Get(ctx, cid)
		if err != nil {
			f.log.WithContext(ctx).WithError(err).Warn("shared metadata cache read failed")
		} else if ok {
			if m, perr := Parse(raw); perr == nil {
				f.local.Add(cid, m)
				f.metrics.RecordMetadataLookup(resultSharedHit)
				return m, nil
			}
		}
	}

	raw, err := f.client.Get(ctx, "/ipfs/"+cid)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", cid, err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cid, err)
	}

	f.local.Add(cid, m)
	if f.shared != nil {
		if err := f.shared.Set(ctx, cid, raw); err != nil {
			f.log.WithContext(ctx).WithError(err).Warn("shared metadata cache write failed")
		}
	}
	f.metrics.RecordMetadataLookup(resultFetched)
	return m, nil
}
