package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/app/system"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/config"
	"github.com/R3E-Network/juicescan/internal/metadata"
	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/internal/project"
	"github.com/R3E-Network/juicescan/internal/subgraph"
	"github.com/R3E-Network/juicescan/internal/web"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	indexTimeout      = 30 * time.Second
)

// Application wires the dashboard components and manages their lifecycle.
type Application struct {
	cfg     *config.Config
	version string
	log     *logger.Logger
	metrics *metrics.Metrics
	manager *system.Manager

	Chains     *chain.Context
	Metadata   *metadata.Fetcher
	Index      *subgraph.Index
	Aggregator *project.Aggregator
	Actions    *actions.Service
	// Submitter is nil unless SIGNER_PRIVATE_KEY is set.
	Submitter *actions.Submitter

	redis      *metadata.RedisCache
	web        *web.Server
	httpServer *http.Server
	serveErr   chan error
	stopWork   context.CancelFunc
	listening  chan struct{}
	addr       net.Addr
}

// New builds a fully wired application from cfg.
func New(cfg *config.Config, version string) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	log := logger.New(cfg.Logging())
	m := metrics.New()

	networks, err := chain.LoadNetworks(cfg.ChainsFile)
	if err != nil {
		return nil, fmt.Errorf("load networks: %w", err)
	}
	chains, err := chain.NewContext(chain.ContextConfig{
		Networks:       networks,
		DefaultChainID: cfg.DefaultChainID,
		InfuraID:       cfg.InfuraID,
		Timeout:        cfg.ReadTimeout,
		RateLimit:      cfg.RPCRateLimit,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("chain context: %w", err)
	}

	a := &Application{
		cfg:       cfg,
		version:   version,
		log:       log,
		metrics:   m,
		manager:   system.NewManager(log.Named("system")),
		Chains:    chains,
		serveErr:  make(chan error, 1),
		listening: make(chan struct{}),
	}
	if err := a.wire(); err != nil {
		a.closeEarly()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire() error {
	cfg, log := a.cfg, a.log

	if cfg.SignerPrivateKey != "" {
		signer, err := chain.NewSigner(cfg.SignerPrivateKey)
		if err != nil {
			return fmt.Errorf("signer: %w", err)
		}
		if err := a.Chains.ConnectSigner(signer); err != nil {
			return err
		}
		a.Submitter, err = actions.NewSubmitter(a.Chains.Snapshot().Client, signer, actions.SubmitterConfig{
			Logger:  log.Named("actions"),
			Metrics: a.metrics,
		})
		if err != nil {
			return fmt.Errorf("submitter: %w", err)
		}
		log.WithField("account", signer.Address().Hex()).Info("local signer configured")
	}

	var shared metadata.SharedCache
	if cfg.RedisURL != "" {
		rc, err := metadata.NewRedisCache(cfg.RedisURL, metadata.DefaultRedisTTL)
		if err != nil {
			return err
		}
		a.redis = rc
		shared = rc
	}
	fetcher, err := metadata.NewFetcher(metadata.Config{
		GatewayHost: cfg.IPFSGatewayHost,
		CacheSize:   cfg.MetadataCacheSize,
		Timeout:     cfg.ReadTimeout,
		Shared:      shared,
		Logger:      log.Named("metadata"),
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}
	a.Metadata = fetcher

	a.Index, err = subgraph.NewIndex(subgraph.NewClient(cfg.SubgraphURL, cfg.ReadTimeout), subgraph.IndexConfig{
		Schedule:       cfg.IndexRefreshSchedule,
		RefreshTimeout: indexTimeout,
		Logger:         log.Named("subgraph"),
		Metrics:        a.metrics,
	})
	if err != nil {
		return err
	}

	resolver := project.ContextResolver{Chains: a.Chains}
	a.Aggregator, err = project.NewAggregator(project.Config{
		Resolver: resolver,
		Metadata: fetcher,
		Timeout:  cfg.ReadTimeout,
		Logger:   log.Named("project"),
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}

	var sender actions.Sender
	if a.Submitter != nil {
		sender = a.Submitter
	}
	a.Actions, err = actions.NewService(a.Chains, resolver, sender)
	if err != nil {
		return err
	}
	return nil
}

// closeEarly releases what New acquired before a wiring failure.
func (a *Application) closeEarly() {
	if a.Submitter != nil {
		a.Submitter.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.Chains.Close()
}

// Listening is closed once the HTTP server accepts connections.
func (a *Application) Listening() <-chan struct{} { return a.listening }

// Addr returns the bound HTTP address. It is valid after Listening closes.
func (a *Application) Addr() string { return a.addr.String() }

// Logger returns the application logger.
func (a *Application) Logger() *logger.Logger { return a.log }

// Run starts every service and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	if err := a.register(); err != nil {
		return err
	}
	if err := a.manager.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-a.serveErr:
		a.log.WithError(runErr).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the services in reverse start order.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Close releases the components of an application that was never Run.
func (a *Application) Close() {
	a.closeEarly()
}

// Handler returns the HTTP handler, building the web server on first use.
func (a *Application) Handler() (http.Handler, error) {
	if a.web == nil {
		srv, err := web.NewServer(web.Config{
			Version:                a.version,
			Loader:                 a.Aggregator,
			Actions:                a.Actions,
			Chains:                 a.Chains,
			Index:                  a.Index,
			WalletConnectProjectID: a.cfg.WalletConnectProjectID,
			AllowedOrigins:         a.cfg.AllowedOrigins(),
			RateLimit:              a.cfg.HTTPRateLimit,
			Logger:                 a.log.Named("web"),
			Metrics:                a.metrics,
		})
		if err != nil {
			return nil, err
		}
		a.web = srv
	}
	return a.web.Router(), nil
}

func (a *Application) register() error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	a.httpServer = &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	services := []system.Service{
		system.FuncService{
			ServiceName: "chains",
			OnStop: func(context.Context) error {
				a.Chains.Close()
				return nil
			},
		},
		system.FuncService{
			ServiceName: "metadata",
			OnStart: func(ctx context.Context) error {
				if a.redis == nil {
					return nil
				}
				if err := a.redis.Ping(ctx); err != nil {
					// Lookups fall back to the gateway while Redis is down.
					a.log.WithError(err).Warn("redis metadata cache unreachable")
				}
				return nil
			},
			OnStop: func(context.Context) error {
				if a.redis == nil {
					return nil
				}
				return a.redis.Close()
			},
		},
		system.FuncService{
			ServiceName: "submitter",
			OnStop: func(context.Context) error {
				if a.Submitter != nil {
					a.Submitter.Close()
				}
				return nil
			},
		},
		system.FuncService{
			ServiceName: "index",
			OnStart: func(ctx context.Context) error {
				a.Index.Start(ctx)
				return nil
			},
			OnStop: func(context.Context) error {
				a.Index.Stop()
				return nil
			},
		},
		system.FuncService{
			ServiceName: "http",
			OnStart:     a.startHTTP,
			OnStop:      a.stopHTTP,
		},
	}
	for _, svc := range services {
		if err := a.manager.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) startHTTP(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	workCtx, cancel := context.WithCancel(context.Background())
	a.stopWork = cancel
	go a.web.RunMaintenance(workCtx)

	a.addr = ln.Addr()
	close(a.listening)
	a.log.WithField("addr", a.addr.String()).Info("HTTP server listening")
	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
	}()
	return nil
}

func (a *Application) stopHTTP(ctx context.Context) error {
	if a.stopWork != nil {
		a.stopWork()
	}
	return a.httpServer.Shutdown(ctx)
}
