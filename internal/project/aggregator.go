// Package project aggregates contract reads and metadata for one project
// into a View.
package project

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/juicebox"
	"github.com/R3E-Network/juicescan/internal/metadata"
	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// ErrInvalidProjectID is returned for missing or non-positive project ids.
var ErrInvalidProjectID = errors.New("invalid project id")

// ErrNoPrimaryTerminal is the primary terminal field's error when the
// directory has no native-token terminal for the project.
var ErrNoPrimaryTerminal = errors.New("project has no primary native terminal")

// DefaultLoadTimeout bounds one Load.
const DefaultLoadTimeout = 20 * time.Second

// MetadataSource resolves metadata documents. Fetch returns nil when the
// document is unavailable.
type MetadataSource interface {
	Fetch(ctx context.Context, cid string) *metadata.Metadata
}

// Resolver returns the reader and network for a chain id; 0 selects the
// active network.
type Resolver interface {
	Resolve(chainID uint64) (*juicebox.Reader, chain.Network, error)
}

// Request identifies what to load.
type Request struct {
	ChainID   uint64
	ProjectID *big.Int
	Selection Selection
}

// Update is delivered to observers as fields resolve.
type Update struct {
	Generation uint64      `json:"generation,omitempty"`
	Field      string      `json:"field,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	// Final is set on the last update of a load.
	Final bool   `json:"final,omitempty"`
	State State  `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// Observer receives updates. Calls for one load are serialized.
type Observer func(Update)

// Config configures an Aggregator.
type Config struct {
	Resolver Resolver
	Metadata MetadataSource
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

// Aggregator loads project views.
type Aggregator struct {
	resolver Resolver
	metadata MetadataSource
	timeout  time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver required")
	}
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("metadata source required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("project")
	}
	return &Aggregator{
		resolver: cfg.Resolver,
		metadata: cfg.Metadata,
		timeout:  timeout,
		log:      log,
		metrics:  cfg.Metrics,
	}, nil
}

// loader holds the state of one Load.
type loader struct {
	ctx      context.Context
	g        errgroup.Group
	mu       sync.Mutex
	view     *View
	observer Observer
	metrics  *metrics.Metrics
}

// run starts fn and records its result in dst. Every goroutine returns nil:
// a failed read only marks its own field.
func run[T any](l *loader, name string, dst *Field[T], fn func(ctx context.Context) (T, error)) *promise[T] {
	p := newPromise[T]()
	l.g.Go(func() error {
		v, err := fn(l.ctx)
		l.mu.Lock()
		if err != nil {
			*dst = Field[T]{Err: err}
		} else {
			*dst = Field[T]{Value: v, Resolved: true}
		}
		l.metrics.RecordField(name, err)
		if l.observer != nil {
			u := Update{Field: name, Value: *dst}
			if err != nil {
				u.Error = err.Error()
			}
			l.observer(u)
		}
		l.mu.Unlock()
		p.resolve(v, err)
		return nil
	})
	return p
}

// Load reads every field of the project. Independent reads run in parallel;
// a read whose arguments come from another read waits for it. The returned
// view is complete: every field is resolved or carries its error. The error
// is non-nil only for invalid requests or when ctx is cancelled.
//
// Reads are not pinned to a block, so two fields may reflect different
// heights, including the current and next rulesets.
func (a *Aggregator) Load(ctx context.Context, req Request, observer Observer) (*View, error) {
	if req.ProjectID == nil || req.ProjectID.Sign() <= 0 {
		return nil, ErrInvalidProjectID
	}
	reader, network, err := a.resolver.Resolve(req.ChainID)
	if err != nil {
		return nil, err
	}
	sel := req.Selection
	if sel == "" {
		sel = SelectionCurrent
	}

	lctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pid := new(big.Int).Set(req.ProjectID)
	view := &View{ProjectID: pid, Network: network, ChainID: network.ID, Selection: sel}
	l := &loader{ctx: lctx, view: view, observer: observer, metrics: a.metrics}
	start := time.Now()

	token := juicebox.NativeToken
	cur := juicebox.NativeCurrency

	run(l, FieldOwner, &view.Owner, func(ctx context.Context) (common.Address, error) {
		return reader.OwnerOf(ctx, pid)
	})
	run(l, FieldToken, &view.Token, func(ctx context.Context) (*juicebox.Token, error) {
		addr, err := reader.TokenOf(ctx, pid)
		if err != nil || addr == (common.Address{}) {
			return nil, err
		}
		info, err := reader.TokenInfo(ctx, addr)
		if err != nil {
			return nil, err
		}
		return &info, nil
	})

	controller := run(l, FieldController, &view.Controller, func(ctx context.Context) (common.Address, error) {
		return reader.ControllerOf(ctx, pid)
	})
	terminal := run(l, FieldPrimaryTerminal, &view.PrimaryTerminal, func(ctx context.Context) (common.Address, error) {
		addr, err := reader.PrimaryTerminalOf(ctx, pid, token)
		if err == nil && addr == (common.Address{}) {
			err = ErrNoPrimaryTerminal
		}
		return addr, err
	})

	// controller-scoped
	uri := run(l, FieldMetadataURI, &view.MetadataURI, func(ctx context.Context) (string, error) {
		c, err := controller.await(ctx, FieldController)
		if err != nil {
			return "", err
		}
		return reader.URIOf(ctx, c, pid)
	})
	run(l, FieldMetadata, &view.Metadata, func(ctx context.Context) (*metadata.Metadata, error) {
		cid, err := uri.await(ctx, FieldMetadataURI)
		if err != nil {
			return nil, err
		}
		return a.metadata.Fetch(ctx, cid), nil
	})
	current := run(l, FieldCurrentRuleset, &view.CurrentRuleset, func(ctx context.Context) (juicebox.RulesetWithMetadata, error) {
		c, err := controller.await(ctx, FieldController)
		if err != nil {
			return juicebox.RulesetWithMetadata{}, err
		}
		return reader.CurrentRulesetOf(ctx, c, pid)
	})
	upcoming := run(l, FieldUpcomingRuleset, &view.UpcomingRuleset, func(ctx context.Context) (juicebox.RulesetWithMetadata, error) {
		c, err := controller.await(ctx, FieldController)
		if err != nil {
			return juicebox.RulesetWithMetadata{}, err
		}
		return reader.UpcomingRulesetOf(ctx, c, pid)
	})
	run(l, FieldPendingReserved, &view.PendingReserved, func(ctx context.Context) (*big.Int, error) {
		c, err := controller.await(ctx, FieldController)
		if err != nil {
			return nil, err
		}
		return reader.PendingReservedTokenBalanceOf(ctx, c, pid)
	})
	limits := run(l, FieldFundAccessLimits, &view.FundAccessLimits, func(ctx context.Context) (common.Address, error) {
		c, err := controller.await(ctx, FieldController)
		if err != nil {
			return common.Address{}, err
		}
		return reader.FundAccessLimitsOf(ctx, c)
	})

	// terminal-scoped
	run(l, FieldSurplus, &view.Surplus, func(ctx context.Context) (*big.Int, error) {
		t, err := terminal.await(ctx, FieldPrimaryTerminal)
		if err != nil {
			return nil, err
		}
		return reader.CurrentSurplusOf(ctx, t, pid, juicebox.EtherDecimals, cur)
	})
	store := run(l, FieldStore, &view.Store, func(ctx context.Context) (common.Address, error) {
		t, err := terminal.await(ctx, FieldPrimaryTerminal)
		if err != nil {
			return common.Address{}, err
		}
		return reader.StoreOf(ctx, t)
	})
	run(l, FieldBalance, &view.Balance, func(ctx context.Context) (*big.Int, error) {
		t, err := terminal.await(ctx, FieldPrimaryTerminal)
		if err != nil {
			return nil, err
		}
		s, err := store.await(ctx, FieldStore)
		if err != nil {
			return nil, err
		}
		return reader.BalanceOf(ctx, s, t, pid, token)
	})

	// ruleset-scoped
	selected, selectedName := current, FieldCurrentRuleset
	if sel == SelectionNext {
		selected, selectedName = upcoming, FieldUpcomingRuleset
	}
	splits := func(group int64) func(ctx context.Context) ([]juicebox.Split, error) {
		return func(ctx context.Context) ([]juicebox.Split, error) {
			rs, err := selected.await(ctx, selectedName)
			if err != nil {
				return nil, err
			}
			return reader.SplitsOf(ctx, pid, rs.Ruleset.ID, group)
		}
	}
	run(l, FieldPayoutSplits, &view.PayoutSplits, splits(juicebox.PayoutSplitGroup))
	run(l, FieldReservedSplits, &view.ReservedSplits, splits(juicebox.ReservedTokenSplitGroup))

	type limitArgs struct {
		ruleset  juicebox.Ruleset
		terminal common.Address
		contract common.Address
	}
	// awaitLimit gathers the ruleset, the terminal and either the fund
	// access limits contract or the store.
	awaitLimit := func(ctx context.Context, contract *promise[common.Address], contractName string) (limitArgs, error) {
		rs, err := selected.await(ctx, selectedName)
		if err != nil {
			return limitArgs{}, err
		}
		t, err := terminal.await(ctx, FieldPrimaryTerminal)
		if err != nil {
			return limitArgs{}, err
		}
		c, err := contract.await(ctx, contractName)
		if err != nil {
			return limitArgs{}, err
		}
		return limitArgs{ruleset: rs.Ruleset, terminal: t, contract: c}, nil
	}

	run(l, FieldPayoutLimit, &view.PayoutLimit, func(ctx context.Context) (*big.Int, error) {
		args, err := awaitLimit(ctx, limits, FieldFundAccessLimits)
		if err != nil {
			return nil, err
		}
		return reader.PayoutLimitOf(ctx, args.contract, pid, args.ruleset.ID, args.terminal, token, cur)
	})
	run(l, FieldSurplusAllowance, &view.SurplusAllowance, func(ctx context.Context) (*big.Int, error) {
		args, err := awaitLimit(ctx, limits, FieldFundAccessLimits)
		if err != nil {
			return nil, err
		}
		return reader.SurplusAllowanceOf(ctx, args.contract, pid, args.ruleset.ID, args.terminal, token, cur)
	})
	run(l, FieldUsedPayoutLimit, &view.UsedPayoutLimit, func(ctx context.Context) (*big.Int, error) {
		args, err := awaitLimit(ctx, store, FieldStore)
		if err != nil {
			return nil, err
		}
		return reader.UsedPayoutLimitOf(ctx, args.contract, args.terminal, pid, token, args.ruleset.CycleNumber, cur)
	})
	run(l, FieldUsedSurplusAllowance, &view.UsedSurplusAllowance, func(ctx context.Context) (*big.Int, error) {
		args, err := awaitLimit(ctx, store, FieldStore)
		if err != nil {
			return nil, err
		}
		return reader.UsedSurplusAllowanceOf(ctx, args.contract, args.terminal, pid, token, args.ruleset.ID, cur)
	})

	_ = l.g.Wait()

	state := view.State()
	a.log.WithContext(ctx).WithFields(map[string]interface{}{
		"project_id":  pid.String(),
		"chain_id":    network.ID,
		"selection":   string(sel),
		"state":       string(state),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("project loaded")

	if err := ctx.Err(); err != nil {
		return view, err
	}
	return view, nil
}
