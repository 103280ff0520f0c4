package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/metrics"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// DefaultMaxTracked is the number of transactions a Submitter remembers.
const DefaultMaxTracked = 1024

// ErrUnknownTx is returned for hashes this submitter did not send or no
// longer remembers.
var ErrUnknownTx = errors.New("unknown transaction")

// Backend sends signed transactions and observes their receipts.
// *chain.Client satisfies it.
type Backend interface {
	SendTransaction(ctx context.Context, signer *chain.Signer, to common.Address, value *big.Int, data []byte) (string, error)
	WaitForReceipt(ctx context.Context, txHash string, pollInterval time.Duration) (*chain.Receipt, error)
}

// TxStatus is the tracked state of a submitted transaction.
type TxStatus struct {
	Hash        string    `json:"hash"`
	Action      string    `json:"action"`
	Status      string    `json:"status"`
	BlockNumber string    `json:"blockNumber,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	PollInterval time.Duration
	WaitTimeout  time.Duration
	// MaxTracked caps remembered transactions; the least recently used
	// are forgotten first.
	MaxTracked   int
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
}

// Submitter signs and sends transactions with a local key and tracks them
// until they are mined. Failed sends are not retried.
type Submitter struct {
	backend Backend
	signer  *chain.Signer
	poll    time.Duration
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sendMu orders sends so each reads the pending nonce after the
	// previous broadcast.
	sendMu sync.Mutex

	// mu guards read-modify-write of txs entries.
	mu  sync.Mutex
	txs *lru.Cache[string, TxStatus]
}

// NewSubmitter creates a submitter sending from signer.
func NewSubmitter(backend Backend, signer *chain.Signer, cfg SubmitterConfig) (*Submitter, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer %w", ErrNotConfigured)
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = chain.DefaultPollInterval
	}
	timeout := cfg.WaitTimeout
	if timeout <= 0 {
		timeout = chain.DefaultTxWaitTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("actions")
	}
	size := cfg.MaxTracked
	if size <= 0 {
		size = DefaultMaxTracked
	}
	txs, err := lru.New[string, TxStatus](size)
	if err != nil {
		return nil, fmt.Errorf("create tx cache: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Submitter{
		backend: backend,
		signer:  signer,
		poll:    poll,
		timeout: timeout,
		log:     log,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		txs:     txs,
	}, nil
}

// Account returns the signing account.
func (s *Submitter) Account() common.Address {
	return s.signer.Address()
}

// Submit sends req and starts tracking it. The returned status is pending;
// use Status or Wait to observe the outcome.
func (s *Submitter) Submit(ctx context.Context, action string, req TxRequest) (TxStatus, error) {
	if req.From != (common.Address{}) && req.From != s.signer.Address() {
		return TxStatus{}, fmt.Errorf("request from %s cannot be signed by %s", req.From.Hex(), s.signer.Address().Hex())
	}
	s.sendMu.Lock()
	hash, err := s.backend.SendTransaction(ctx, s.signer, req.To, req.ValueInt(), req.Data)
	s.sendMu.Unlock()
	if err != nil {
		s.metrics.RecordTx(action, StatusFailed)
		s.log.WithContext(ctx).WithError(err).WithField("action", action).Warn("transaction send failed")
		return TxStatus{}, fmt.Errorf("%s: %w", action, err)
	}

	status := TxStatus{Hash: hash, Action: action, Status: StatusPending, SubmittedAt: time.Now().UTC()}
	s.mu.Lock()
	s.txs.Add(hash, status)
	s.mu.Unlock()
	s.metrics.RecordTx(action, StatusPending)
	s.log.WithContext(ctx).WithFields(map[string]interface{}{"action": action, "tx_hash": hash}).Info("transaction submitted")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.track(hash)
	}()
	return status, nil
}

func (s *Submitter) track(hash string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	receipt, err := s.backend.WaitForReceipt(ctx, hash, s.poll)

	s.mu.Lock()
	status, tracked := s.txs.Peek(hash)
	if !tracked {
		status = TxStatus{Hash: hash}
	}
	switch {
	case err == nil:
		status.Status = StatusConfirmed
	case errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		// Shutting down; leave it pending.
		s.mu.Unlock()
		return
	default:
		status.Status = StatusFailed
		status.Error = err.Error()
	}
	if receipt != nil {
		status.BlockNumber = receipt.BlockNumber
	}
	s.metrics.RecordTx(status.Action, status.Status)
	if tracked {
		s.txs.Add(hash, status)
	}
	s.mu.Unlock()

	entry := s.log.WithFields(map[string]interface{}{"action": status.Action, "tx_hash": hash, "status": status.Status})
	if err != nil {
		entry.WithError(err).Warn("transaction failed")
		return
	}
	entry.Info("transaction confirmed")
}

// Status returns the tracked status of hash.
func (s *Submitter) Status(hash string) (TxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.txs.Get(hash)
	if !ok {
		return TxStatus{}, ErrUnknownTx
	}
	return status, nil
}

// Wait polls the tracked status of hash until it leaves pending or ctx is done.
func (s *Submitter) Wait(ctx context.Context, hash string) (TxStatus, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		status, err := s.Status(hash)
		if err != nil || status.Status != StatusPending {
			return status, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops tracking and waits for trackers to exit.
func (s *Submitter) Close() {
	s.cancel()
	s.wg.Wait()
}
