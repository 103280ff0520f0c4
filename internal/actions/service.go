package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/format"
	"github.com/R3E-Network/juicescan/internal/juicebox"
	"github.com/R3E-Network/juicescan/internal/project"
)

var (
	// ErrInvalidAccount is returned for malformed account addresses.
	ErrInvalidAccount = errors.New("invalid account address")
	// ErrInvalidTxHash is returned for malformed transaction hashes.
	ErrInvalidTxHash = errors.New("invalid transaction hash")
)

// Sender signs and sends transactions. *Submitter satisfies it.
type Sender interface {
	Account() common.Address
	Submit(ctx context.Context, action string, req TxRequest) (TxStatus, error)
}

// Result carries either an unsigned request for a browser wallet or the
// status of a transaction sent with the local signer.
type Result struct {
	ChainID   uint64     `json:"chainId"`
	Request   *TxRequest `json:"request,omitempty"`
	Submitted *TxStatus  `json:"submitted,omitempty"`
	Explorer  string     `json:"explorer,omitempty"`
}

// Service builds pay and launch transactions against the configured
// networks. A service from NewService only hands back unsigned requests for
// the caller's own account; see Local.
type Service struct {
	chains   *chain.Context
	resolver project.Resolver
	sender   Sender
	local    bool
}

// NewService creates a service. sender may be nil when no local key is
// configured.
func NewService(chains *chain.Context, resolver project.Resolver, sender Sender) (*Service, error) {
	if chains == nil || resolver == nil {
		return nil, fmt.Errorf("chains and resolver are required")
	}
	return &Service{chains: chains, resolver: resolver, sender: sender}, nil
}

// Local returns a copy of s that acts as the local signer: an empty account
// selects the signer's, and transactions it owns on the active network are
// signed and sent. Only the operator's command line uses it; web handlers
// must never reach the local key.
func (s *Service) Local() *Service {
	c := *s
	c.local = true
	return &c
}

// Pay builds a payment of amountText native tokens to projectID. account
// is the paying account; without one, ErrNoAccount unless s is Local.
func (s *Service) Pay(ctx context.Context, projectID *big.Int, amountText, account string, chainID uint64) (Result, error) {
	payer, err := s.payer(account)
	if err != nil {
		return Result{}, err
	}
	args, err := BuildPayArgs(projectID, amountText, payer)
	if err != nil {
		return Result{}, err
	}
	if args == nil {
		return Result{}, ErrNoAccount
	}
	network, err := s.network(chainID)
	if err != nil {
		return Result{}, err
	}
	terminal, err := s.primaryTerminal(ctx, network.ID, projectID)
	if err != nil {
		return Result{}, err
	}
	tx, err := args.Tx(terminal)
	if err != nil {
		return Result{}, err
	}
	return s.dispatch(ctx, network, "pay", tx)
}

// Launch builds the demo project launch for owner, or the local signer when
// s is Local.
func (s *Service) Launch(ctx context.Context, owner string, chainID uint64) (Result, error) {
	from, err := s.payer(owner)
	if err != nil {
		return Result{}, err
	}
	if from == nil {
		return Result{}, ErrNoAccount
	}
	network, err := s.network(chainID)
	if err != nil {
		return Result{}, err
	}
	tx, err := LaunchTx(network, *from)
	if err != nil {
		return Result{}, err
	}
	return s.dispatch(ctx, network, "launch", tx)
}

// Signer reports whether a local key is configured.
func (s *Service) Signer() bool { return s.sender != nil }

// payer picks the requested account, else the local signer's on a Local
// service. Nil means no account is connected.
func (s *Service) payer(requested string) (*common.Address, error) {
	if requested != "" {
		if !common.IsHexAddress(requested) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, requested)
		}
		addr := common.HexToAddress(requested)
		return &addr, nil
	}
	if s.local && s.sender != nil {
		addr := s.sender.Account()
		return &addr, nil
	}
	return nil, nil
}

// TxStatus reports the on-chain state of hash: pending until a receipt
// exists, then confirmed or failed. chainID 0 selects the active network.
func (s *Service) TxStatus(ctx context.Context, chainID uint64, hash string) (TxStatus, error) {
	if !isTxHash(hash) {
		return TxStatus{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, hash)
	}
	snap, err := s.snapshot(chainID)
	if err != nil {
		return TxStatus{}, err
	}
	receipt, err := snap.Client.TransactionReceipt(ctx, hash)
	if err != nil {
		return TxStatus{}, err
	}
	status := TxStatus{Hash: hash, Status: StatusPending}
	if receipt == nil {
		return status, nil
	}
	status.BlockNumber = receipt.BlockNumber
	if receipt.Succeeded() {
		status.Status = StatusConfirmed
	} else {
		status.Status = StatusFailed
		status.Error = chain.ErrTxReverted.Error()
	}
	return status, nil
}

func isTxHash(hash string) bool {
	b, err := hexutil.Decode(hash)
	return err == nil && len(b) == common.HashLength
}

// network resolves chainID; 0 selects the active network.
func (s *Service) network(chainID uint64) (chain.Network, error) {
	snap, err := s.snapshot(chainID)
	if err != nil {
		return chain.Network{}, err
	}
	return snap.Network, nil
}

func (s *Service) snapshot(chainID uint64) (chain.Snapshot, error) {
	if chainID == 0 {
		return s.chains.Snapshot(), nil
	}
	return s.chains.ForChain(chainID)
}

func (s *Service) primaryTerminal(ctx context.Context, chainID uint64, projectID *big.Int) (common.Address, error) {
	reader, _, err := s.resolver.Resolve(chainID)
	if err != nil {
		return common.Address{}, err
	}
	terminal, err := reader.PrimaryTerminalOf(ctx, projectID, juicebox.NativeToken)
	if err != nil {
		return common.Address{}, err
	}
	if terminal == (common.Address{}) {
		return common.Address{}, project.ErrNoPrimaryTerminal
	}
	return terminal, nil
}

// dispatch sends tx when s is Local, the local signer owns it and the
// network is the active one, and otherwise hands it back unsigned.
func (s *Service) dispatch(ctx context.Context, network chain.Network, action string, tx TxRequest) (Result, error) {
	res := Result{ChainID: network.ID}
	if !s.local || s.sender == nil || s.sender.Account() != tx.From || network.ID != s.chains.Snapshot().Network.ID {
		res.Request = &tx
		return res, nil
	}
	status, err := s.sender.Submit(ctx, action, tx)
	if err != nil {
		return Result{}, err
	}
	res.Submitted = &status
	res.Explorer = format.ExplorerLink(network.Explorer, format.LinkTx, status.Hash)
	return res, nil
}
