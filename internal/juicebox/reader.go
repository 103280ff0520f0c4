package juicebox

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Contracts holds the network-wide singletons. Controllers, terminals,
// stores and fund access limits are resolved per project.
type Contracts struct {
	Projects  common.Address
	Directory common.Address
	Splits    common.Address
	Tokens    common.Address
}

// Reader issues typed reads against one network.
type Reader struct {
	caller    Caller
	contracts Contracts
}

// NewReader creates a reader.
func NewReader(caller Caller, contracts Contracts) *Reader {
	return &Reader{caller: caller, contracts: contracts}
}

func (r *Reader) call(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", method, err)
	}
	raw, err := r.caller.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack: %w", method, err)
	}
	return out, nil
}

func (r *Reader) address(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...interface{}) (common.Address, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (r *Reader) uint256(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (r *Reader) str(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...interface{}) (string, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func currency(c uint32) *big.Int { return new(big.Int).SetUint64(uint64(c)) }

// =============================================================================
// Projects / Directory / Tokens
// =============================================================================

// OwnerOf returns the owner of the project NFT.
func (r *Reader) OwnerOf(ctx context.Context, projectID *big.Int) (common.Address, error) {
	return r.address(ctx, &ProjectsABI, r.contracts.Projects, "ownerOf", projectID)
}

// ControllerOf returns the project's controller.
func (r *Reader) ControllerOf(ctx context.Context, projectID *big.Int) (common.Address, error) {
	return r.address(ctx, &DirectoryABI, r.contracts.Directory, "controllerOf", projectID)
}

// PrimaryTerminalOf returns the project's primary terminal for token.
func (r *Reader) PrimaryTerminalOf(ctx context.Context, projectID *big.Int, token common.Address) (common.Address, error) {
	return r.address(ctx, &DirectoryABI, r.contracts.Directory, "primaryTerminalOf", projectID, token)
}

// TokenOf returns the project's ERC-20, or the zero address when none was
// deployed.
func (r *Reader) TokenOf(ctx context.Context, projectID *big.Int) (common.Address, error) {
	return r.address(ctx, &TokensABI, r.contracts.Tokens, "tokenOf", projectID)
}

// TokenInfo reads the ERC-20 name, symbol and decimals.
func (r *Reader) TokenInfo(ctx context.Context, token common.Address) (Token, error) {
	name, err := r.str(ctx, &ERC20ABI, token, "name")
	if err != nil {
		return Token{}, err
	}
	symbol, err := r.str(ctx, &ERC20ABI, token, "symbol")
	if err != nil {
		return Token{}, err
	}
	out, err := r.call(ctx, &ERC20ABI, token, "decimals")
	if err != nil {
		return Token{}, err
	}
	decimals := *abi.ConvertType(out[0], new(uint8)).(*uint8)
	return Token{Address: token, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

// =============================================================================
// Controller
// =============================================================================

// URIOf returns the project's metadata content identifier.
func (r *Reader) URIOf(ctx context.Context, controller common.Address, projectID *big.Int) (string, error) {
	return r.str(ctx, &ControllerABI, controller, "uriOf", projectID)
}

// CurrentRulesetOf returns the active ruleset and its metadata.
func (r *Reader) CurrentRulesetOf(ctx context.Context, controller common.Address, projectID *big.Int) (RulesetWithMetadata, error) {
	return r.ruleset(ctx, controller, "currentRulesetOf", projectID)
}

// UpcomingRulesetOf returns the next queued ruleset and its metadata.
func (r *Reader) UpcomingRulesetOf(ctx context.Context, controller common.Address, projectID *big.Int) (RulesetWithMetadata, error) {
	return r.ruleset(ctx, controller, "upcomingRulesetOf", projectID)
}

func (r *Reader) ruleset(ctx context.Context, controller common.Address, method string, projectID *big.Int) (RulesetWithMetadata, error) {
	out, err := r.call(ctx, &ControllerABI, controller, method, projectID)
	if err != nil {
		return RulesetWithMetadata{}, err
	}
	return RulesetWithMetadata{
		Ruleset:  *abi.ConvertType(out[0], new(Ruleset)).(*Ruleset),
		Metadata: *abi.ConvertType(out[1], new(RulesetMetadata)).(*RulesetMetadata),
	}, nil
}

// PendingReservedTokenBalanceOf returns reserved tokens not yet distributed.
func (r *Reader) PendingReservedTokenBalanceOf(ctx context.Context, controller common.Address, projectID *big.Int) (*big.Int, error) {
	return r.uint256(ctx, &ControllerABI, controller, "pendingReservedTokenBalanceOf", projectID)
}

// FundAccessLimitsOf returns the fund access limits contract the controller
// reads payout limits and surplus allowances from.
func (r *Reader) FundAccessLimitsOf(ctx context.Context, controller common.Address) (common.Address, error) {
	return r.address(ctx, &ControllerABI, controller, "FUND_ACCESS_LIMITS")
}

// =============================================================================
// Terminal / Store
// =============================================================================

// CurrentSurplusOf returns the terminal's surplus for the project.
func (r *Reader) CurrentSurplusOf(ctx context.Context, terminal common.Address, projectID *big.Int, decimals int64, cur uint32) (*big.Int, error) {
	return r.uint256(ctx, &TerminalABI, terminal, "currentSurplusOf", projectID, big.NewInt(decimals), currency(cur))
}

// StoreOf returns the terminal's store.
func (r *Reader) StoreOf(ctx context.Context, terminal common.Address) (common.Address, error) {
	return r.address(ctx, &TerminalABI, terminal, "STORE")
}

// BalanceOf returns the project's token balance recorded for terminal.
func (r *Reader) BalanceOf(ctx context.Context, store, terminal common.Address, projectID *big.Int, token common.Address) (*big.Int, error) {
	return r.uint256(ctx, &TerminalStoreABI, store, "balanceOf", terminal, projectID, token)
}

// UsedPayoutLimitOf returns payouts already sent in the given cycle.
func (r *Reader) UsedPayoutLimitOf(ctx context.Context, store, terminal common.Address, projectID *big.Int, token common.Address, cycleNumber *big.Int, cur uint32) (*big.Int, error) {
	return r.uint256(ctx, &TerminalStoreABI, store, "usedPayoutLimitOf", terminal, projectID, token, cycleNumber, currency(cur))
}

// UsedSurplusAllowanceOf returns surplus allowance already used in the ruleset.
func (r *Reader) UsedSurplusAllowanceOf(ctx context.Context, store, terminal common.Address, projectID *big.Int, token common.Address, rulesetID *big.Int, cur uint32) (*big.Int, error) {
	return r.uint256(ctx, &TerminalStoreABI, store, "usedSurplusAllowanceOf", terminal, projectID, token, rulesetID, currency(cur))
}

// =============================================================================
// Fund access limits / Splits
// =============================================================================

// PayoutLimitOf returns the payout ceiling for the ruleset.
func (r *Reader) PayoutLimitOf(ctx context.Context, limits common.Address, projectID, rulesetID *big.Int, terminal, token common.Address, cur uint32) (*big.Int, error) {
	return r.uint256(ctx, &FundAccessLimitsABI, limits, "payoutLimitOf", projectID, rulesetID, terminal, token, currency(cur))
}

// SurplusAllowanceOf returns the surplus allowance for the ruleset.
func (r *Reader) SurplusAllowanceOf(ctx context.Context, limits common.Address, projectID, rulesetID *big.Int, terminal, token common.Address, cur uint32) (*big.Int, error) {
	return r.uint256(ctx, &FundAccessLimitsABI, limits, "surplusAllowanceOf", projectID, rulesetID, terminal, token, currency(cur))
}

// SplitsOf returns the splits of group for the ruleset.
func (r *Reader) SplitsOf(ctx context.Context, projectID, rulesetID *big.Int, group int64) ([]Split, error) {
	out, err := r.call(ctx, &SplitsABI, r.contracts.Splits, "splitsOf", projectID, rulesetID, big.NewInt(group))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]Split)).(*[]Split), nil
}
