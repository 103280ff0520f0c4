package juicebox

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PayParams are the arguments of terminal.pay.
type PayParams struct {
	ProjectID         *big.Int
	Token             common.Address
	Amount            *big.Int
	Beneficiary       common.Address
	MinReturnedTokens *big.Int
	Memo              string
	Metadata          []byte
}

// EncodePay returns calldata for terminal.pay.
func EncodePay(p PayParams) ([]byte, error) {
	if p.ProjectID == nil || p.Amount == nil {
		return nil, fmt.Errorf("pay: project id and amount are required")
	}
	minReturned := p.MinReturnedTokens
	if minReturned == nil {
		minReturned = new(big.Int)
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = []byte{}
	}
	data, err := TerminalABI.Pack("pay", p.ProjectID, p.Token, p.Amount, p.Beneficiary, minReturned, p.Memo, metadata)
	if err != nil {
		return nil, fmt.Errorf("pay: pack: %w", err)
	}
	return data, nil
}

// LaunchParams are the arguments of controller.launchProjectFor.
type LaunchParams struct {
	Owner      common.Address
	ProjectURI string
	Rulesets   []RulesetConfig
	Terminals  []TerminalConfig
	Memo       string
}

// EncodeLaunchProjectFor returns calldata for controller.launchProjectFor.
func EncodeLaunchProjectFor(p LaunchParams) ([]byte, error) {
	rulesets := make([]RulesetConfig, len(p.Rulesets))
	for i, rs := range p.Rulesets {
		if rs.MustStartAtOrAfter == nil || rs.Weight == nil {
			return nil, fmt.Errorf("launchProjectFor: ruleset %d: start and weight are required", i)
		}
		if rs.SplitGroups == nil {
			rs.SplitGroups = []SplitGroup{}
		}
		if rs.FundAccessLimitGroups == nil {
			rs.FundAccessLimitGroups = []FundAccessLimitGroup{}
		}
		rulesets[i] = rs
	}
	data, err := ControllerABI.Pack("launchProjectFor", p.Owner, p.ProjectURI, rulesets, p.Terminals, p.Memo)
	if err != nil {
		return nil, fmt.Errorf("launchProjectFor: pack: %w", err)
	}
	return data, nil
}
