package actions

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/juicebox"
)

// Demo launch parameters.
const (
	DemoProjectURI     = "Qme7UdAovaq9N9SMtMKoTcAHazD7igPknVXojAQc244Jvi"
	DemoMemo           = "hi"
	DemoDuration       = 86400
	DemoDecayRate      = 69_000_000
	DemoReservedRate   = 6900
	DemoRedemptionRate = 4200
)

// DemoTerminal is the terminal configured on demo launches unless the
// network registry names another.
var DemoTerminal = common.HexToAddress("0xa731EE2C4A8B513a481b6a916209aC8Ac64cab8F")

// LaunchArgs returns the fixed demo launch for owner: one day-long ruleset
// paying everything out to owner, accepting the native token on terminal.
func LaunchArgs(owner, terminal common.Address) juicebox.LaunchParams {
	return juicebox.LaunchParams{
		Owner:      owner,
		ProjectURI: DemoProjectURI,
		Rulesets: []juicebox.RulesetConfig{{
			MustStartAtOrAfter: big.NewInt(1),
			Duration:           DemoDuration,
			Weight:             new(big.Int).Exp(big.NewInt(10), big.NewInt(juicebox.WeightDecimals), nil),
			DecayRate:          DemoDecayRate,
			Metadata: juicebox.RulesetMetadata{
				ReservedRate:   DemoReservedRate,
				RedemptionRate: DemoRedemptionRate,
			},
			SplitGroups: []juicebox.SplitGroup{{
				GroupID: big.NewInt(juicebox.PayoutSplitGroup),
				Splits: []juicebox.Split{{
					Percent:     juicebox.SplitsTotalPercent,
					ProjectID:   new(big.Int),
					Beneficiary: owner,
					LockedUntil: new(big.Int),
				}},
			}},
			FundAccessLimitGroups: []juicebox.FundAccessLimitGroup{},
		}},
		Terminals: []juicebox.TerminalConfig{{
			Terminal:       terminal,
			TokensToAccept: []common.Address{juicebox.NativeToken},
		}},
		Memo: DemoMemo,
	}
}

// LaunchTx builds the demo launch for owner on network.
func LaunchTx(network chain.Network, owner common.Address) (TxRequest, error) {
	controller, ok := network.Contracts.LaunchControllerAddress()
	if !ok {
		return TxRequest{}, fmt.Errorf("%s: launch controller %w", network.Name, ErrNotConfigured)
	}
	terminal, ok := network.Contracts.LaunchTerminalAddress()
	if !ok {
		terminal = DemoTerminal
	}
	data, err := juicebox.EncodeLaunchProjectFor(LaunchArgs(owner, terminal))
	if err != nil {
		return TxRequest{}, err
	}
	return newTxRequest(owner, controller, nil, data), nil
}
