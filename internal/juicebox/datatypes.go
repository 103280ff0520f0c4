package juicebox

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/format"
)

// NativeToken is the sentinel address terminals use for the chain's native
// currency.
var NativeToken = common.HexToAddress("0x000000000000000000000000000000000000EEEe")

// NativeCurrency is the currency id of NativeToken: the low 32 bits of its
// address.
const NativeCurrency uint32 = 61166

// Split groups.
const (
	ReservedTokenSplitGroup = 1
	PayoutSplitGroup        = 2
)

// Fixed-point denominators.
const (
	WeightDecimals      = 18
	EtherDecimals       = 18
	MaxDecayRate        = 1_000_000_000
	MaxReservedRate     = 10_000
	MaxRedemptionRate   = 10_000
	SplitsTotalPercent  = 1_000_000_000
	DecayRateDecimals   = 9
	SplitPortionDecimal = 9
	RateDecimals        = 4
)

// FixedInt is an integer with an implied number of decimals.
type FixedInt struct {
	Value    *big.Int
	Decimals int32
}

// Format renders the value with its decimals applied.
func (f FixedInt) Format() string {
	return format.FormatUnits(f.Value, f.Decimals)
}

// MarshalJSON encodes the raw integer as a decimal string.
func (f FixedInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(bigString(f.Value))
}

// FixedPortion is a fraction of Max.
type FixedPortion struct {
	FixedInt
	Max int64
}

// FormatPercentage renders Value/Max as a percentage without the % sign.
func (p FixedPortion) FormatPercentage() string {
	return format.FormatPercentage(p.Value, p.Max)
}

// MarshalJSON encodes the raw value and its percentage.
func (p FixedPortion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value      string `json:"value"`
		Percentage string `json:"percentage"`
	}{bigString(p.Value), p.FormatPercentage()})
}

type (
	// RulesetWeight is tokens issued per unit of base currency, 18 decimals.
	RulesetWeight struct{ FixedInt }
	// Ether is an amount of the native token in wei.
	Ether struct{ FixedInt }
	// DecayRate is the per-cycle weight reduction, out of 1e9.
	DecayRate struct{ FixedPortion }
	// ReservedRate is out of 10 000.
	ReservedRate struct{ FixedPortion }
	// RedemptionRate is out of 10 000.
	RedemptionRate struct{ FixedPortion }
	// SplitPortion is a split's share of its group, out of 1e9.
	SplitPortion struct{ FixedPortion }
)

// NewRulesetWeight wraps a raw ruleset weight with 18 decimals.
func NewRulesetWeight(v *big.Int) RulesetWeight {
	return RulesetWeight{FixedInt{Value: orZero(v), Decimals: WeightDecimals}}
}

// NewEther wraps a wei amount.
func NewEther(v *big.Int) Ether {
	return Ether{FixedInt{Value: orZero(v), Decimals: EtherDecimals}}
}

// NewDecayRate wraps a raw decay rate, out of 1e9.
func NewDecayRate(v uint32) DecayRate {
	return DecayRate{portion(new(big.Int).SetUint64(uint64(v)), DecayRateDecimals, MaxDecayRate)}
}

// NewReservedRate wraps a raw reserved rate, out of 10 000.
func NewReservedRate(v uint16) ReservedRate {
	return ReservedRate{portion(new(big.Int).SetUint64(uint64(v)), RateDecimals, MaxReservedRate)}
}

// NewRedemptionRate wraps a raw redemption rate, out of 10 000.
func NewRedemptionRate(v uint16) RedemptionRate {
	return RedemptionRate{portion(new(big.Int).SetUint64(uint64(v)), RateDecimals, MaxRedemptionRate)}
}

// NewSplitPortion wraps a raw split percent, out of 1e9.
func NewSplitPortion(v uint32) SplitPortion {
	return SplitPortion{portion(new(big.Int).SetUint64(uint64(v)), SplitPortionDecimal, SplitsTotalPercent)}
}

func portion(v *big.Int, decimals int32, max int64) FixedPortion {
	return FixedPortion{FixedInt: FixedInt{Value: v, Decimals: decimals}, Max: max}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Ruleset mirrors JBRuleset. Field order follows the ABI tuple.
type Ruleset struct {
	CycleNumber  *big.Int       `abi:"cycleNumber" json:"cycleNumber"`
	ID           *big.Int       `abi:"id" json:"id"`
	BasedOnID    *big.Int       `abi:"basedOnId" json:"basedOnId"`
	Start        *big.Int       `abi:"start" json:"start"`
	Duration     uint32         `abi:"duration" json:"duration"`
	Weight       *big.Int       `abi:"weight" json:"weight"`
	DecayRate    uint32         `abi:"decayRate" json:"decayRate"`
	ApprovalHook common.Address `abi:"approvalHook" json:"approvalHook"`
	Metadata     *big.Int       `abi:"metadata" json:"metadata"`
}

// RulesetWeight returns the issuance weight as a fixed-point value.
func (r Ruleset) RulesetWeight() RulesetWeight { return NewRulesetWeight(r.Weight) }

// RulesetDecayRate returns the decay rate as a fixed-point portion.
func (r Ruleset) RulesetDecayRate() DecayRate { return NewDecayRate(r.DecayRate) }

// HasApprovalHook reports whether an approval hook is set.
func (r Ruleset) HasApprovalHook() bool { return r.ApprovalHook != (common.Address{}) }

// RulesetMetadata mirrors JBRulesetMetadata. Field order follows the ABI tuple.
type RulesetMetadata struct {
	ReservedRate                  uint16         `abi:"reservedRate" json:"reservedRate"`
	RedemptionRate                uint16         `abi:"redemptionRate" json:"redemptionRate"`
	BaseCurrency                  uint32         `abi:"baseCurrency" json:"baseCurrency"`
	PausePay                      bool           `abi:"pausePay" json:"pausePay"`
	PauseCreditTransfers          bool           `abi:"pauseCreditTransfers" json:"pauseCreditTransfers"`
	AllowOwnerMinting             bool           `abi:"allowOwnerMinting" json:"allowOwnerMinting"`
	AllowTerminalMigration        bool           `abi:"allowTerminalMigration" json:"allowTerminalMigration"`
	AllowSetTerminals             bool           `abi:"allowSetTerminals" json:"allowSetTerminals"`
	AllowControllerMigration      bool           `abi:"allowControllerMigration" json:"allowControllerMigration"`
	AllowSetController            bool           `abi:"allowSetController" json:"allowSetController"`
	HoldFees                      bool           `abi:"holdFees" json:"holdFees"`
	UseTotalSurplusForRedemptions bool           `abi:"useTotalSurplusForRedemptions" json:"useTotalSurplusForRedemptions"`
	UseDataHookForPay             bool           `abi:"useDataHookForPay" json:"useDataHookForPay"`
	UseDataHookForRedeem          bool           `abi:"useDataHookForRedeem" json:"useDataHookForRedeem"`
	DataHook                      common.Address `abi:"dataHook" json:"dataHook"`
	Metadata                      uint16         `abi:"metadata" json:"metadata"`
}

// Reserved returns the reserved rate as a fixed-point portion.
func (m RulesetMetadata) Reserved() ReservedRate { return NewReservedRate(m.ReservedRate) }

// Redemption returns the redemption rate as a fixed-point portion.
func (m RulesetMetadata) Redemption() RedemptionRate { return NewRedemptionRate(m.RedemptionRate) }

// Flag is a named boolean ruleset permission.
type Flag struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Flags lists the boolean permissions in display order.
func (m RulesetMetadata) Flags() []Flag {
	return []Flag{
		{"pausePay", m.PausePay},
		{"pauseCreditTransfers", m.PauseCreditTransfers},
		{"allowOwnerMinting", m.AllowOwnerMinting},
		{"allowTerminalMigration", m.AllowTerminalMigration},
		{"allowSetTerminals", m.AllowSetTerminals},
		{"allowControllerMigration", m.AllowControllerMigration},
		{"allowSetController", m.AllowSetController},
		{"holdFees", m.HoldFees},
		{"useTotalSurplusForRedemptions", m.UseTotalSurplusForRedemptions},
		{"useDataHookForPay", m.UseDataHookForPay},
		{"useDataHookForRedeem", m.UseDataHookForRedeem},
	}
}

// RulesetWithMetadata is the pair returned by the controller's ruleset reads.
type RulesetWithMetadata struct {
	Ruleset  Ruleset         `json:"ruleset"`
	Metadata RulesetMetadata `json:"metadata"`
}

// Split mirrors JBSplit.
type Split struct {
	PreferAddToBalance bool           `abi:"preferAddToBalance" json:"preferAddToBalance"`
	Percent            uint32         `abi:"percent" json:"percent"`
	ProjectID          *big.Int       `abi:"projectId" json:"projectId"`
	Beneficiary        common.Address `abi:"beneficiary" json:"beneficiary"`
	LockedUntil        *big.Int       `abi:"lockedUntil" json:"lockedUntil"`
	Hook               common.Address `abi:"hook" json:"hook"`
}

// Portion returns the split's share as a fixed-point portion.
func (s Split) Portion() SplitPortion { return NewSplitPortion(s.Percent) }

// SplitGroup mirrors JBSplitGroup.
type SplitGroup struct {
	GroupID *big.Int `abi:"groupId"`
	Splits  []Split  `abi:"splits"`
}

// CurrencyAmount mirrors JBCurrencyAmount.
type CurrencyAmount struct {
	Amount   *big.Int `abi:"amount"`
	Currency uint32   `abi:"currency"`
}

// FundAccessLimitGroup mirrors JBFundAccessLimitGroup.
type FundAccessLimitGroup struct {
	Terminal          common.Address   `abi:"terminal"`
	Token             common.Address   `abi:"token"`
	PayoutLimits      []CurrencyAmount `abi:"payoutLimits"`
	SurplusAllowances []CurrencyAmount `abi:"surplusAllowances"`
}

// RulesetConfig mirrors JBRulesetConfig.
type RulesetConfig struct {
	MustStartAtOrAfter    *big.Int               `abi:"mustStartAtOrAfter"`
	Duration              uint32                 `abi:"duration"`
	Weight                *big.Int               `abi:"weight"`
	DecayRate             uint32                 `abi:"decayRate"`
	ApprovalHook          common.Address         `abi:"approvalHook"`
	Metadata              RulesetMetadata        `abi:"metadata"`
	SplitGroups           []SplitGroup           `abi:"splitGroups"`
	FundAccessLimitGroups []FundAccessLimitGroup `abi:"fundAccessLimitGroups"`
}

// TerminalConfig mirrors JBTerminalConfig.
type TerminalConfig struct {
	Terminal       common.Address   `abi:"terminal"`
	TokensToAccept []common.Address `abi:"tokensToAccept"`
}

// Token describes a project's ERC-20.
type Token struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}
