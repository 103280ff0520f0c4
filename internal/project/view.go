package project

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/juicebox"
	"github.com/R3E-Network/juicescan/internal/metadata"
)

// Selection picks which ruleset the ruleset-scoped fields describe.
type Selection string

const (
	SelectionCurrent Selection = "current"
	SelectionNext    Selection = "next"
)

// ParseSelection maps a query value to a Selection. Anything other than
// "next" selects the current ruleset.
func ParseSelection(s string) Selection {
	if Selection(s) == SelectionNext {
		return SelectionNext
	}
	return SelectionCurrent
}

// State summarizes how far a View has resolved.
type State string

const (
	// StateLoading: the primary terminal is not known yet.
	StateLoading State = "loading"
	// StatePartial: the primary terminal is known, other fields are pending
	// or failed.
	StatePartial State = "partial"
	// StateReady: every field resolved.
	StateReady State = "ready"
	// StateBlocked: the project has no primary native terminal, or it could
	// not be read.
	StateBlocked State = "blocked"
)

// Field names used in updates and metrics.
const (
	FieldOwner                = "owner"
	FieldController           = "controller"
	FieldPrimaryTerminal      = "primaryTerminal"
	FieldFundAccessLimits     = "fundAccessLimits"
	FieldStore                = "store"
	FieldMetadataURI          = "metadataUri"
	FieldMetadata             = "metadata"
	FieldCurrentRuleset       = "currentRuleset"
	FieldUpcomingRuleset      = "upcomingRuleset"
	FieldSurplus              = "surplus"
	FieldBalance              = "balance"
	FieldPendingReserved      = "pendingReservedTokens"
	FieldToken                = "token"
	FieldPayoutSplits         = "payoutSplits"
	FieldReservedSplits       = "reservedTokenSplits"
	FieldPayoutLimit          = "payoutLimit"
	FieldUsedPayoutLimit      = "usedPayoutLimit"
	FieldSurplusAllowance     = "surplusAllowance"
	FieldUsedSurplusAllowance = "usedSurplusAllowance"
)

// View is the denormalized state of one project. Reads are issued against
// the provider's latest block independently, so two fields may reflect
// different block heights.
type View struct {
	ProjectID *big.Int      `json:"projectId"`
	Network   chain.Network `json:"-"`
	ChainID   uint64        `json:"chainId"`
	Selection Selection     `json:"selection"`

	Owner            Field[common.Address] `json:"owner"`
	Controller       Field[common.Address] `json:"controller"`
	PrimaryTerminal  Field[common.Address] `json:"primaryTerminal"`
	FundAccessLimits Field[common.Address] `json:"fundAccessLimits"`
	Store            Field[common.Address] `json:"store"`

	MetadataURI Field[string] `json:"metadataUri"`
	// Metadata resolves to nil when the document is unavailable.
	Metadata Field[*metadata.Metadata] `json:"metadata"`

	CurrentRuleset  Field[juicebox.RulesetWithMetadata] `json:"currentRuleset"`
	UpcomingRuleset Field[juicebox.RulesetWithMetadata] `json:"upcomingRuleset"`

	Surplus         Field[*big.Int] `json:"surplus"`
	Balance         Field[*big.Int] `json:"balance"`
	PendingReserved Field[*big.Int] `json:"pendingReservedTokens"`
	// Token resolves to nil when the project has no ERC-20.
	Token Field[*juicebox.Token] `json:"token"`

	PayoutSplits         Field[[]juicebox.Split] `json:"payoutSplits"`
	ReservedSplits       Field[[]juicebox.Split] `json:"reservedTokenSplits"`
	PayoutLimit          Field[*big.Int]         `json:"payoutLimit"`
	UsedPayoutLimit      Field[*big.Int]         `json:"usedPayoutLimit"`
	SurplusAllowance     Field[*big.Int]         `json:"surplusAllowance"`
	UsedSurplusAllowance Field[*big.Int]         `json:"usedSurplusAllowance"`
}

// SelectedRuleset returns the ruleset the view was loaded for.
func (v *View) SelectedRuleset() Field[juicebox.RulesetWithMetadata] {
	if v.Selection == SelectionNext {
		return v.UpcomingRuleset
	}
	return v.CurrentRuleset
}

// Name returns the metadata name or the untitled placeholder.
func (v *View) Name() string {
	return v.Metadata.Value.DisplayName()
}

type fieldStatus interface {
	Pending() bool
	Failed() bool
}

func (v *View) fields() []fieldStatus {
	return []fieldStatus{
		v.Owner, v.Controller, v.PrimaryTerminal, v.FundAccessLimits, v.Store,
		v.MetadataURI, v.Metadata, v.CurrentRuleset, v.UpcomingRuleset,
		v.Surplus, v.Balance, v.PendingReserved, v.Token,
		v.PayoutSplits, v.ReservedSplits, v.PayoutLimit, v.UsedPayoutLimit,
		v.SurplusAllowance, v.UsedSurplusAllowance,
	}
}

// State reports the render state of the view.
func (v *View) State() State {
	switch {
	case v.PrimaryTerminal.Failed():
		return StateBlocked
	case v.PrimaryTerminal.Pending():
		return StateLoading
	}
	for _, f := range v.fields() {
		if f.Pending() || f.Failed() {
			return StatePartial
		}
	}
	return StateReady
}
