package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/amount"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/format"
	"github.com/R3E-Network/juicescan/internal/juicebox"
	"github.com/R3E-Network/juicescan/internal/project"
	"github.com/R3E-Network/juicescan/internal/subgraph"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	textLoading     = "Loading..."
	textUnavailable = "Unavailable"
	textNoPayouts   = "No payouts"
	textNoToken     = "No ERC-20 token"
	textNone        = "None"
)

func parseTemplates() (*template.Template, error) {
	return template.New("pages").ParseFS(templateFS, "templates/*.html")
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.WithError(err).WithField("page", name).Error("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// =============================================================================
// Page models
// =============================================================================

type addressModel struct {
	Text string
	Link string
}

type splitRow struct {
	Beneficiary addressModel
	Percent     string
	ProjectID   string
	LockedUntil string
}

type splitsModel struct {
	Status string
	Rows   []splitRow
}

type rulesetModel struct {
	Status       string
	Cycle        string
	Start        string
	Duration     string
	Weight       string
	DecayRate    string
	ApprovalHook string
	HookLink     string
	Reserved     string
	Redemption   string
	Flags        []juicebox.Flag
}

type payModel struct {
	Amount  string
	Account string
	Warning string
	Error   string
	Result  string
	TxLink  string
}

type projectData struct {
	Title       string
	ProjectID   string
	Network     chain.Network
	State       project.State
	Blocked     bool
	Name        string
	Description string
	LogoURI     string
	InfoURI     string

	Owner           addressModel
	PrimaryTerminal addressModel
	Token           string

	Selection  project.Selection
	CurrentURL string
	NextURL    string
	Ruleset    rulesetModel

	Balance              string
	Surplus              string
	PendingReserved      string
	PayoutLimit          string
	UsedPayoutLimit      string
	SurplusAllowance     string
	UsedSurplusAllowance string
	PayoutSplits         splitsModel
	ReservedSplits       splitsModel

	Pay                    payModel
	WalletConnectProjectID string
}

type indexData struct {
	Title                  string
	Network                chain.Network
	Networks               []chain.Network
	Index                  subgraph.Snapshot
	Launch                 payModel
	WalletConnectProjectID string
}

func addressOf(network chain.Network, f project.Field[common.Address]) addressModel {
	switch {
	case f.Pending():
		return addressModel{Text: textLoading}
	case f.Failed():
		return addressModel{Text: textUnavailable}
	}
	return linkAddress(network, f.Value)
}

func linkAddress(network chain.Network, addr common.Address) addressModel {
	hex := addr.Hex()
	return addressModel{
		Text: format.TruncateAddress(hex, format.DefaultTruncateWidth),
		Link: format.ExplorerLink(network.Explorer, format.LinkAddress, hex),
	}
}

func units(f project.Field[*big.Int], suffix string) string {
	switch {
	case f.Pending():
		return textLoading
	case f.Failed():
		return textUnavailable
	}
	out := format.FormatUnits(f.Value, juicebox.EtherDecimals)
	if suffix != "" {
		out += " " + suffix
	}
	return out
}

func tokenText(f project.Field[*juicebox.Token]) string {
	switch {
	case f.Pending():
		return textLoading
	case f.Failed():
		return textUnavailable
	case f.Value == nil:
		return textNoToken
	}
	return f.Value.Name + " (" + f.Value.Symbol + ") " + f.Value.Address.Hex()
}

func unixTime(v *big.Int) string {
	if v == nil || v.Sign() == 0 || !v.IsInt64() {
		return textNone
	}
	return time.Unix(v.Int64(), 0).UTC().Format("2006-01-02 15:04 UTC")
}

func rulesetOf(network chain.Network, f project.Field[juicebox.RulesetWithMetadata]) rulesetModel {
	switch {
	case f.Pending():
		return rulesetModel{Status: textLoading}
	case f.Failed():
		return rulesetModel{Status: textUnavailable}
	}
	r, m := f.Value.Ruleset, f.Value.Metadata
	out := rulesetModel{
		Cycle:        bigText(r.CycleNumber),
		Start:        unixTime(r.Start),
		Duration:     format.FormatSeconds(uint64(r.Duration)),
		Weight:       r.RulesetWeight().Format(),
		DecayRate:    r.RulesetDecayRate().FormatPercentage() + "%",
		ApprovalHook: textNone,
		Reserved:     m.Reserved().FormatPercentage() + "%",
		Redemption:   m.Redemption().FormatPercentage() + "%",
		Flags:        m.Flags(),
	}
	if out.Duration == "" {
		out.Duration = textNone
	}
	if r.HasApprovalHook() {
		hook := linkAddress(network, r.ApprovalHook)
		out.ApprovalHook, out.HookLink = hook.Text, hook.Link
	}
	return out
}

func splitsOf(network chain.Network, f project.Field[[]juicebox.Split]) splitsModel {
	switch {
	case f.Pending():
		return splitsModel{Status: textLoading}
	case f.Failed():
		return splitsModel{Status: textUnavailable}
	case len(f.Value) == 0:
		return splitsModel{Status: textNoPayouts}
	}
	rows := make([]splitRow, 0, len(f.Value))
	for _, sp := range f.Value {
		row := splitRow{
			Beneficiary: linkAddress(network, sp.Beneficiary),
			Percent:     sp.Portion().FormatPercentage() + "%",
			LockedUntil: unixTime(sp.LockedUntil),
		}
		if sp.ProjectID != nil && sp.ProjectID.Sign() > 0 {
			row.ProjectID = sp.ProjectID.String()
		}
		rows = append(rows, row)
	}
	return splitsModel{Rows: rows}
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (s *Server) projectModel(view *project.View) projectData {
	network := view.Network
	symbol := network.NativeSymbol
	id := view.ProjectID.String()
	page := projectData{
		ProjectID:       id,
		Network:         network,
		State:           view.State(),
		Name:            view.Name(),
		Title:           view.Name(),
		Owner:           addressOf(network, view.Owner),
		PrimaryTerminal: addressOf(network, view.PrimaryTerminal),
		Token:           tokenText(view.Token),
		Selection:       view.Selection,
		CurrentURL:      projectURL(id, view.ChainID, project.SelectionCurrent),
		NextURL:         projectURL(id, view.ChainID, project.SelectionNext),
		Ruleset:         rulesetOf(network, view.SelectedRuleset()),

		Balance:              units(view.Balance, symbol),
		Surplus:              units(view.Surplus, symbol),
		PendingReserved:      units(view.PendingReserved, ""),
		PayoutLimit:          units(view.PayoutLimit, symbol),
		UsedPayoutLimit:      units(view.UsedPayoutLimit, symbol),
		SurplusAllowance:     units(view.SurplusAllowance, symbol),
		UsedSurplusAllowance: units(view.UsedSurplusAllowance, symbol),
		PayoutSplits:         splitsOf(network, view.PayoutSplits),
		ReservedSplits:       splitsOf(network, view.ReservedSplits),

		Pay:                    payModel{Amount: "0"},
		WalletConnectProjectID: s.wcID,
	}
	page.Blocked = page.State == project.StateBlocked
	if md := view.Metadata.Value; md != nil {
		page.Description = md.Description
		page.LogoURI = md.LogoURI
		page.InfoURI = md.InfoURI
	}
	return page
}

func projectURL(id string, chainID uint64, sel project.Selection) string {
	q := url.Values{}
	q.Set("ruleset", string(sel))
	if chainID != 0 {
		q.Set("chainId", new(big.Int).SetUint64(chainID).String())
	}
	return "/p/" + id + "?" + q.Encode()
}

// txResult fills the action result of a form page.
func txResult(m *payModel, resp actions.Result) {
	if resp.Submitted != nil {
		m.Result = "Submitted " + resp.Submitted.Hash + " (" + resp.Submitted.Status + ")"
		m.TxLink = resp.Explorer
		return
	}
	raw, err := json.MarshalIndent(resp.Request, "", "  ")
	if err != nil {
		m.Error = err.Error()
		return
	}
	m.Result = string(raw)
}

func actionMessage(err error) string {
	if errors.Is(err, actions.ErrNoAccount) {
		return "Connect a wallet to continue."
	}
	return err.Error()
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) indexModel() indexData {
	return indexData{
		Title:                  "Projects",
		Network:                s.chains.Snapshot().Network,
		Networks:               s.chains.Networks(),
		Index:                  s.index.Snapshot(),
		WalletConnectProjectID: s.wcID,
	}
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index", s.indexModel())
}

func (s *Server) launchForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page := s.indexModel()
	page.Launch.Account = strings.TrimSpace(r.PostForm.Get("owner"))
	status := http.StatusOK
	resp, err := s.actions.Launch(r.Context(), page.Launch.Account, 0)
	if err != nil {
		status = actionStatus(err)
		page.Launch.Error = actionMessage(err)
	} else {
		txResult(&page.Launch, resp)
	}
	s.render(w, status, "index", page)
}

func (s *Server) projectPage(w http.ResponseWriter, r *http.Request) {
	page, status, err := s.loadPage(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	s.render(w, status, "project", page)
}

func (s *Server) loadPage(r *http.Request) (projectData, int, error) {
	req, err := requestFrom(r)
	if err != nil {
		return projectData{}, http.StatusBadRequest, err
	}
	view, err := s.loader.Load(r.Context(), req, nil)
	if view == nil {
		return projectData{}, loadStatus(err), err
	}
	if err != nil {
		s.log.WithContext(r.Context()).WithError(err).Warn("project page rendered from a partial load")
	}
	return s.projectModel(view), http.StatusOK, nil
}

// payForm validates the amount like the dashboard input does: a rejected
// candidate keeps the previous value and shows a warning.
func (s *Server) payForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, status, err := s.loadPage(r)
	if err != nil {
		writeError(w, status, err)
		return
	}

	in := amount.NewInput(amount.DefaultDecimals)
	in.Set(r.PostForm.Get("previous"))
	page.Pay.Account = strings.TrimSpace(r.PostForm.Get("account"))
	if !in.Set(r.PostForm.Get("amount")) {
		page.Pay.Amount = in.Value()
		page.Pay.Warning = in.WarningText()
		s.render(w, http.StatusUnprocessableEntity, "project", page)
		return
	}
	page.Pay.Amount = in.Value()

	id, _ := projectIDFrom(r)
	chainID, _ := chainIDFrom(r)
	resp, err := s.actions.Pay(r.Context(), id, in.Value(), page.Pay.Account, chainID)
	if err != nil {
		status = actionStatus(err)
		page.Pay.Error = actionMessage(err)
	} else {
		txResult(&page.Pay, resp)
	}
	s.render(w, status, "project", page)
}
