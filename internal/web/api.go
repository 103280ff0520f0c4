package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/juicescan/internal/actions"
	"github.com/R3E-Network/juicescan/internal/amount"
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/project"
)

type networkResponse struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Explorer     string `json:"explorer"`
	NativeSymbol string `json:"nativeSymbol"`
	Active       bool   `json:"active"`
}

func (s *Server) apiNetworks(w http.ResponseWriter, r *http.Request) {
	active := s.chains.Snapshot().Network.ID
	var out []networkResponse
	for _, n := range s.chains.Networks() {
		out = append(out, networkResponse{
			ID: n.ID, Name: n.Name, Slug: n.Slug, Explorer: n.Explorer,
			NativeSymbol: n.NativeSymbol, Active: n.ID == active,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"networks":               out,
		"walletConnectProjectId": s.wcID,
	})
}

func (s *Server) apiProjects(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		// A failed refresh still serves the last good listing.
		_ = s.index.Refresh(r.Context())
	}
	writeJSON(w, http.StatusOK, s.index.Snapshot())
}

// projectResponse wraps a view with its derived state.
type projectResponse struct {
	State project.State `json:"state"`
	Name  string        `json:"name"`
	*project.View
}

func (s *Server) apiProject(w http.ResponseWriter, r *http.Request) {
	req, err := requestFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := s.loader.Load(r.Context(), req, nil)
	if err != nil {
		writeError(w, loadStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{State: view.State(), Name: view.Name(), View: view})
}

func requestFrom(r *http.Request) (project.Request, error) {
	id, err := projectIDFrom(r)
	if err != nil {
		return project.Request{}, err
	}
	chainID, err := chainIDFrom(r)
	if err != nil {
		return project.Request{}, err
	}
	return project.Request{
		ChainID:   chainID,
		ProjectID: id,
		Selection: project.ParseSelection(r.URL.Query().Get("ruleset")),
	}, nil
}

func loadStatus(err error) int {
	switch {
	case errors.Is(err, project.ErrInvalidProjectID):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrUnknownNetwork):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type payRequest struct {
	Amount  string `json:"amount"`
	Account string `json:"account,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`
}

func (s *Server) apiPay(w http.ResponseWriter, r *http.Request) {
	id, err := projectIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body payRequest
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.actions.Pay(r.Context(), id, body.Amount, body.Account, body.ChainID)
	if err != nil {
		writeError(w, actionStatus(err), err)
		return
	}
	status := http.StatusOK
	if resp.Submitted != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

type launchRequest struct {
	Owner   string `json:"owner,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`
}

func (s *Server) apiLaunch(w http.ResponseWriter, r *http.Request) {
	var body launchRequest
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.actions.Launch(r.Context(), body.Owner, body.ChainID)
	if err != nil {
		writeError(w, actionStatus(err), err)
		return
	}
	status := http.StatusOK
	if resp.Submitted != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, actions.ErrNoAccount):
		return http.StatusConflict
	case errors.Is(err, amount.ErrInvalidAmount), errors.Is(err, actions.ErrInvalidAccount),
		errors.Is(err, actions.ErrInvalidTxHash):
		return http.StatusBadRequest
	case errors.Is(err, actions.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, project.ErrNoPrimaryTerminal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrUnknownNetwork):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) apiTx(w http.ResponseWriter, r *http.Request) {
	chainID, err := chainIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.tracker.TxStatus(r.Context(), chainID, mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, actionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
