package project

import (
	"github.com/R3E-Network/juicescan/internal/chain"
	"github.com/R3E-Network/juicescan/internal/juicebox"
)

// ContextResolver resolves readers from a chain context.
type ContextResolver struct {
	Chains *chain.Context
}

// Resolve implements Resolver.
func (r ContextResolver) Resolve(chainID uint64) (*juicebox.Reader, chain.Network, error) {
	snap := r.Chains.Snapshot()
	if chainID != 0 {
		var err error
		if snap, err = r.Chains.ForChain(chainID); err != nil {
			return nil, chain.Network{}, err
		}
	}
	return juicebox.NewReader(snap.Client, ContractsOf(snap.Network)), snap.Network, nil
}

// ContractsOf maps a network's registry entry to reader contracts.
func ContractsOf(n chain.Network) juicebox.Contracts {
	return juicebox.Contracts{
		Projects:  n.Contracts.ProjectsAddress(),
		Directory: n.Contracts.DirectoryAddress(),
		Splits:    n.Contracts.SplitsAddress(),
		Tokens:    n.Contracts.TokensAddress(),
	}
}
