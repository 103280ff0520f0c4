package chain

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Network Registry (configurable)
// =============================================================================

//go:embed networks.yaml
var defaultNetworksYAML []byte

// ContractAddresses holds the protocol singletons deployed on a network.
// Controllers and terminals are resolved per project through the directory.
type ContractAddresses struct {
	Projects  string `yaml:"projects" json:"projects"`
	Directory string `yaml:"directory" json:"directory"`
	Splits    string `yaml:"splits" json:"splits"`
	Tokens    string `yaml:"tokens" json:"tokens"`
	// LaunchController receives launchProjectFor calls.
	LaunchController string `yaml:"launch_controller" json:"launchController"`
	// LaunchTerminal is the terminal configured on demo launches.
	LaunchTerminal string `yaml:"launch_terminal" json:"launchTerminal"`
}

// Network describes one supported EVM network.
type Network struct {
	ID           uint64            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Slug         string            `yaml:"slug" json:"slug"`
	RPCURL       string            `yaml:"rpc_url" json:"rpcUrl"`
	Explorer     string            `yaml:"explorer" json:"explorer"`
	NativeSymbol string            `yaml:"native_symbol" json:"nativeSymbol"`
	Contracts    ContractAddresses `yaml:"contracts" json:"contracts"`
}

// Networks is the registry file layout.
type Networks struct {
	Networks []Network `yaml:"networks" json:"networks"`
}

// LoadNetworks reads a registry from path, or the embedded default when path
// is empty.
func LoadNetworks(path string) (*Networks, error) {
	data := defaultNetworksYAML
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read networks file: %w", err)
		}
		data = raw
	}
	return ParseNetworks(data)
}

// ParseNetworks parses and validates a YAML registry.
func ParseNetworks(data []byte) (*Networks, error) {
	var n Networks
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to parse networks: %w", err)
	}
	if len(n.Networks) == 0 {
		return nil, fmt.Errorf("no networks configured")
	}

	seen := make(map[uint64]struct{}, len(n.Networks))
	for i := range n.Networks {
		net := &n.Networks[i]
		if err := net.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[net.ID]; dup {
			return nil, fmt.Errorf("network %d: duplicate id", net.ID)
		}
		seen[net.ID] = struct{}{}
	}
	sort.Slice(n.Networks, func(i, j int) bool { return n.Networks[i].ID < n.Networks[j].ID })
	return &n, nil
}

// Validate checks required fields and address formats.
func (n *Network) Validate() error {
	if n.ID == 0 {
		return fmt.Errorf("network %q: id is required", n.Name)
	}
	if n.Name == "" {
		return fmt.Errorf("network %d: name is required", n.ID)
	}
	if n.RPCURL == "" {
		return fmt.Errorf("network %d: rpc_url is required", n.ID)
	}
	required := map[string]string{
		"projects":  n.Contracts.Projects,
		"directory": n.Contracts.Directory,
		"splits":    n.Contracts.Splits,
		"tokens":    n.Contracts.Tokens,
	}
	for name, addr := range required {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("network %d: contracts.%s %q is not an address", n.ID, name, addr)
		}
		if common.HexToAddress(addr) == (common.Address{}) {
			return fmt.Errorf("network %d: contracts.%s is unset", n.ID, name)
		}
	}
	for name, addr := range map[string]string{
		"launch_controller": n.Contracts.LaunchController,
		"launch_terminal":   n.Contracts.LaunchTerminal,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("network %d: contracts.%s %q is not an address", n.ID, name, addr)
		}
	}
	if n.NativeSymbol == "" {
		n.NativeSymbol = "ETH"
	}
	return nil
}

// Find returns the network with the given id.
func (n *Networks) Find(id uint64) (Network, bool) {
	for _, net := range n.Networks {
		if net.ID == id {
			return net, true
		}
	}
	return Network{}, false
}

// RPCEndpoint expands the {infura_id} placeholder in the RPC URL template.
func (n Network) RPCEndpoint(infuraID string) string {
	return strings.ReplaceAll(n.RPCURL, "{infura_id}", infuraID)
}

// Address helpers. Validate guarantees the required ones parse.

func (c ContractAddresses) ProjectsAddress() common.Address  { return common.HexToAddress(c.Projects) }
func (c ContractAddresses) DirectoryAddress() common.Address { return common.HexToAddress(c.Directory) }
func (c ContractAddresses) SplitsAddress() common.Address    { return common.HexToAddress(c.Splits) }
func (c ContractAddresses) TokensAddress() common.Address    { return common.HexToAddress(c.Tokens) }

// LaunchControllerAddress returns the launch controller, if configured.
func (c ContractAddresses) LaunchControllerAddress() (common.Address, bool) {
	if c.LaunchController == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.LaunchController), true
}

// LaunchTerminalAddress returns the launch terminal, if configured.
func (c ContractAddresses) LaunchTerminalAddress() (common.Address, bool) {
	if c.LaunchTerminal == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.LaunchTerminal), true
}
