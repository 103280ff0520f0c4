package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/juicescan/internal/metrics"
)

// ErrContextClosed is returned after Close.
var ErrContextClosed = errors.New("chain context closed")

// ErrUnknownNetwork is returned for chain ids missing from the registry.
var ErrUnknownNetwork = errors.New("unknown network")

// ContextConfig configures a Context.
type ContextConfig struct {
	Networks       *Networks
	DefaultChainID uint64
	InfuraID       string
	Timeout        time.Duration
	RateLimit      float64
	Metrics        *metrics.Metrics
}

// Snapshot is an immutable view of the connection state.
type Snapshot struct {
	Network Network
	Client  *Client
	// Account is nil when no account is connected.
	Account *common.Address
	Signer  *Signer
}

// Connected reports whether an account is connected.
func (s Snapshot) Connected() bool { return s.Account != nil }

// Context owns the network registry, one RPC client per network and the
// connected account. It is constructed once by the application and passed
// down; Connect, Disconnect and SwitchChain are its only mutators.
type Context struct {
	mu       sync.RWMutex
	networks *Networks
	clients  map[uint64]*Client
	active   uint64
	account  *common.Address
	signer   *Signer
	closed   bool
}

// NewContext builds clients for every configured network.
func NewContext(cfg ContextConfig) (*Context, error) {
	if cfg.Networks == nil || len(cfg.Networks.Networks) == 0 {
		return nil, fmt.Errorf("networks required")
	}

	clients := make(map[uint64]*Client, len(cfg.Networks.Networks))
	for _, net := range cfg.Networks.Networks {
		client, err := NewClient(Config{
			RPCURL:    net.RPCEndpoint(cfg.InfuraID),
			ChainID:   net.ID,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Metrics:   cfg.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("network %d: %w", net.ID, err)
		}
		clients[net.ID] = client
	}

	active := cfg.DefaultChainID
	if active == 0 {
		active = cfg.Networks.Networks[0].ID
	}
	if _, ok := clients[active]; !ok {
		return nil, fmt.Errorf("%w: default chain %d", ErrUnknownNetwork, active)
	}

	return &Context{
		networks: cfg.Networks,
		clients:  clients,
		active:   active,
	}, nil
}

// Snapshot returns the active network state.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(c.active)
}

// ForChain returns a snapshot for a specific network without switching the
// active one.
func (c *Context) ForChain(id uint64) (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Snapshot{}, ErrContextClosed
	}
	if _, ok := c.clients[id]; !ok {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownNetwork, id)
	}
	return c.snapshotLocked(id), nil
}

// Networks returns the registry.
func (c *Context) Networks() []Network {
	return c.networks.Networks
}

func (c *Context) snapshotLocked(id uint64) Snapshot {
	net, _ := c.networks.Find(id)
	snap := Snapshot{Network: net, Client: c.clients[id], Signer: c.signer}
	if c.account != nil {
		addr := *c.account
		snap.Account = &addr
	}
	return snap
}

// Connect sets the connected account without a local key.
func (c *Context) Connect(account common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.account = &account
	c.signer = nil
	return nil
}

// ConnectSigner connects the signer's account and enables local submission.
func (c *Context) ConnectSigner(signer *Signer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	addr := signer.Address()
	c.account = &addr
	c.signer = signer
	return nil
}

// Disconnect clears the connected account.
func (c *Context) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = nil
	c.signer = nil
}

// SwitchChain changes the active network.
func (c *Context) SwitchChain(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	if _, ok := c.clients[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetwork, id)
	}
	c.active = id
	return nil
}

// Close releases idle connections and rejects further mutation.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.account = nil
	c.signer = nil
	for _, client := range c.clients {
		client.httpClient.CloseIdleConnections()
	}
}
