package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
)

// Config configures the ledger backend and the deployed registries
type Config struct {
	Backend           string `yaml:"backend"`
	RPCURL            string `yaml:"rpcURL"`
	ChainID           uint64 `yaml:"chainID"`
	VoterRegistry     string `yaml:"voterRegistry"`
	CandidateRegistry string `yaml:"candidateRegistry"`
	KeyHex            string `yaml:"keyHex"`
	StatePath         string `yaml:"statePath"`
}

// DefaultConfig targets the Sepolia deployment
var DefaultConfig = Config{
	Backend:           "contract",
	RPCURL:            "https://rpc.sepolia.org",
	ChainID:           SepoliaChainID,
	CandidateRegistry: "0x25cF2FeC344852CF98c5369eE65192De1908B0b6",
}

// Dialer opens an RPC backend
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthereum dials a JSON-RPC endpoint with ethclient
func DialEthereum(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "failed to dial %s: %v", rpcURL, err)
	}
	return client, nil
}

// Connection holds the wallet connection context. It implements Gateway by
// delegating to the gateway of the active connection.
type Connection struct {
	mu      sync.RWMutex
	cfg     Config
	dial    Dialer
	key     *ecdsa.PrivateKey
	backend Backend
	gateway Gateway
	chainID *big.Int
}

var _ Gateway = (*Connection)(nil)

// NewConnection creates a disconnected Connection
func NewConnection(cfg Config, dial Dialer, key *ecdsa.PrivateKey) *Connection {
	if dial == nil {
		dial = DialEthereum
	}
	return &Connection{cfg: cfg, dial: dial, key: key}
}

// Connect dials the endpoint and binds the registries for the account key
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Connection) connect(ctx context.Context) error {
	backend, err := c.dial(ctx, c.cfg.RPCURL)
	if err != nil {
		if errors.Cause(err) == ErrNetwork {
			return err
		}
		return errors.Wrap(ErrNetwork, err.Error())
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		closeBackend(backend)
		return errors.Wrapf(ErrNetwork, "failed to read chain ID: %v", err)
	}
	gateway, err := NewContractGateway(backend, c.cfg, c.key)
	if err != nil {
		closeBackend(backend)
		return err
	}
	c.backend, c.gateway, c.chainID = backend, gateway, chainID
	if !c.onExpectedChain() {
		log.Logger("ledger").Warn("connected to unexpected chain",
			zap.String("chainID", chainID.String()),
			zap.Uint64("expected", c.cfg.ChainID))
	}
	return nil
}

// SwitchChain reconnects and rebuilds the gateway for the chain the endpoint now reports
func (c *Connection) SwitchChain(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
	return c.connect(ctx)
}

// Disconnect tears the connection down; later calls fail with ErrNotConnected
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
}

func (c *Connection) disconnect() {
	if c.backend != nil {
		closeBackend(c.backend)
	}
	c.backend, c.gateway, c.chainID = nil, nil, nil
}

// IsConnected reports whether a connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateway != nil
}

// OnExpectedChain reports whether the endpoint serves the configured chain
func (c *Connection) OnExpectedChain() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onExpectedChain()
}

func (c *Connection) onExpectedChain() bool {
	return c.chainID != nil && c.chainID.IsUint64() && c.chainID.Uint64() == c.cfg.ChainID
}

func (c *Connection) active() (Gateway, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gateway == nil {
		return nil, ErrNotConnected
	}
	return c.gateway, nil
}

func closeBackend(b Backend) {
	if closer, ok := b.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Account returns the connected account, or the zero address
func (c *Connection) Account() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

// ChainID returns the chain reported by the endpoint, or nil when disconnected
func (c *Connection) ChainID() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.chainID == nil {
		return nil
	}
	return new(big.Int).Set(c.chainID)
}

func (c *Connection) IsVoterRegistered(ctx context.Context, voter common.Address) (bool, error) {
	g, err := c.active()
	if err != nil {
		return false, err
	}
	return g.IsVoterRegistered(ctx, voter)
}

func (c *Connection) GetVoterDetails(ctx context.Context, voter common.Address) (*models.VoterRecord, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.GetVoterDetails(ctx, voter)
}

func (c *Connection) RegisterVoter(ctx context.Context, record models.VoterRecord) (*Receipt, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.RegisterVoter(ctx, record)
}

func (c *Connection) UpdateVoterDetails(ctx context.Context, update models.VoterUpdate) (*Receipt, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.UpdateVoterDetails(ctx, update)
}

func (c *Connection) IsRegisteredCandidate(ctx context.Context, candidate common.Address) (bool, error) {
	g, err := c.active()
	if err != nil {
		return false, err
	}
	return g.IsRegisteredCandidate(ctx, candidate)
}

func (c *Connection) GetCandidateBasicInfo(ctx context.Context, candidate common.Address) (*models.CandidateBasicInfo, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.GetCandidateBasicInfo(ctx, candidate)
}

func (c *Connection) GetCandidateAdditionalInfo(ctx context.Context, candidate common.Address) (*models.CandidateAdditionalInfo, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.GetCandidateAdditionalInfo(ctx, candidate)
}

func (c *Connection) GetCandidateMetadata(ctx context.Context, candidate common.Address) (*models.CandidateMetadata, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.GetCandidateMetadata(ctx, candidate)
}

func (c *Connection) RegisterCandidate(ctx context.Context, basic models.CandidateBasicInfo, additional models.CandidateAdditionalInfo, ipfsHash string) (*Receipt, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.RegisterCandidate(ctx, basic, additional, ipfsHash)
}

func (c *Connection) GetCandidateCount(ctx context.Context) (uint64, error) {
	g, err := c.active()
	if err != nil {
		return 0, err
	}
	return g.GetCandidateCount(ctx)
}

func (c *Connection) CandidateAddress(ctx context.Context, index uint64) (common.Address, error) {
	g, err := c.active()
	if err != nil {
		return common.Address{}, err
	}
	return g.CandidateAddress(ctx, index)
}

func (c *Connection) HasVoted(ctx context.Context, voter common.Address) (bool, error) {
	g, err := c.active()
	if err != nil {
		return false, err
	}
	return g.HasVoted(ctx, voter)
}

func (c *Connection) Vote(ctx context.Context, candidate common.Address) (*Receipt, error) {
	g, err := c.active()
	if err != nil {
		return nil, err
	}
	return g.Vote(ctx, candidate)
}

func (c *Connection) GetVoteCount(ctx context.Context, candidate common.Address) (uint64, error) {
	g, err := c.active()
	if err != nil {
		return 0, err
	}
	return g.GetVoteCount(ctx, candidate)
}

func (c *Connection) GetTotalVotesCast(ctx context.Context) (uint64, error) {
	g, err := c.active()
	if err != nil {
		return 0, err
	}
	return g.GetTotalVotesCast(ctx)
}
