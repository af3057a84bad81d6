package ledger

import (
	"context"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"chainvote-backend/models"
	"chainvote-backend/storage"
)

// MemoryConfig configures the in-process ledger
type MemoryConfig struct {
	StatePath string `json:"state_path"`
	ChainID   uint64 `json:"chain_id"`
}

type memoryCandidate struct {
	Basic        models.CandidateBasicInfo      `json:"basic"`
	Additional   models.CandidateAdditionalInfo `json:"additional"`
	IPFSHash     string                         `json:"ipfs_hash"`
	RegisteredAt int64                          `json:"registered_at"`
}

// memorySnapshot is the persisted form of the ledger state
type memorySnapshot struct {
	Voters     map[common.Address]*models.VoterRecord `json:"voters"`
	Candidates map[common.Address]*memoryCandidate    `json:"candidates"`
	Order      []common.Address                       `json:"order"`
	Votes      map[common.Address]uint64              `json:"votes"`
	Voted      map[common.Address]bool                `json:"voted"`
	Total      uint64                                 `json:"total"`
	Block      uint64                                 `json:"block"`
}

type memoryState struct {
	mu   sync.RWMutex
	path string
	memorySnapshot
}

// MemoryLedger simulates both registries in process. Views of the same state
// acting as different accounts are obtained with As.
type MemoryLedger struct {
	state   *memoryState
	account common.Address
	chainID *big.Int
}

var _ Gateway = (*MemoryLedger)(nil)

// NewMemoryLedger creates a ledger, loading cfg.StatePath when it exists
func NewMemoryLedger(cfg MemoryConfig, account common.Address) (*MemoryLedger, error) {
	st := &memoryState{
		path: cfg.StatePath,
		memorySnapshot: memorySnapshot{
			Voters:     make(map[common.Address]*models.VoterRecord),
			Candidates: make(map[common.Address]*memoryCandidate),
			Votes:      make(map[common.Address]uint64),
			Voted:      make(map[common.Address]bool),
		},
	}
	if cfg.StatePath != "" {
		if _, err := storage.ReadJSON(cfg.StatePath, &st.memorySnapshot); err != nil {
			return nil, errors.Wrap(err, "failed to load ledger state")
		}
	}
	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = SepoliaChainID
	}
	return &MemoryLedger{state: st, account: account, chainID: new(big.Int).SetUint64(chainID)}, nil
}

// As returns a view of the same ledger sending writes from account
func (m *MemoryLedger) As(account common.Address) *MemoryLedger {
	return &MemoryLedger{state: m.state, account: account, chainID: m.chainID}
}

// Account returns the sending account
func (m *MemoryLedger) Account() common.Address { return m.account }

// ChainID returns the simulated chain ID
func (m *MemoryLedger) ChainID() *big.Int { return new(big.Int).Set(m.chainID) }

// commit persists the state and mints a receipt; callers hold the write lock
func (m *MemoryLedger) commit(method string) (*Receipt, error) {
	st := m.state
	st.Block++
	if st.path != "" {
		if err := storage.WriteJSON(st.path, &st.memorySnapshot); err != nil {
			return nil, errors.Wrapf(ErrNetwork, "%s: %v", method, err)
		}
	}
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], st.Block)
	return &Receipt{
		TxHash:      crypto.Keccak256Hash(m.account.Bytes(), []byte(method), nonce[:]).Hex(),
		BlockNumber: st.Block,
		GasUsed:     21000,
	}, nil
}

func readFailed(method, reason string) error {
	return errors.Wrapf(ErrNetwork, "%s: %s", method, reason)
}

func reverted(method, reason string) error {
	return errors.Wrapf(ErrTransactionReverted, "%s: %s", method, reason)
}

func (m *MemoryLedger) IsVoterRegistered(ctx context.Context, voter common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	_, ok := m.state.Voters[voter]
	return ok, nil
}

func (m *MemoryLedger) GetVoterDetails(ctx context.Context, voter common.Address) (*models.VoterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	rec, ok := m.state.Voters[voter]
	if !ok {
		return nil, readFailed("voterTokens", "no token for voter")
	}
	out := *rec
	out.ContentHash = ""
	return &out, nil
}

func (m *MemoryLedger) RegisterVoter(ctx context.Context, record models.VoterRecord) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if _, ok := m.state.Voters[m.account]; ok {
		return nil, reverted("registerVoter", "voter already registered")
	}
	rec := record
	m.state.Voters[m.account] = &rec
	return m.commit("registerVoter")
}

func (m *MemoryLedger) UpdateVoterDetails(ctx context.Context, u models.VoterUpdate) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	rec, ok := m.state.Voters[m.account]
	if !ok {
		return nil, reverted("updateVoterDetails", "voter not registered")
	}
	rec.Name = u.Name
	rec.DateOfBirth = u.DateOfBirth
	rec.AddressDetails = u.AddressDetails
	rec.Email = u.Email
	rec.PhoneNumber = u.PhoneNumber
	rec.ProfilePictureURL = u.ProfilePictureURL
	return m.commit("updateVoterDetails")
}

func (m *MemoryLedger) IsRegisteredCandidate(ctx context.Context, candidate common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	_, ok := m.state.Candidates[candidate]
	return ok, nil
}

func (m *MemoryLedger) candidate(candidate common.Address) (*memoryCandidate, error) {
	c, ok := m.state.Candidates[candidate]
	if !ok {
		return nil, readFailed("getCandidate", "candidate not registered")
	}
	return c, nil
}

func (m *MemoryLedger) GetCandidateBasicInfo(ctx context.Context, candidate common.Address) (*models.CandidateBasicInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	c, err := m.candidate(candidate)
	if err != nil {
		return nil, err
	}
	basic := c.Basic
	return &basic, nil
}

func (m *MemoryLedger) GetCandidateAdditionalInfo(ctx context.Context, candidate common.Address) (*models.CandidateAdditionalInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	c, err := m.candidate(candidate)
	if err != nil {
		return nil, err
	}
	additional := c.Additional
	return &additional, nil
}

func (m *MemoryLedger) GetCandidateMetadata(ctx context.Context, candidate common.Address) (*models.CandidateMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	c, err := m.candidate(candidate)
	if err != nil {
		return nil, err
	}
	return &models.CandidateMetadata{
		WalletAddress:         candidate.Hex(),
		RegistrationTimestamp: c.RegisteredAt,
		IsRegistered:          true,
		ContentHash:           c.IPFSHash,
	}, nil
}

// RegisterCandidate registers the sending account; it must be a registered voter
func (m *MemoryLedger) RegisterCandidate(ctx context.Context, basic models.CandidateBasicInfo, additional models.CandidateAdditionalInfo, ipfsHash string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if _, ok := m.state.Voters[m.account]; !ok {
		return nil, reverted("registerCandidate", "must be a registered voter")
	}
	if _, ok := m.state.Candidates[m.account]; ok {
		return nil, reverted("registerCandidate", "candidate already registered")
	}
	m.state.Candidates[m.account] = &memoryCandidate{
		Basic:        basic,
		Additional:   additional,
		IPFSHash:     ipfsHash,
		RegisteredAt: time.Now().Unix(),
	}
	m.state.Order = append(m.state.Order, m.account)
	return m.commit("registerCandidate")
}

func (m *MemoryLedger) GetCandidateCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return uint64(len(m.state.Order)), nil
}

func (m *MemoryLedger) CandidateAddress(ctx context.Context, index uint64) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	if index >= uint64(len(m.state.Order)) {
		return common.Address{}, readFailed("candidateAddresses", "index out of range")
	}
	return m.state.Order[index], nil
}

func (m *MemoryLedger) HasVoted(ctx context.Context, voter common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.Voted[voter], nil
}

// Vote records one vote from the sending account
func (m *MemoryLedger) Vote(ctx context.Context, candidate common.Address) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if _, ok := m.state.Voters[m.account]; !ok {
		return nil, reverted("vote", "must be a registered voter")
	}
	if m.state.Voted[m.account] {
		return nil, reverted("vote", "already voted")
	}
	if _, ok := m.state.Candidates[candidate]; !ok {
		return nil, reverted("vote", "invalid candidate")
	}
	m.state.Voted[m.account] = true
	m.state.Votes[candidate]++
	m.state.Total++
	return m.commit("vote")
}

func (m *MemoryLedger) GetVoteCount(ctx context.Context, candidate common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.Votes[candidate], nil
}

func (m *MemoryLedger) GetTotalVotesCast(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(ErrNetwork, err.Error())
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.Total, nil
}
