package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"chainvote-backend/models"
)

// SepoliaChainID is the chain the deployed registries live on
const SepoliaChainID = 11155111

var (
	// ErrTransactionRejected indicates the signer declined or failed to sign a transaction
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrTransactionReverted indicates execution reverted or a contract precondition failed
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrNetwork indicates an RPC or connectivity failure
	ErrNetwork = errors.New("ledger network error")
	// ErrWrongNetwork indicates the endpoint serves a different chain than configured
	ErrWrongNetwork = errors.New("wrong network")
	// ErrNotConnected indicates no wallet connection is active
	ErrNotConnected = errors.New("ledger not connected")
)

// Receipt describes a mined transaction
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

//go:generate mockgen -destination=../test/mock/mock_ledger/mock_ledger.go -source=gateway.go -package=mock_ledger Gateway

// Gateway is the typed surface over the voter and candidate registry contracts.
// Writes are sent from Account().
type Gateway interface {
	Account() common.Address
	ChainID() *big.Int

	IsVoterRegistered(ctx context.Context, voter common.Address) (bool, error)
	GetVoterDetails(ctx context.Context, voter common.Address) (*models.VoterRecord, error)
	RegisterVoter(ctx context.Context, record models.VoterRecord) (*Receipt, error)
	UpdateVoterDetails(ctx context.Context, update models.VoterUpdate) (*Receipt, error)

	IsRegisteredCandidate(ctx context.Context, candidate common.Address) (bool, error)
	GetCandidateBasicInfo(ctx context.Context, candidate common.Address) (*models.CandidateBasicInfo, error)
	GetCandidateAdditionalInfo(ctx context.Context, candidate common.Address) (*models.CandidateAdditionalInfo, error)
	GetCandidateMetadata(ctx context.Context, candidate common.Address) (*models.CandidateMetadata, error)
	RegisterCandidate(ctx context.Context, basic models.CandidateBasicInfo, additional models.CandidateAdditionalInfo, ipfsHash string) (*Receipt, error)
	GetCandidateCount(ctx context.Context) (uint64, error)
	CandidateAddress(ctx context.Context, index uint64) (common.Address, error)

	HasVoted(ctx context.Context, voter common.Address) (bool, error)
	Vote(ctx context.Context, candidate common.Address) (*Receipt, error)
	GetVoteCount(ctx context.Context, candidate common.Address) (uint64, error)
	GetTotalVotesCast(ctx context.Context) (uint64, error)
}

// ParseAddress converts a hex string into an address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(models.ErrInvalidRecord, "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Candidates enumerates candidateAddresses until the registered count is reached
func Candidates(ctx context.Context, g Gateway) ([]common.Address, error) {
	count, err := g.GetCandidateCount(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make([]common.Address, 0, count)
	for i := uint64(0); i < count; i++ {
		addr, err := g.CandidateAddress(ctx, i)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// CandidateRecord reads the full on-chain record of a registered candidate
func CandidateRecord(ctx context.Context, g Gateway, candidate common.Address) (*models.CandidateRecord, error) {
	basic, err := g.GetCandidateBasicInfo(ctx, candidate)
	if err != nil {
		return nil, err
	}
	additional, err := g.GetCandidateAdditionalInfo(ctx, candidate)
	if err != nil {
		return nil, err
	}
	meta, err := g.GetCandidateMetadata(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return &models.CandidateRecord{
		Address:        candidate.Hex(),
		BasicInfo:      *basic,
		AdditionalInfo: *additional,
		Metadata:       meta,
		ContentHash:    meta.ContentHash,
	}, nil
}
