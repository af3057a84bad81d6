package ledger

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
)

var (
	//go:embed abi/candidate_registry.json
	candidateRegistryJSON string
	//go:embed abi/voter_registry.json
	voterRegistryJSON string

	candidateRegistryABI = mustParseABI(candidateRegistryJSON)
	voterRegistryABI     = mustParseABI(voterRegistryJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		log.L().Panic("failed to parse embedded ABI", zap.Error(err))
	}
	return parsed
}

// Backend is the RPC surface needed to read, write and settle contract calls
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type (
	basicInfoTuple struct {
		CandidateId       string
		Name              string
		PartyName         string
		IsIndependent     bool
		Manifesto         string
		AmbitionsAndGoals string
	}

	additionalInfoTuple struct {
		Experience        string
		PastAchievements  string
		ContactInfo       string
		SocialMediaLinks  string
		CandidateImageUrl string
		PartySymbolUrl    string
	}
)

// ContractGateway is a Gateway over the deployed registry contracts
type ContractGateway struct {
	backend   Backend
	chainID   *big.Int
	account   common.Address
	key       *ecdsa.PrivateKey
	voter     *bind.BoundContract
	candidate *bind.BoundContract
}

var _ Gateway = (*ContractGateway)(nil)

// NewContractGateway binds both registries. A nil key gives a read-only gateway.
func NewContractGateway(backend Backend, cfg Config, key *ecdsa.PrivateKey) (*ContractGateway, error) {
	if !common.IsHexAddress(cfg.VoterRegistry) {
		return nil, errors.Errorf("invalid voter registry address %q", cfg.VoterRegistry)
	}
	if !common.IsHexAddress(cfg.CandidateRegistry) {
		return nil, errors.Errorf("invalid candidate registry address %q", cfg.CandidateRegistry)
	}
	g := &ContractGateway{
		backend:   backend,
		chainID:   new(big.Int).SetUint64(cfg.ChainID),
		key:       key,
		voter:     bind.NewBoundContract(common.HexToAddress(cfg.VoterRegistry), voterRegistryABI, backend, backend, backend),
		candidate: bind.NewBoundContract(common.HexToAddress(cfg.CandidateRegistry), candidateRegistryABI, backend, backend, backend),
	}
	if key != nil {
		g.account = crypto.PubkeyToAddress(key.PublicKey)
	}
	return g, nil
}

// Account returns the address writes are sent from
func (g *ContractGateway) Account() common.Address { return g.account }

// ChainID returns the configured chain ID
func (g *ContractGateway) ChainID() *big.Int { return new(big.Int).Set(g.chainID) }

func (g *ContractGateway) checkChain(ctx context.Context) error {
	id, err := g.backend.ChainID(ctx)
	if err != nil {
		return errors.Wrapf(ErrNetwork, "failed to read chain ID: %v", err)
	}
	if id.Cmp(g.chainID) != 0 {
		return errors.Wrapf(ErrWrongNetwork, "connected to chain %s, expected %s", id, g.chainID)
	}
	return nil
}

func (g *ContractGateway) call(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) ([]interface{}, error) {
	if err := g.checkChain(ctx); err != nil {
		return nil, err
	}
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx, From: g.account}, &out, method, params...); err != nil {
		return nil, readError(err, method)
	}
	return out, nil
}

func (g *ContractGateway) transact(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (*Receipt, error) {
	if err := g.checkChain(ctx); err != nil {
		return nil, err
	}
	if g.key == nil {
		return nil, errors.Wrapf(ErrTransactionRejected, "%s: no signing key configured", method)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(g.key, g.chainID)
	if err != nil {
		return nil, errors.Wrapf(ErrTransactionRejected, "%s: %v", method, err)
	}
	opts.Context = ctx
	signer := opts.Signer
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		signed, err := signer(from, tx)
		if err != nil {
			return nil, errors.Wrap(ErrTransactionRejected, err.Error())
		}
		return signed, nil
	}

	tx, err := c.Transact(opts, method, params...)
	if err != nil {
		return nil, classify(err, method)
	}
	log.Logger("ledger").Info("transaction sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "%s: waiting for %s: %v", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Wrapf(ErrTransactionReverted, "%s: transaction %s failed", method, tx.Hash().Hex())
	}
	r := &Receipt{TxHash: tx.Hash().Hex(), GasUsed: receipt.GasUsed}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return r, nil
}

// readError narrows classify to the read error set: wrong network or network failure
func readError(err error, method string) error {
	err = classify(err, method)
	switch errors.Cause(err) {
	case ErrWrongNetwork, ErrNetwork, ErrNotConnected:
		return err
	default:
		return errors.Wrapf(ErrNetwork, "%s: %v", method, err)
	}
}

// classify maps go-ethereum and RPC errors onto the gateway error set
func classify(err error, method string) error {
	switch errors.Cause(err) {
	case ErrTransactionRejected, ErrTransactionReverted, ErrNetwork, ErrWrongNetwork, ErrNotConnected:
		return err
	case bind.ErrNoCode:
		return errors.Wrapf(ErrWrongNetwork, "%s: no contract code at address", method)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "revert"):
		return errors.Wrapf(ErrTransactionReverted, "%s: %v", method, err)
	case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "rejected"), strings.Contains(msg, "denied"):
		return errors.Wrapf(ErrTransactionRejected, "%s: %v", method, err)
	default:
		return errors.Wrapf(ErrNetwork, "%s: %v", method, err)
	}
}

func (g *ContractGateway) callBool(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (bool, error) {
	out, err := g.call(ctx, c, method, params...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (g *ContractGateway) callUint(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (uint64, error) {
	out, err := g.call(ctx, c, method, params...)
	if err != nil {
		return 0, err
	}
	v := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !v.IsUint64() {
		return 0, errors.Wrapf(ErrNetwork, "%s: value %s overflows uint64", method, v)
	}
	return v.Uint64(), nil
}

// IsVoterRegistered reads isVoterRegistered from the voter registry
func (g *ContractGateway) IsVoterRegistered(ctx context.Context, voter common.Address) (bool, error) {
	return g.callBool(ctx, g.voter, "isVoterRegistered", voter)
}

// GetVoterDetails reads the details behind the voter's first registration token
func (g *ContractGateway) GetVoterDetails(ctx context.Context, voter common.Address) (*models.VoterRecord, error) {
	out, err := g.call(ctx, g.voter, "voterTokens", voter, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	tokenID := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	out, err = g.call(ctx, g.voter, "getVoterDetails", tokenID)
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(out))
	for i := range out {
		fields[i] = *abi.ConvertType(out[i], new(string)).(*string)
	}
	return &models.VoterRecord{
		UserID:            fields[0],
		Name:              fields[1],
		DateOfBirth:       fields[2],
		AddressDetails:    models.ParseAddressDetails(fields[3]),
		AadhaarNumber:     fields[4],
		Email:             fields[5],
		PhoneNumber:       fields[6],
		ProfilePictureURL: fields[7],
	}, nil
}

// RegisterVoter sends registerVoter with the nine record fields
func (g *ContractGateway) RegisterVoter(ctx context.Context, r models.VoterRecord) (*Receipt, error) {
	return g.transact(ctx, g.voter, "registerVoter",
		r.UserID, r.Name, r.DateOfBirth, r.AddressDetails.EncodedAddress(), r.AadhaarNumber,
		r.Email, r.PhoneNumber, r.ProfilePictureURL, r.ContentHash)
}

// UpdateVoterDetails sends updateVoterDetails
func (g *ContractGateway) UpdateVoterDetails(ctx context.Context, u models.VoterUpdate) (*Receipt, error) {
	return g.transact(ctx, g.voter, "updateVoterDetails",
		u.Name, u.DateOfBirth, u.AddressDetails.EncodedAddress(), u.Email, u.PhoneNumber, u.ProfilePictureURL)
}

// IsRegisteredCandidate reads isRegisteredCandidate
func (g *ContractGateway) IsRegisteredCandidate(ctx context.Context, candidate common.Address) (bool, error) {
	return g.callBool(ctx, g.candidate, "isRegisteredCandidate", candidate)
}

// GetCandidateBasicInfo reads the basic info tuple
func (g *ContractGateway) GetCandidateBasicInfo(ctx context.Context, candidate common.Address) (*models.CandidateBasicInfo, error) {
	out, err := g.call(ctx, g.candidate, "getCandidateBasicInfo", candidate)
	if err != nil {
		return nil, err
	}
	t := *abi.ConvertType(out[0], new(basicInfoTuple)).(*basicInfoTuple)
	return &models.CandidateBasicInfo{
		CandidateID:       t.CandidateId,
		Name:              t.Name,
		PartyName:         t.PartyName,
		IsIndependent:     t.IsIndependent,
		Manifesto:         t.Manifesto,
		AmbitionsAndGoals: t.AmbitionsAndGoals,
	}, nil
}

// GetCandidateAdditionalInfo reads the additional info tuple
func (g *ContractGateway) GetCandidateAdditionalInfo(ctx context.Context, candidate common.Address) (*models.CandidateAdditionalInfo, error) {
	out, err := g.call(ctx, g.candidate, "getCandidateAdditionalInfo", candidate)
	if err != nil {
		return nil, err
	}
	t := *abi.ConvertType(out[0], new(additionalInfoTuple)).(*additionalInfoTuple)
	return &models.CandidateAdditionalInfo{
		Experience:        t.Experience,
		PastAchievements:  t.PastAchievements,
		ContactInfo:       t.ContactInfo,
		SocialMediaLinks:  t.SocialMediaLinks,
		CandidateImageURL: t.CandidateImageUrl,
		PartySymbolURL:    t.PartySymbolUrl,
	}, nil
}

// GetCandidateMetadata reads wallet, registration time, status and content hash
func (g *ContractGateway) GetCandidateMetadata(ctx context.Context, candidate common.Address) (*models.CandidateMetadata, error) {
	out, err := g.call(ctx, g.candidate, "getCandidateMetadata", candidate)
	if err != nil {
		return nil, err
	}
	ts := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	return &models.CandidateMetadata{
		WalletAddress:         (*abi.ConvertType(out[0], new(common.Address)).(*common.Address)).Hex(),
		RegistrationTimestamp: ts.Int64(),
		IsRegistered:          *abi.ConvertType(out[2], new(bool)).(*bool),
		ContentHash:           *abi.ConvertType(out[3], new(string)).(*string),
	}, nil
}

// RegisterCandidate sends registerCandidate with both info tuples
func (g *ContractGateway) RegisterCandidate(ctx context.Context, b models.CandidateBasicInfo, a models.CandidateAdditionalInfo, ipfsHash string) (*Receipt, error) {
	basic := basicInfoTuple{
		CandidateId:       b.CandidateID,
		Name:              b.Name,
		PartyName:         b.PartyName,
		IsIndependent:     b.IsIndependent,
		Manifesto:         b.Manifesto,
		AmbitionsAndGoals: b.AmbitionsAndGoals,
	}
	additional := additionalInfoTuple{
		Experience:        a.Experience,
		PastAchievements:  a.PastAchievements,
		ContactInfo:       a.ContactInfo,
		SocialMediaLinks:  a.SocialMediaLinks,
		CandidateImageUrl: a.CandidateImageURL,
		PartySymbolUrl:    a.PartySymbolURL,
	}
	return g.transact(ctx, g.candidate, "registerCandidate", basic, additional, ipfsHash)
}

// GetCandidateCount reads getCandidateCount
func (g *ContractGateway) GetCandidateCount(ctx context.Context) (uint64, error) {
	return g.callUint(ctx, g.candidate, "getCandidateCount")
}

// CandidateAddress reads candidateAddresses(index)
func (g *ContractGateway) CandidateAddress(ctx context.Context, index uint64) (common.Address, error) {
	out, err := g.call(ctx, g.candidate, "candidateAddresses", new(big.Int).SetUint64(index))
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// HasVoted reads hasVoted
func (g *ContractGateway) HasVoted(ctx context.Context, voter common.Address) (bool, error) {
	return g.callBool(ctx, g.candidate, "hasVoted", voter)
}

// Vote sends vote(candidate)
func (g *ContractGateway) Vote(ctx context.Context, candidate common.Address) (*Receipt, error) {
	return g.transact(ctx, g.candidate, "vote", candidate)
}

// GetVoteCount reads getVoteCount
func (g *ContractGateway) GetVoteCount(ctx context.Context, candidate common.Address) (uint64, error) {
	return g.callUint(ctx, g.candidate, "getVoteCount", candidate)
}

// GetTotalVotesCast reads getTotalVotesCast
func (g *ContractGateway) GetTotalVotesCast(ctx context.Context) (uint64, error) {
	return g.callUint(ctx, g.candidate, "getTotalVotesCast")
}
