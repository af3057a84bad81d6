package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"chainvote-backend/models"
)

var (
	testVoterRegistry     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testCandidateRegistry = common.HexToAddress("0x25cF2FeC344852CF98c5369eE65192De1908B0b6")
	testCandidate         = common.HexToAddress("0x00000000000000000000000000000000000000C1")
)

// fakeBackend answers contract calls from canned outputs and settles transactions instantly.
// Methods it does not override panic through the nil embedded interface.
type fakeBackend struct {
	bind.ContractBackend

	mu       sync.Mutex
	chainID  *big.Int
	outputs  map[string][]interface{}
	estimate error
	status   uint64
	calls    int
	sent     []*types.Transaction
	closed   bool
}

func newFakeBackend(chainID uint64) *fakeBackend {
	return &fakeBackend{
		chainID: new(big.Int).SetUint64(chainID),
		outputs: make(map[string][]interface{}),
		status:  types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, err := methodByID(msg.Data)
	if err != nil {
		return nil, err
	}
	out, ok := f.outputs[m.Name]
	if !ok {
		return nil, errors.Errorf("execution reverted: no output for %s", m.Name)
	}
	return m.Outputs.Pack(out...)
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(6), BaseFee: big.NewInt(1)}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimate != nil {
		return 0, f.estimate
	}
	return 50000, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(7), GasUsed: 42000}, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func methodByID(data []byte) (*abi.Method, error) {
	if m, err := candidateRegistryABI.MethodById(data[:4]); err == nil {
		return m, nil
	}
	return voterRegistryABI.MethodById(data[:4])
}

func testConfig() Config {
	cfg := DefaultConfig
	cfg.VoterRegistry = testVoterRegistry.Hex()
	return cfg
}

func newTestGateway(t *testing.T, backend *fakeBackend) (*ContractGateway, *ecdsa.PrivateKey) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	g, err := NewContractGateway(backend, testConfig(), key)
	require.NoError(t, err)
	return g, key
}

func TestContractGatewayReads(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	backend := newFakeBackend(SepoliaChainID)
	backend.outputs["isVoterRegistered"] = []interface{}{true}
	backend.outputs["hasVoted"] = []interface{}{false}
	backend.outputs["getVoteCount"] = []interface{}{big.NewInt(5)}
	backend.outputs["getTotalVotesCast"] = []interface{}{big.NewInt(9)}
	backend.outputs["getCandidateCount"] = []interface{}{big.NewInt(1)}
	backend.outputs["candidateAddresses"] = []interface{}{testCandidate}
	backend.outputs["getCandidateBasicInfo"] = []interface{}{basicInfoTuple{
		CandidateId: "7", Name: "Asha Rao", PartyName: "", IsIndependent: true, Manifesto: "water",
	}}
	backend.outputs["getCandidateAdditionalInfo"] = []interface{}{additionalInfoTuple{
		Experience: "10y", CandidateImageUrl: "https://ipfs.io/ipfs/QmImg",
	}}
	backend.outputs["getCandidateMetadata"] = []interface{}{testCandidate, big.NewInt(1700000000), true, "QmProfile"}
	backend.outputs["voterTokens"] = []interface{}{big.NewInt(3)}
	backend.outputs["getVoterDetails"] = []interface{}{
		"482913", "Asha Rao", "1990-05-17", `{"houseNumber":"12","area":"MG Road","town":"Mysuru","taluk":"Mysuru","pinCode":"570001"}`,
		"123412341234", "asha@example.com", "+919876543210", "",
	}
	g, _ := newTestGateway(t, backend)

	ok, err := g.IsVoterRegistered(ctx, testCandidate)
	require.NoError(err)
	require.True(ok)

	voted, err := g.HasVoted(ctx, testCandidate)
	require.NoError(err)
	require.False(voted)

	count, err := g.GetVoteCount(ctx, testCandidate)
	require.NoError(err)
	require.Equal(uint64(5), count)

	total, err := g.GetTotalVotesCast(ctx)
	require.NoError(err)
	require.Equal(uint64(9), total)

	addrs, err := Candidates(ctx, g)
	require.NoError(err)
	require.Equal([]common.Address{testCandidate}, addrs)

	rec, err := CandidateRecord(ctx, g, testCandidate)
	require.NoError(err)
	require.Equal("Asha Rao", rec.BasicInfo.Name)
	require.Equal("Independent", rec.BasicInfo.DisplayParty())
	require.Equal("https://ipfs.io/ipfs/QmImg", rec.AdditionalInfo.CandidateImageURL)
	require.Equal("QmProfile", rec.ContentHash)
	require.Equal(int64(1700000000), rec.Metadata.RegistrationTimestamp)
	require.Equal(testCandidate.Hex(), rec.Metadata.WalletAddress)

	voter, err := g.GetVoterDetails(ctx, testCandidate)
	require.NoError(err)
	require.Equal("Mysuru", voter.AddressDetails.Town)
	require.Equal("+919876543210", voter.PhoneNumber)
}

func TestContractGatewayWrongNetwork(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	backend := newFakeBackend(1)
	backend.outputs["hasVoted"] = []interface{}{true}
	g, _ := newTestGateway(t, backend)

	_, err := g.HasVoted(ctx, testCandidate)
	require.Equal(ErrWrongNetwork, errors.Cause(err))
	_, err = g.Vote(ctx, testCandidate)
	require.Equal(ErrWrongNetwork, errors.Cause(err))
	require.Zero(backend.calls)
	require.Empty(backend.sent)
}

func TestContractGatewayVote(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	backend := newFakeBackend(SepoliaChainID)
	g, key := newTestGateway(t, backend)

	receipt, err := g.Vote(ctx, testCandidate)
	require.NoError(err)
	require.Equal(uint64(7), receipt.BlockNumber)
	require.Equal(uint64(42000), receipt.GasUsed)

	require.Len(backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(receipt.TxHash, tx.Hash().Hex())
	require.Equal(testCandidateRegistry, *tx.To())
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(err)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), from)

	m, err := methodByID(tx.Data())
	require.NoError(err)
	require.Equal("vote", m.Name)
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	require.NoError(err)
	require.Equal(testCandidate, args[0].(common.Address))
}

func TestContractGatewayRegisterCandidate(t *testing.T) {
	require := require.New(t)
	backend := newFakeBackend(SepoliaChainID)
	g, _ := newTestGateway(t, backend)

	_, err := g.RegisterCandidate(context.Background(),
		models.CandidateBasicInfo{CandidateID: "7", Name: "Asha Rao", PartyName: "Civic"},
		models.CandidateAdditionalInfo{PartySymbolURL: "https://ipfs.io/ipfs/QmSym"},
		"QmProfile")
	require.NoError(err)
	require.Len(backend.sent, 1)

	m, err := methodByID(backend.sent[0].Data())
	require.NoError(err)
	require.Equal("registerCandidate", m.Name)
	args, err := m.Inputs.Unpack(backend.sent[0].Data()[4:])
	require.NoError(err)
	basic := *abi.ConvertType(args[0], new(basicInfoTuple)).(*basicInfoTuple)
	require.Equal("Civic", basic.PartyName)
	additional := *abi.ConvertType(args[1], new(additionalInfoTuple)).(*additionalInfoTuple)
	require.Equal("https://ipfs.io/ipfs/QmSym", additional.PartySymbolUrl)
	require.Equal("QmProfile", args[2].(string))
}

func TestContractGatewayFailures(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	backend := newFakeBackend(SepoliaChainID)
	backend.estimate = errors.New("execution reverted: already voted")
	g, _ := newTestGateway(t, backend)
	_, err := g.Vote(ctx, testCandidate)
	require.Equal(ErrTransactionReverted, errors.Cause(err))

	backend = newFakeBackend(SepoliaChainID)
	backend.status = types.ReceiptStatusFailed
	g, _ = newTestGateway(t, backend)
	_, err = g.Vote(ctx, testCandidate)
	require.Equal(ErrTransactionReverted, errors.Cause(err))

	readOnly, err := NewContractGateway(newFakeBackend(SepoliaChainID), testConfig(), nil)
	require.NoError(err)
	_, err = readOnly.Vote(ctx, testCandidate)
	require.Equal(ErrTransactionRejected, errors.Cause(err))

	// a reverted read surfaces as a network error
	_, err = readOnly.GetVoteCount(ctx, testCandidate)
	require.Equal(ErrNetwork, errors.Cause(err))
	_, err = readOnly.GetCandidateBasicInfo(ctx, testCandidate)
	require.Equal(ErrNetwork, errors.Cause(err))

	_, err = NewContractGateway(backend, Config{ChainID: SepoliaChainID, CandidateRegistry: "nope"}, nil)
	require.Error(err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("execution reverted"), ErrTransactionReverted},
		{errors.New("insufficient funds for gas * price + value"), ErrTransactionRejected},
		{errors.New("User denied transaction signature"), ErrTransactionRejected},
		{errors.New("dial tcp: connection refused"), ErrNetwork},
		{bind.ErrNoCode, ErrWrongNetwork},
		{errors.Wrap(ErrTransactionRejected, "signer"), ErrTransactionRejected},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, errors.Cause(classify(tt.err, "vote")), tt.err.Error())
	}
}
