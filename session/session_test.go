package session

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chainvote-backend/models"
	"chainvote-backend/test/mock/mock_ledger"
	"chainvote-backend/wallet"
)

const candidate = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func step(voter string, n int, sig string) models.VoteStep {
	return models.VoteStep{CandidateAddress: candidate, VoterAddress: voter, Signature: sig, Step: n}
}

func TestTwoStepSession(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := NewStore(DefaultConfig, clock.NewMock(), nil)
	voter := "0x00000000000000000000000000000000000000A1"

	_, err := s.Step(ctx, step(voter, 2, "0x02"))
	require.Equal(ErrInvalidSession, errors.Cause(err))

	res, err := s.Step(ctx, step(voter, 1, "0x01"))
	require.NoError(err)
	require.Equal(1, res.Step)
	require.Equal(1, s.Len())

	// step 1 again resets the session
	_, err = s.Step(ctx, step(voter, 1, "0x0a"))
	require.NoError(err)
	require.Equal(1, s.Len())

	// keys are case insensitive
	res, err = s.Step(ctx, models.VoteStep{
		CandidateAddress: "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
		VoterAddress:     voter,
		Signature:        "0x02",
		Step:             2,
	})
	require.NoError(err)
	require.Equal(2, res.Step)
	require.Equal(wallet.Commitment("0x0a", "0x02"), res.Commitment)
	require.Zero(s.Len())

	_, err = s.Step(ctx, step(voter, 2, "0x02"))
	require.Equal(ErrInvalidSession, errors.Cause(err))
}

func TestInvalidRequests(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := NewStore(DefaultConfig, clock.NewMock(), nil)

	_, err := s.Step(ctx, step("0xA1", 3, "0x01"))
	require.Equal(ErrInvalidStep, errors.Cause(err))
	_, err = s.Step(ctx, step("0xA1", 0, "0x01"))
	require.Equal(ErrInvalidStep, errors.Cause(err))
	_, err = s.Step(ctx, step("", 1, "0x01"))
	require.Equal(models.ErrInvalidRecord, errors.Cause(err))
	_, err = s.Step(ctx, step("0xA1", 1, ""))
	require.Equal(models.ErrInvalidRecord, errors.Cause(err))
}

func TestSessionExpiry(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	clk := clock.NewMock()
	s := NewStore(Config{TTL: time.Minute, SweepInterval: 10 * time.Second}, clk, nil)

	_, err := s.Step(ctx, step("0xA1", 1, "0x01"))
	require.NoError(err)
	_, err = s.Step(ctx, step("0xB2", 1, "0x01"))
	require.NoError(err)

	clk.Add(61 * time.Second)
	_, err = s.Step(ctx, step("0xA1", 2, "0x02"))
	require.Equal(ErrInvalidSession, errors.Cause(err))

	_, err = s.Step(ctx, step("0xC3", 1, "0x01"))
	require.NoError(err)
	require.Equal(3, s.Len())
	require.Equal(2, s.Sweep())
	require.Equal(1, s.Len())
}

func TestSweeper(t *testing.T) {
	require := require.New(t)
	clk := clock.NewMock()
	s := NewStore(Config{TTL: time.Minute, SweepInterval: 10 * time.Second}, clk, nil)
	_, err := s.Step(context.Background(), step("0xA1", 1, "0x01"))
	require.NoError(err)

	s.Start()
	defer s.Stop()
	require.Eventually(func() bool {
		clk.Add(10 * time.Second)
		return s.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSignatureVerification(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	g := mock_ledger.NewMockGateway(ctrl)
	g.EXPECT().GetCandidateBasicInfo(gomock.Any(), common.HexToAddress(candidate)).
		Return(&models.CandidateBasicInfo{Name: "Carol"}, nil).AnyTimes()

	key, err := wallet.GenerateKey()
	require.NoError(err)
	signer := wallet.NewKeySigner(key)
	voter := signer.Address().Hex()
	s := NewStore(Config{VerifySignatures: true}, clock.NewMock(), g)

	sig1, err := signer.SignMessage(ctx, models.ConfirmationMessage(1, "Carol"))
	require.NoError(err)
	_, err = s.Step(ctx, step(voter, 1, sig1))
	require.NoError(err)

	// a step 1 signature replayed as step 2
	_, err = s.Step(ctx, step(voter, 2, sig1))
	require.Equal(ErrSignatureMismatch, errors.Cause(err))

	sig2, err := signer.SignMessage(ctx, models.ConfirmationMessage(2, "Carol"))
	require.NoError(err)
	_, err = s.Step(ctx, step("0x00000000000000000000000000000000000000A1", 2, sig2))
	require.Equal(ErrSignatureMismatch, errors.Cause(err))

	res, err := s.Step(ctx, step(voter, 2, sig2))
	require.NoError(err)
	require.Equal(wallet.Commitment(sig1, sig2), res.Commitment)
}
