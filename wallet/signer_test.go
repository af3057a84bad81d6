package wallet

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignAndRecover(t *testing.T) {
	require := require.New(t)
	key, err := KeyFromHex(testKeyHex)
	require.NoError(err)
	s := NewKeySigner(key)
	require.Equal("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", s.Address().Hex())

	msg := "Confirm Vote 1 for candidate Asha Rao"
	sig, err := s.SignMessage(context.Background(), msg)
	require.NoError(err)
	require.Len(sig, 2+2*crypto.SignatureLength)

	signer, err := RecoverSigner(msg, sig)
	require.NoError(err)
	require.Equal(s.Address(), signer)
	require.True(VerifySignature(msg, sig, s.Address()))
	require.False(VerifySignature("Confirm Vote 2 for candidate Asha Rao", sig, s.Address()))

	_, err = RecoverSigner(msg, "0x1234")
	require.Equal(ErrInvalidSignature, errors.Cause(err))
	_, err = RecoverSigner(msg, "zz")
	require.Equal(ErrInvalidSignature, errors.Cause(err))

	_, err = KeyFromHex("0xnothex")
	require.Error(err)
}

func TestPromptSigner(t *testing.T) {
	require := require.New(t)
	key, err := GenerateKey()
	require.NoError(err)

	var prompted []string
	p := &PromptSigner{Signer: NewKeySigner(key), Approve: func(m string) bool {
		prompted = append(prompted, m)
		return len(prompted) == 1
	}}
	_, err = p.SignMessage(context.Background(), "first")
	require.NoError(err)
	_, err = p.SignMessage(context.Background(), "second")
	require.Equal(ErrRejected, err)
	require.Equal([]string{"first", "second"}, prompted)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), p.Address())
}

func TestCommitment(t *testing.T) {
	require := require.New(t)
	a := Commitment("0x01", "0x02")
	require.Equal(a, Commitment("0x01", "0x02"))
	require.NotEqual(a, Commitment("0x02", "0x01"))
	require.Len(a, 66)
	require.Equal("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Commitment())
}
