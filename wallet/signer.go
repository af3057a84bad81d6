package wallet

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrRejected indicates the account holder declined to sign
	ErrRejected = errors.New("signature request rejected")
	// ErrInvalidSignature indicates a malformed or unrecoverable signature
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer produces personal_sign signatures for the connected account
type Signer interface {
	Address() common.Address
	SignMessage(ctx context.Context, message string) (string, error)
}

// KeySigner signs with a local private key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner creates a signer for key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// KeyFromHex parses a hex encoded secp256k1 private key, with or without 0x prefix
func KeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return key, nil
}

// GenerateKey generates a new key pair
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Address returns the account of the key
func (s *KeySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignMessage returns the 65 byte personal_sign signature of message as hex
func (s *KeySigner) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// PromptSigner asks Approve before delegating to the wrapped signer
type PromptSigner struct {
	Signer
	Approve func(message string) bool
}

// SignMessage signs message once Approve accepts it
func (p *PromptSigner) SignMessage(ctx context.Context, message string) (string, error) {
	if p.Approve != nil && !p.Approve(message) {
		return "", ErrRejected
	}
	return p.Signer.SignMessage(ctx, message)
}

// RecoverSigner returns the account that produced a personal_sign signature of message
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "decode: %v", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "recover: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over message was produced by account
func VerifySignature(message, signature string, account common.Address) bool {
	signer, err := RecoverSigner(message, signature)
	return err == nil && signer == account
}

// Keccak256 computes the Keccak-256 hash of the concatenated inputs
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Commitment hashes the confirmation signatures in order into a single memo
func Commitment(signatures ...string) string {
	parts := make([][]byte, 0, len(signatures))
	for _, s := range signatures {
		if b, err := hexutil.Decode(s); err == nil {
			parts = append(parts, b)
		} else {
			parts = append(parts, []byte(s))
		}
	}
	return hexutil.Encode(Keccak256(parts...))
}
