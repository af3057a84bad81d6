package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"chainvote-backend/ledger"
	"chainvote-backend/models"
)

// VoterVerificationService performs the checks that precede a ledger registration
type VoterVerificationService struct {
	gateway ledger.Gateway
	now     func() time.Time
}

// NewVoterVerificationService creates a verifier reading registration state from gateway
func NewVoterVerificationService(gateway ledger.Gateway) *VoterVerificationService {
	return &VoterVerificationService{gateway: gateway, now: time.Now}
}

// VerifyVoter checks a registration record and that account has not registered yet
func (vvs *VoterVerificationService) VerifyVoter(ctx context.Context, record *models.VoterRecord, account common.Address) error {
	// 1. Field validation, including the minimum age
	if err := record.Validate(vvs.now()); err != nil {
		return err
	}

	// 2. One registration per account
	registered, err := vvs.gateway.IsVoterRegistered(ctx, account)
	if err != nil {
		return errors.Wrap(err, "failed to check voter registration")
	}
	if registered {
		return errors.Wrapf(ErrAlreadyRegistered, "voter %s", account.Hex())
	}
	return nil
}

// VerifyUpdate checks a voter details update for a registered account
func (vvs *VoterVerificationService) VerifyUpdate(ctx context.Context, update *models.VoterUpdate, account common.Address) error {
	if err := update.Validate(vvs.now()); err != nil {
		return err
	}
	return vvs.requireRegistered(ctx, account)
}

// VerifyCandidate checks a candidate profile and that account is a registered voter
func (vvs *VoterVerificationService) VerifyCandidate(ctx context.Context, profile *models.CandidateProfile, account common.Address) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	return vvs.requireRegistered(ctx, account)
}

func (vvs *VoterVerificationService) requireRegistered(ctx context.Context, account common.Address) error {
	registered, err := vvs.gateway.IsVoterRegistered(ctx, account)
	if err != nil {
		return errors.Wrap(err, "failed to check voter registration")
	}
	if !registered {
		return errors.Wrapf(ErrNotRegistered, "voter %s", account.Hex())
	}
	return nil
}
