package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/wallet"
)

var (
	// ErrInvalidSession indicates a second step without a live first step
	ErrInvalidSession = errors.New("invalid voting session")
	// ErrInvalidStep indicates a step other than 1 or 2
	ErrInvalidStep = errors.New("invalid step")
	// ErrSignatureMismatch indicates a signature not produced by the voter
	ErrSignatureMismatch = errors.New("signature does not match voter")
)

// Config configures the session store
type Config struct {
	TTL              time.Duration `yaml:"ttl"`
	SweepInterval    time.Duration `yaml:"sweepInterval"`
	VerifySignatures bool          `yaml:"verifySignatures"`
}

// DefaultConfig is the default session configuration
var DefaultConfig = Config{
	TTL:           10 * time.Minute,
	SweepInterval: time.Minute,
}

// CandidateInfo looks up the candidate name used in confirmation messages
type CandidateInfo interface {
	GetCandidateBasicInfo(ctx context.Context, candidate common.Address) (*models.CandidateBasicInfo, error)
}

// Store keeps in-flight two step vote sessions keyed by voter and candidate
type Store struct {
	cfg   Config
	clk   clock.Clock
	names CandidateInfo

	mu       sync.Mutex
	sessions map[string]*models.VoteSession

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewStore creates a session store. names is only used when signatures are verified.
func NewStore(cfg Config, clk clock.Clock, names CandidateInfo) *Store {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig.SweepInterval
	}
	return &Store{
		cfg:      cfg,
		clk:      clk,
		names:    names,
		sessions: make(map[string]*models.VoteSession),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the expiry sweeper
func (s *Store) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := s.clk.Ticker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Logger("session").Debug("expired vote sessions removed", zap.Int("count", n))
				}
			}
		}
	}()
}

// Stop stops the sweeper
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Step records one signed confirmation step
func (s *Store) Step(ctx context.Context, req models.VoteStep) (*models.VoteStepResult, error) {
	if strings.TrimSpace(req.CandidateAddress) == "" || strings.TrimSpace(req.VoterAddress) == "" || req.Signature == "" {
		return nil, errors.Wrap(models.ErrInvalidRecord, "missing required parameters")
	}
	if req.Step != 1 && req.Step != 2 {
		return nil, errors.Wrapf(ErrInvalidStep, "step %d", req.Step)
	}
	if s.cfg.VerifySignatures {
		if err := s.verify(ctx, req); err != nil {
			return nil, err
		}
	}

	key := models.SessionKey(req.VoterAddress, req.CandidateAddress)
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Step == 1 {
		s.sessions[key] = &models.VoteSession{
			CandidateAddress: req.CandidateAddress,
			VoterAddress:     req.VoterAddress,
			Step:             1,
			Signatures:       []string{req.Signature},
			UpdatedAt:        now,
		}
		return &models.VoteStepResult{Message: "First confirmation received", Step: 1}, nil
	}

	sess, ok := s.sessions[key]
	if !ok || sess.Step != 1 || s.expired(sess, now) {
		return nil, ErrInvalidSession
	}
	delete(s.sessions, key)
	sigs := append(sess.Signatures, req.Signature)
	log.Logger("session").Info("vote session confirmed",
		zap.String("voter", req.VoterAddress),
		zap.String("candidate", req.CandidateAddress))
	return &models.VoteStepResult{
		Message:    "Vote successfully cast",
		Step:       2,
		Commitment: wallet.Commitment(sigs...),
	}, nil
}

// Sweep removes expired sessions and returns how many were removed
func (s *Store) Sweep() int {
	now := s.clk.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}

// Len returns the number of sessions held
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *models.VoteSession, now time.Time) bool {
	return now.Sub(sess.UpdatedAt) > s.cfg.TTL
}

func (s *Store) verify(ctx context.Context, req models.VoteStep) error {
	if !common.IsHexAddress(req.CandidateAddress) || !common.IsHexAddress(req.VoterAddress) {
		return errors.Wrap(models.ErrInvalidRecord, "invalid address")
	}
	if s.names == nil {
		return errors.New("no candidate source for signature verification")
	}
	info, err := s.names.GetCandidateBasicInfo(ctx, common.HexToAddress(req.CandidateAddress))
	if err != nil {
		return errors.Wrap(err, "failed to read candidate name")
	}
	msg := models.ConfirmationMessage(req.Step, info.Name)
	if !wallet.VerifySignature(msg, req.Signature, common.HexToAddress(req.VoterAddress)) {
		return errors.Wrapf(ErrSignatureMismatch, "step %d", req.Step)
	}
	return nil
}
