package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/directory"
	"chainvote-backend/ipfs"
	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/session"
	"chainvote-backend/tally"
)

var (
	// ErrAlreadyRegistered indicates the account already holds a voter registration
	ErrAlreadyRegistered = errors.New("voter is already registered")
	// ErrNotRegistered indicates the account holds no voter registration
	ErrNotRegistered = errors.New("voter is not registered")
	// ErrNotVoted indicates a tally update for a voter the ledger has not seen vote
	ErrNotVoted = errors.New("voter has not voted on the ledger")
	// ErrCaptcha indicates a rejected captcha token
	ErrCaptcha = errors.New("invalid captcha")

	errNoTally = errors.New("vote tally is not enabled")
)

// Upload is a file to pin
type Upload struct {
	Reader   io.Reader
	Filename string
	MimeType string
}

// Registration is the result of a voter or candidate registration
type Registration struct {
	Receipt     *ledger.Receipt `json:"receipt"`
	ContentHash string          `json:"ipfsHash"`
	PictureURL  string          `json:"profilePictureUrl,omitempty"`
}

// VoterStatus is the ledger view of one account
type VoterStatus struct {
	Address     string `json:"address"`
	ChainID     string `json:"chainId"`
	Registered  bool   `json:"registered"`
	HasVoted    bool   `json:"hasVoted"`
	IsCandidate bool   `json:"isCandidate"`
}

// VotingService wires the content store, candidate directory, vote tally,
// ledger and vote sessions together
type VotingService struct {
	store             ipfs.Store
	directory         *directory.Directory
	tally             *tally.Queue
	gateway           ledger.Gateway
	sessions          *session.Store
	captcha           *CaptchaVerifier
	verification      *VoterVerificationService
	metrics           *MetricsCollector
	requireLedgerVote bool
}

// Option configures a VotingService
type Option func(*VotingService)

// WithCaptcha enables captcha verification
func WithCaptcha(c *CaptchaVerifier) Option {
	return func(vs *VotingService) { vs.captcha = c }
}

// WithSessions enables the server side vote session endpoint
func WithSessions(s *session.Store) Option {
	return func(vs *VotingService) { vs.sessions = s }
}

// WithLedgerVoteGuard requires hasVoted on the ledger before a tally update
func WithLedgerVoteGuard(require bool) Option {
	return func(vs *VotingService) { vs.requireLedgerVote = require }
}

// NewVotingService creates the service. A nil queue leaves the tally operations disabled.
func NewVotingService(store ipfs.Store, dir *directory.Directory, queue *tally.Queue, gateway ledger.Gateway, opts ...Option) *VotingService {
	vs := &VotingService{
		store:        store,
		directory:    dir,
		tally:        queue,
		gateway:      gateway,
		verification: NewVoterVerificationService(gateway),
		metrics:      NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(vs)
	}
	return vs
}

// Metrics returns the service's metrics collector
func (vs *VotingService) Metrics() *MetricsCollector {
	return vs.metrics
}

// Gateway returns the ledger gateway
func (vs *VotingService) Gateway() ledger.Gateway {
	return vs.gateway
}

// Tally returns the tally store behind the queue
func (vs *VotingService) Tally() *tally.Store {
	if vs.tally == nil {
		return nil
	}
	return vs.tally.Store()
}

// RegisterVoter pins the optional picture and the record, then registers the
// connected account on the ledger
func (vs *VotingService) RegisterVoter(ctx context.Context, record models.VoterRecord, picture *Upload) (_ *Registration, err error) {
	start := time.Now()
	defer func() { vs.metrics.RecordRegistration("voter", start, err) }()

	account := vs.gateway.Account()
	if err := vs.verification.VerifyVoter(ctx, &record, account); err != nil {
		return nil, err
	}
	reg := &Registration{}
	if picture != nil && picture.Reader != nil {
		c, err := vs.store.PinFile(ctx, picture.Reader, picture.Filename, picture.MimeType)
		if err != nil {
			return nil, errors.Wrap(err, "failed to pin profile picture")
		}
		record.ProfilePictureURL = ipfs.PublicURL(c)
		reg.PictureURL = record.ProfilePictureURL
	}
	if reg.ContentHash, err = vs.store.PinJSON(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to pin voter record")
	}
	record.ContentHash = reg.ContentHash
	if reg.Receipt, err = vs.gateway.RegisterVoter(ctx, record); err != nil {
		return nil, err
	}
	log.Logger("service").Info("voter registered",
		zap.String("voter", account.Hex()),
		zap.String("cid", reg.ContentHash))
	return reg, nil
}

// UpdateVoterDetails updates the connected account's voter record
func (vs *VotingService) UpdateVoterDetails(ctx context.Context, update models.VoterUpdate) (*ledger.Receipt, error) {
	if err := vs.verification.VerifyUpdate(ctx, &update, vs.gateway.Account()); err != nil {
		return nil, err
	}
	return vs.gateway.UpdateVoterDetails(ctx, update)
}

// RegisterCandidate pins the profile, lists it in the directory and registers
// the connected account as a candidate
func (vs *VotingService) RegisterCandidate(ctx context.Context, basic models.CandidateBasicInfo, additional models.CandidateAdditionalInfo) (_ *Registration, err error) {
	start := time.Now()
	defer func() { vs.metrics.RecordRegistration("candidate", start, err) }()

	account := vs.gateway.Account()
	profile := models.CandidateProfile{BasicInfo: basic, AdditionalInfo: additional}
	if err := vs.verification.VerifyCandidate(ctx, &profile, account); err != nil {
		return nil, err
	}
	reg := &Registration{}
	if reg.ContentHash, err = vs.store.PinJSON(ctx, profile); err != nil {
		return nil, errors.Wrap(err, "failed to pin candidate profile")
	}
	if err := vs.directory.Append(ctx, reg.ContentHash, account.Hex()); err != nil {
		return nil, err
	}
	if reg.Receipt, err = vs.gateway.RegisterCandidate(ctx, basic, additional, reg.ContentHash); err != nil {
		return nil, err
	}
	log.Logger("service").Info("candidate registered",
		zap.String("candidate", account.Hex()),
		zap.String("cid", reg.ContentHash))
	return reg, nil
}

// AddCandidateCID appends a directory entry
func (vs *VotingService) AddCandidateCID(ctx context.Context, cid, address string) error {
	return vs.directory.Append(ctx, cid, address)
}

// CandidateCIDs returns the raw directory entries
func (vs *VotingService) CandidateCIDs(ctx context.Context) ([]models.DirectoryEntry, error) {
	return vs.directory.List(ctx)
}

// Candidates returns the resolved, deduplicated directory
func (vs *VotingService) Candidates(ctx context.Context) (*directory.Listing, error) {
	return vs.directory.Candidates(ctx)
}

// LedgerCandidates reads every registered candidate from the ledger
func (vs *VotingService) LedgerCandidates(ctx context.Context) ([]*models.CandidateRecord, error) {
	addrs, err := ledger.Candidates(ctx, vs.gateway)
	if err != nil {
		return nil, err
	}
	records := make([]*models.CandidateRecord, 0, len(addrs))
	for _, addr := range addrs {
		ok, err := vs.gateway.IsRegisteredCandidate(ctx, addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rec, err := ledger.CandidateRecord(ctx, vs.gateway, addr)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateVoteCount adds a vote for candidate to the cached tally
func (vs *VotingService) UpdateVoteCount(ctx context.Context, candidate, voter string) (_ int, err error) {
	start := time.Now()
	defer func() { vs.metrics.RecordCounting(start, err) }()

	if vs.tally == nil {
		return 0, errNoTally
	}
	if _, err := tally.CandidateKey(candidate); err != nil {
		return 0, err
	}
	if vs.requireLedgerVote {
		addr, err := ledger.ParseAddress(strings.TrimSpace(voter))
		if err != nil {
			return 0, err
		}
		voted, err := vs.gateway.HasVoted(ctx, addr)
		if err != nil {
			return 0, err
		}
		if !voted {
			return 0, errors.Wrapf(ErrNotVoted, "voter %s", addr.Hex())
		}
	}
	return vs.tally.Increment(ctx, candidate)
}

// VoteCounts returns the cached tally
func (vs *VotingService) VoteCounts(ctx context.Context) (*models.VoteCounts, error) {
	if vs.tally == nil {
		return nil, errNoTally
	}
	t, c, err := vs.tally.Store().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &models.VoteCounts{VoteCounts: t, TotalVotes: t.Total(), CID: c}, nil
}

// UploadFile pins a file and returns its CID
func (vs *VotingService) UploadFile(ctx context.Context, u Upload) (string, error) {
	if u.Reader == nil {
		return "", errors.Wrap(models.ErrInvalidRecord, "invalid file upload")
	}
	return vs.store.PinFile(ctx, u.Reader, u.Filename, u.MimeType)
}

// ReportVoteStep lets the service stand in for a remote session endpoint
func (vs *VotingService) ReportVoteStep(ctx context.Context, step models.VoteStep) (*models.VoteStepResult, error) {
	return vs.VoteStep(ctx, step)
}

// VoteStep records a signed confirmation step
func (vs *VotingService) VoteStep(ctx context.Context, step models.VoteStep) (_ *models.VoteStepResult, err error) {
	if vs.sessions == nil {
		return nil, errors.New("vote sessions are not enabled")
	}
	start := time.Now()
	defer func() { vs.metrics.RecordVoteStep(step.Step, start, err) }()
	return vs.sessions.Step(ctx, step)
}

// VerifyCaptcha checks a reCAPTCHA token
func (vs *VotingService) VerifyCaptcha(ctx context.Context, token string) error {
	if vs.captcha == nil {
		return errors.New("captcha verification is not configured")
	}
	return vs.captcha.Verify(ctx, token)
}

// VoterStatus reads the registration and voting state of account
func (vs *VotingService) VoterStatus(ctx context.Context, account common.Address) (*VoterStatus, error) {
	st := &VoterStatus{Address: account.Hex()}
	if id := vs.gateway.ChainID(); id != nil {
		st.ChainID = id.String()
	}
	var err error
	if st.Registered, err = vs.gateway.IsVoterRegistered(ctx, account); err != nil {
		return nil, err
	}
	if st.HasVoted, err = vs.gateway.HasVoted(ctx, account); err != nil {
		return nil, err
	}
	if st.IsCandidate, err = vs.gateway.IsRegisteredCandidate(ctx, account); err != nil {
		return nil, err
	}
	return st, nil
}

// Rebuild replaces the cached tally with ledger counts
func (vs *VotingService) Rebuild(ctx context.Context) (models.VoteTally, error) {
	if vs.tally == nil {
		return nil, errNoTally
	}
	return vs.tally.Store().Rebuild(ctx, vs.gateway, nil)
}

// Reconcile compares the cached tally with the ledger
func (vs *VotingService) Reconcile(ctx context.Context) (*tally.Reconciliation, error) {
	if vs.tally == nil {
		return nil, errNoTally
	}
	return vs.tally.Store().Reconcile(ctx, vs.gateway, nil)
}

