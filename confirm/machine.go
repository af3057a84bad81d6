package confirm

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	fsm "github.com/iotexproject/go-fsm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/wallet"
)

const (
	// StateIdle is the state with no candidate selected
	StateIdle fsm.State = "IDLE"
	// StateAwaitingFirst waits for the first confirmation
	StateAwaitingFirst fsm.State = "AWAITING_FIRST"
	// StateSigningFirst waits for the wallet to sign the first confirmation
	StateSigningFirst fsm.State = "SIGNING_FIRST"
	// StateAwaitingSecond waits for the second confirmation
	StateAwaitingSecond fsm.State = "AWAITING_SECOND"
	// StateSigningSecond waits for the wallet to sign the second confirmation
	StateSigningSecond fsm.State = "SIGNING_SECOND"
	// StateSubmitting is sending the vote to the ledger
	StateSubmitting fsm.State = "SUBMITTING"

	eSelect  fsm.EventType = "E_SELECT"
	eConfirm fsm.EventType = "E_CONFIRM"
	eSigned  fsm.EventType = "E_SIGNED"
	eSettled fsm.EventType = "E_SETTLED"
	eCancel  fsm.EventType = "E_CANCEL"
	eFail    fsm.EventType = "E_FAIL"
)

var (
	// ErrPointOfNoReturn indicates a cancel after the second confirmation started
	ErrPointOfNoReturn = errors.New("vote can no longer be cancelled")
	// ErrCancelled indicates the session was cancelled while a signature was pending
	ErrCancelled = errors.New("vote session cancelled")
	// ErrNoSelection indicates a confirmation without a selected candidate
	ErrNoSelection = errors.New("no candidate selected")
	// ErrTallyUpdate indicates the vote landed but the cached tally was not updated
	ErrTallyUpdate = errors.New("failed to update vote tally")
	// ErrBusy indicates an operation that is not valid in the current state
	ErrBusy = errors.New("vote session is busy")

	allStates = []fsm.State{
		StateIdle,
		StateAwaitingFirst,
		StateSigningFirst,
		StateAwaitingSecond,
		StateSigningSecond,
		StateSubmitting,
	}
)

// TallyUpdater records a landed vote in the cached tally
type TallyUpdater interface {
	Increment(ctx context.Context, candidate string) (int, error)
}

// SessionReporter forwards signed steps to a vote session endpoint
type SessionReporter interface {
	ReportVoteStep(ctx context.Context, step models.VoteStep) (*models.VoteStepResult, error)
}

// Outcome is the result of a submitted vote
type Outcome struct {
	Receipt        *ledger.Receipt
	HasVoted       bool
	CandidateTotal int
	Commitment     string
}

// Machine drives one voter through the two signed confirmations of a vote
type Machine struct {
	fsm      fsm.FSM
	signer   wallet.Signer
	gateway  ledger.Gateway
	tally    TallyUpdater
	reporter SessionReporter

	mu         sync.Mutex
	gen        uint64
	selected   *models.CandidateRecord
	signatures []string
	stopSign   context.CancelFunc
}

// Option configures a Machine
type Option func(*Machine)

// WithTally sets where landed votes are counted
func WithTally(t TallyUpdater) Option {
	return func(m *Machine) { m.tally = t }
}

// WithReporter reports every signed step
func WithReporter(r SessionReporter) Option {
	return func(m *Machine) { m.reporter = r }
}

type voteEvt struct {
	et        fsm.EventType
	gen       uint64
	signature string
	candidate *models.CandidateRecord
}

func (e *voteEvt) Type() fsm.EventType { return e.et }

// NewMachine creates an idle machine
func NewMachine(signer wallet.Signer, gateway ledger.Gateway, opts ...Option) (*Machine, error) {
	m := &Machine{signer: signer, gateway: gateway}
	for _, opt := range opts {
		opt(m)
	}
	idle := []fsm.State{StateIdle}
	b := fsm.NewBuilder().
		AddInitialState(StateIdle).
		AddStates(allStates[1:]...).
		AddTransition(StateIdle, eSelect, m.onSelect, []fsm.State{StateAwaitingFirst}).
		AddTransition(StateIdle, eCancel, m.onCancel, idle).
		AddTransition(StateAwaitingFirst, eConfirm, m.onConfirm(StateSigningFirst), []fsm.State{StateSigningFirst}).
		AddTransition(StateAwaitingFirst, eCancel, m.onCancel, idle).
		AddTransition(StateSigningFirst, eSigned, m.onSigned(StateAwaitingSecond), []fsm.State{StateAwaitingSecond}).
		AddTransition(StateSigningFirst, eCancel, m.onCancel, idle).
		AddTransition(StateAwaitingSecond, eConfirm, m.onConfirm(StateSigningSecond), []fsm.State{StateSigningSecond}).
		AddTransition(StateSigningSecond, eSigned, m.onSigned(StateSubmitting), []fsm.State{StateSubmitting}).
		AddTransition(StateSubmitting, eSettled, m.onTeardown, idle)
	for _, s := range allStates[1:] {
		b = b.AddTransition(s, eFail, m.onTeardown, idle)
	}
	for _, s := range []fsm.State{StateAwaitingSecond, StateSigningSecond, StateSubmitting} {
		b = b.AddTransition(s, eCancel, rejectCancel, []fsm.State{s})
	}
	f, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "error when building the vote confirmation FSM")
	}
	m.fsm = f
	return m, nil
}

// State returns the current state
func (m *Machine) State() fsm.State {
	return m.fsm.CurrentState()
}

// Step returns the confirmation step the session is on, 0 when idle
func (m *Machine) Step() int {
	switch m.fsm.CurrentState() {
	case StateAwaitingFirst, StateSigningFirst:
		return 1
	case StateAwaitingSecond, StateSigningSecond, StateSubmitting:
		return 2
	default:
		return 0
	}
}

// Selected returns the selected candidate, nil when idle
func (m *Machine) Selected() *models.CandidateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Select starts a session for candidate. No ledger call is made.
func (m *Machine) Select(candidate *models.CandidateRecord) error {
	if candidate == nil || !common.IsHexAddress(candidate.Address) {
		return errors.Wrap(models.ErrInvalidRecord, "candidate address is required")
	}
	if err := m.fsm.Handle(&voteEvt{et: eSelect, candidate: candidate}); err != nil {
		return m.busy(err)
	}
	return nil
}

// Cancel aborts the session before the second confirmation
func (m *Machine) Cancel() error {
	return m.fsm.Handle(&voteEvt{et: eCancel})
}

// Confirm signs the current step. The second confirmation submits the vote and
// returns its outcome.
func (m *Machine) Confirm(ctx context.Context) (*Outcome, error) {
	switch m.fsm.CurrentState() {
	case StateIdle:
		return nil, ErrNoSelection
	case StateAwaitingFirst:
		return nil, m.confirmFirst(ctx)
	case StateAwaitingSecond:
		return m.confirmSecond(ctx)
	default:
		return nil, errors.Wrapf(ErrBusy, "state %s", m.fsm.CurrentState())
	}
}

func (m *Machine) confirmFirst(ctx context.Context) error {
	gen, candidate := m.session()
	if err := m.fsm.Handle(&voteEvt{et: eConfirm, gen: gen}); err != nil {
		return m.busy(err)
	}
	signCtx, stop := context.WithCancel(ctx)
	m.mu.Lock()
	m.stopSign = stop
	m.mu.Unlock()
	defer stop()

	sig, err := m.signer.SignMessage(signCtx, models.ConfirmationMessage(1, candidate.BasicInfo.Name))
	if !m.live(gen) {
		return ErrCancelled
	}
	if err != nil {
		return m.fail(gen, err)
	}
	if err := m.report(ctx, candidate, 1, sig); err != nil {
		return m.fail(gen, err)
	}
	if err := m.fsm.Handle(&voteEvt{et: eSigned, gen: gen, signature: sig}); err != nil {
		return ErrCancelled
	}
	log.Logger("confirm").Info("first confirmation signed", zap.String("candidate", candidate.Address))
	return nil
}

func (m *Machine) confirmSecond(ctx context.Context) (*Outcome, error) {
	gen, candidate := m.session()
	if err := m.fsm.Handle(&voteEvt{et: eConfirm, gen: gen}); err != nil {
		return nil, m.busy(err)
	}
	sig, err := m.signer.SignMessage(ctx, models.ConfirmationMessage(2, candidate.BasicInfo.Name))
	if err != nil {
		return nil, m.fail(gen, err)
	}
	if err := m.report(ctx, candidate, 2, sig); err != nil {
		return nil, m.fail(gen, err)
	}
	if err := m.fsm.Handle(&voteEvt{et: eSigned, gen: gen, signature: sig}); err != nil {
		return nil, m.fail(gen, err)
	}

	// the vote is submitted once and settles even if the caller goes away
	submitCtx := context.WithoutCancel(ctx)
	receipt, err := m.gateway.Vote(submitCtx, common.HexToAddress(candidate.Address))
	if err != nil {
		return nil, m.fail(gen, err)
	}
	m.mu.Lock()
	outcome := &Outcome{Receipt: receipt, Commitment: wallet.Commitment(m.signatures...)}
	m.mu.Unlock()

	voter := m.signer.Address()
	if outcome.HasVoted, err = m.gateway.HasVoted(submitCtx, voter); err != nil {
		log.Logger("confirm").Warn("failed to re-read voting status", zap.String("voter", voter.Hex()), zap.Error(err))
	}
	var tallyErr error
	if m.tally != nil {
		outcome.CandidateTotal, tallyErr = m.tally.Increment(submitCtx, candidate.Address)
	}
	if err := m.fsm.Handle(&voteEvt{et: eSettled, gen: gen}); err != nil {
		log.Logger("confirm").Error("failed to settle vote session", zap.Error(err))
	}
	log.Logger("confirm").Info("vote submitted",
		zap.String("candidate", candidate.Address),
		zap.String("tx", receipt.TxHash))
	if tallyErr != nil {
		return outcome, errors.Wrap(ErrTallyUpdate, tallyErr.Error())
	}
	return outcome, nil
}

func (m *Machine) report(ctx context.Context, candidate *models.CandidateRecord, step int, sig string) error {
	if m.reporter == nil {
		return nil
	}
	_, err := m.reporter.ReportVoteStep(ctx, models.VoteStep{
		CandidateAddress: candidate.Address,
		VoterAddress:     m.signer.Address().Hex(),
		Signature:        sig,
		Step:             step,
	})
	return err
}

// fail tears the session down and returns err
func (m *Machine) fail(gen uint64, err error) error {
	if hErr := m.fsm.Handle(&voteEvt{et: eFail, gen: gen}); hErr != nil {
		log.Logger("confirm").Debug("session already torn down", zap.Error(hErr))
	}
	log.Logger("confirm").Warn("vote session failed", zap.Error(err))
	return err
}

func (m *Machine) busy(err error) error {
	if errors.Cause(err) == fsm.ErrTransitionNotFound {
		return errors.Wrapf(ErrBusy, "state %s", m.fsm.CurrentState())
	}
	return err
}

func (m *Machine) session() (uint64, *models.CandidateRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, m.selected
}

func (m *Machine) live(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.selected != nil
}

func (m *Machine) onSelect(evt fsm.Event) (fsm.State, error) {
	e := evt.(*voteEvt)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.selected = e.candidate
	m.signatures = nil
	m.stopSign = nil
	return StateAwaitingFirst, nil
}

func (m *Machine) onConfirm(dst fsm.State) fsm.Transition {
	return func(evt fsm.Event) (fsm.State, error) {
		if !m.live(evt.(*voteEvt).gen) {
			return StateIdle, ErrCancelled
		}
		return dst, nil
	}
}

func (m *Machine) onSigned(dst fsm.State) fsm.Transition {
	return func(evt fsm.Event) (fsm.State, error) {
		e := evt.(*voteEvt)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != e.gen {
			return StateIdle, ErrCancelled
		}
		m.signatures = append(m.signatures, e.signature)
		return dst, nil
	}
}

func (m *Machine) onCancel(_ fsm.Event) (fsm.State, error) {
	m.mu.Lock()
	if m.stopSign != nil {
		m.stopSign()
	}
	m.mu.Unlock()
	m.reset()
	return StateIdle, nil
}

func (m *Machine) onTeardown(evt fsm.Event) (fsm.State, error) {
	m.mu.Lock()
	stale := m.gen != evt.(*voteEvt).gen
	m.mu.Unlock()
	if stale {
		return StateIdle, ErrCancelled
	}
	m.reset()
	return StateIdle, nil
}

func rejectCancel(_ fsm.Event) (fsm.State, error) {
	return StateIdle, ErrPointOfNoReturn
}

func (m *Machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.selected = nil
	m.signatures = nil
	m.stopSign = nil
}
