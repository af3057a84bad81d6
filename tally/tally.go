package tally

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"chainvote-backend/ipfs"
	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/storage"
)

var (
	// ErrTallyRaceLoss indicates the pointer moved between load and swap
	ErrTallyRaceLoss = errors.New("lost tally update race")

	_incrementMtc = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainvote_tally_increments_total",
			Help: "Vote tally increments by result.",
		},
		[]string{"result"},
	)
	_conflictMtc = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chainvote_tally_pointer_conflicts_total",
		Help: "Tally pointer compare-and-swap conflicts.",
	})
)

func init() {
	prometheus.MustRegister(_incrementMtc, _conflictMtc)
}

// Config configures the tally store
type Config struct {
	MaxRetries        uint64        `yaml:"maxRetries"`
	RetryInterval     time.Duration `yaml:"retryInterval"`
	QueueSize         int           `yaml:"queueSize"`
	RequireLedgerVote bool          `yaml:"requireLedgerVote"`
}

// DefaultConfig is the default tally configuration
var DefaultConfig = Config{
	MaxRetries:    10,
	RetryInterval: 20 * time.Millisecond,
	QueueSize:     256,
}

// Tally reads and increments the cached vote counts
type Tally interface {
	Get(ctx context.Context) (models.VoteTally, error)
	Increment(ctx context.Context, candidate string) (int, error)
}

// Store keeps the tally as a pinned JSON document referenced by a pointer
type Store struct {
	store   ipfs.Store
	pointer storage.Pointer
	cfg     Config
}

var _ Tally = (*Store)(nil)

// NewStore creates a tally store
func NewStore(store ipfs.Store, pointer storage.Pointer, cfg Config) *Store {
	return &Store{store: store, pointer: pointer, cfg: cfg}
}

// CandidateKey returns the EIP-55 form of a candidate address
func CandidateKey(candidate string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if !common.IsHexAddress(candidate) {
		return "", errors.Wrapf(models.ErrInvalidRecord, "invalid candidate address %q", candidate)
	}
	return common.HexToAddress(candidate).Hex(), nil
}

// Get returns the current tally
func (s *Store) Get(ctx context.Context) (models.VoteTally, error) {
	t, _, err := s.Snapshot(ctx)
	return t, err
}

// Snapshot returns the current tally with the CID it was read from
func (s *Store) Snapshot(ctx context.Context) (models.VoteTally, string, error) {
	c, err := s.pointer.Load(ctx)
	if err != nil {
		return nil, "", errors.Wrap(ipfs.ErrStoreUnavailable, err.Error())
	}
	if c == "" {
		return models.VoteTally{}, "", nil
	}
	raw, err := s.store.Fetch(ctx, c)
	if err != nil {
		if errors.Cause(err) == ipfs.ErrStoreUnavailable {
			return nil, "", err
		}
		return nil, "", errors.Wrapf(ipfs.ErrStoreUnavailable, "tally %s: %v", c, err)
	}
	t, err := Decode(raw)
	if err != nil {
		return nil, "", errors.Wrapf(ipfs.ErrStoreUnavailable, "tally %s: %v", c, err)
	}
	return t, c, nil
}

// Increment adds one vote for candidate and returns its new count
func (s *Store) Increment(ctx context.Context, candidate string) (int, error) {
	key, err := CandidateKey(candidate)
	if err != nil {
		return 0, err
	}
	var total int
	err = s.update(ctx, func(t models.VoteTally) error {
		t[key]++
		total = t[key]
		return nil
	})
	if err != nil {
		_incrementMtc.WithLabelValues("failure").Inc()
		return 0, err
	}
	_incrementMtc.WithLabelValues("success").Inc()
	log.Logger("tally").Debug("tally incremented", zap.String("candidate", key), zap.Int("count", total))
	return total, nil
}

// update runs a load, modify, pin and swap cycle, retrying the whole cycle on pointer conflicts
func (s *Store) update(ctx context.Context, modify func(models.VoteTally) error) error {
	attempt := func() error {
		t, current, err := s.Snapshot(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := modify(t); err != nil {
			return backoff.Permanent(err)
		}
		next, err := s.store.PinJSON(ctx, t)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := s.pointer.CompareAndSwap(ctx, current, next); err != nil {
			if errors.Cause(err) == storage.ErrPointerConflict {
				_conflictMtc.Inc()
				return errors.Wrap(ErrTallyRaceLoss, err.Error())
			}
			return backoff.Permanent(errors.Wrap(ipfs.ErrStoreUnavailable, err.Error()))
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.backOff(), s.cfg.MaxRetries), ctx)
	err := backoff.Retry(attempt, b)
	if err != nil && errors.Cause(err) == ErrTallyRaceLoss {
		return errors.Wrapf(ipfs.ErrStoreUnavailable, "gave up after %d retries: %v", s.cfg.MaxRetries, err)
	}
	return err
}

func (s *Store) backOff() backoff.BackOff {
	if s.cfg.RetryInterval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	b.MaxInterval = 50 * s.cfg.RetryInterval
	b.MaxElapsedTime = 0
	return b
}

// Decode parses a pinned tally. Numbers and numeric strings are accepted,
// fractions truncated and negatives clamped to zero; other values are dropped.
// Keys that are addresses are folded into their EIP-55 form.
func Decode(raw []byte) (models.VoteTally, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("malformed tally JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, errors.New("tally is not a JSON object")
	}
	t := models.VoteTally{}
	doc.ForEach(func(k, v gjson.Result) bool {
		n, ok := coerce(v)
		if !ok {
			return true
		}
		key := k.String()
		if common.IsHexAddress(key) {
			key = common.HexToAddress(key).Hex()
		}
		t[key] += n
		return true
	})
	return t, nil
}

func coerce(v gjson.Result) (int, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 {
		return 0, true
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	return int(f), true
}
