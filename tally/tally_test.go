package tally

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"chainvote-backend/ipfs"
	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/storage"
)

const candidateC = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var testConfig = Config{MaxRetries: 200, RetryInterval: time.Millisecond, QueueSize: 64}

func newTestStore(t *testing.T) (*Store, *ipfs.Memory, storage.Pointer) {
	mem := ipfs.NewMemory()
	p, err := storage.NewFilePointer(t.TempDir(), storage.VoteCountFile)
	require.NoError(t, err)
	return NewStore(mem, p, testConfig), mem, p
}

func seed(t *testing.T, mem *ipfs.Memory, p storage.Pointer, tally models.VoteTally) string {
	ctx := context.Background()
	c, err := mem.PinJSON(ctx, tally)
	require.NoError(t, err)
	current, err := p.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, p.CompareAndSwap(ctx, current, c))
	return c
}

func TestIncrementFromEmpty(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _, p := newTestStore(t)

	got, err := s.Get(ctx)
	require.NoError(err)
	require.Empty(got)

	n, err := s.Increment(ctx, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(err)
	require.Equal(1, n)

	c, err := p.Load(ctx)
	require.NoError(err)
	require.True(ipfs.ValidCID(c))

	got, c2, err := s.Snapshot(ctx)
	require.NoError(err)
	require.Equal(c, c2)
	require.Equal(models.VoteTally{candidateC: 1}, got)

	_, err = s.Increment(ctx, "not-an-address")
	require.Equal(models.ErrInvalidRecord, errors.Cause(err))
}

func TestConcurrentIncrementsThroughQueue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	q := NewQueue(s, 64)
	q.Start()
	defer q.Stop()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Increment(ctx, candidateC)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	got, err := q.Get(ctx)
	require.NoError(err)
	require.Equal(n, got[candidateC])
}

func TestConcurrentIncrementsAcrossStores(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := ipfs.NewMemory()
	p, err := storage.NewFilePointer(t.TempDir(), storage.VoteCountFile)
	require.NoError(err)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each writer has its own store, only the pointer is shared
			_, err := NewStore(mem, p, testConfig).Increment(ctx, candidateC)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	got, err := NewStore(mem, p, testConfig).Get(ctx)
	require.NoError(err)
	require.Equal(n, got[candidateC])
}

func TestTwoSessionsFromFive(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, mem, p := newTestStore(t)
	seed(t, mem, p, models.VoteTally{candidateC: 5})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := NewStore(mem, p, testConfig).Increment(ctx, candidateC)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	got, err := s.Get(ctx)
	require.NoError(err)
	require.Equal(models.VoteTally{candidateC: 7}, got)
}

func TestFetchFailureFailsIncrement(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _, p := newTestStore(t)
	const missing = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	require.NoError(p.CompareAndSwap(ctx, "", missing))

	_, err := s.Increment(ctx, candidateC)
	require.Equal(ipfs.ErrStoreUnavailable, errors.Cause(err))

	c, err := p.Load(ctx)
	require.NoError(err)
	require.Equal(missing, c)
}

type conflictPointer struct{}

func (conflictPointer) Load(context.Context) (string, error) { return "", nil }

func (conflictPointer) CompareAndSwap(context.Context, string, string) error {
	return storage.ErrPointerConflict
}

func TestRaceLossExhaustsRetries(t *testing.T) {
	s := NewStore(ipfs.NewMemory(), conflictPointer{}, Config{MaxRetries: 3})
	_, err := s.Increment(context.Background(), candidateC)
	require.Error(t, err)
	require.Equal(t, ipfs.ErrStoreUnavailable, errors.Cause(err))
	require.Contains(t, err.Error(), ErrTallyRaceLoss.Error())
}

func TestQueueFullAndClosed(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	q := NewQueue(s, 1)

	first := q.QueueIncrement(ctx, candidateC)
	res := <-q.QueueIncrement(ctx, candidateC)
	require.Equal(ErrQueueFull, res.Err)

	q.Stop()
	res = <-first
	require.Equal(ErrQueueClosed, res.Err)
	_, err := q.Increment(ctx, candidateC)
	require.Equal(ErrQueueClosed, err)
}

// gatedPointer holds Load until released
type gatedPointer struct {
	storage.Pointer
	once    sync.Once
	loading chan struct{}
	release chan struct{}
}

func (g *gatedPointer) Load(ctx context.Context) (string, error) {
	g.once.Do(func() { close(g.loading) })
	<-g.release
	return g.Pointer.Load(ctx)
}

func TestQueueCancelledRequest(t *testing.T) {
	require := require.New(t)
	s, _, _ := newTestStore(t)
	q := NewQueue(s, 4)
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Increment(ctx, candidateC)
	require.Equal(context.Canceled, err)
	got, err := s.Get(context.Background())
	require.NoError(err)
	require.Empty(got)
}

func TestQueueCancelAfterStartReportsStoredResult(t *testing.T) {
	require := require.New(t)
	mem := ipfs.NewMemory()
	fp, err := storage.NewFilePointer(t.TempDir(), storage.VoteCountFile)
	require.NoError(err)
	gp := &gatedPointer{Pointer: fp, loading: make(chan struct{}), release: make(chan struct{})}
	q := NewQueue(NewStore(mem, gp, testConfig), 4)
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		total int
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		n, err := q.Increment(ctx, candidateC)
		done <- outcome{n, err}
	}()
	<-gp.loading
	cancel()
	close(gp.release)

	res := <-done
	require.NoError(res.err)
	require.Equal(1, res.total)
	got, err := NewStore(mem, fp, testConfig).Get(context.Background())
	require.NoError(err)
	require.Equal(models.VoteTally{candidateC: 1}, got)
}

func TestDecode(t *testing.T) {
	require := require.New(t)
	got, err := Decode([]byte(`{
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed": 2,
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed": "3",
		"0x0000000000000000000000000000000000000001": 4.9,
		"0x0000000000000000000000000000000000000002": -3,
		"0x0000000000000000000000000000000000000003": "many",
		"0x0000000000000000000000000000000000000004": null,
		"0x0000000000000000000000000000000000000005": {"n": 1},
		"legacy": " 6 "
	}`))
	require.NoError(err)
	require.Equal(models.VoteTally{
		candidateC: 5,
		"0x0000000000000000000000000000000000000001": 4,
		"0x0000000000000000000000000000000000000002": 0,
		"legacy": 6,
	}, got)

	_, err = Decode([]byte(`[1,2]`))
	require.Error(err)
	_, err = Decode([]byte(`{`))
	require.Error(err)
}

func TestRebuildAndReconcile(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, mem, p := newTestStore(t)

	alice := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000B2")
	l, err := ledger.NewMemoryLedger(ledger.MemoryConfig{}, alice)
	require.NoError(err)
	_, err = l.RegisterVoter(ctx, models.VoterRecord{UserID: "1"})
	require.NoError(err)
	_, err = l.RegisterCandidate(ctx, models.CandidateBasicInfo{Name: "Alice"}, models.CandidateAdditionalInfo{}, "QmA")
	require.NoError(err)
	_, err = l.As(bob).RegisterVoter(ctx, models.VoterRecord{UserID: "2"})
	require.NoError(err)
	_, err = l.As(bob).Vote(ctx, alice)
	require.NoError(err)

	seed(t, mem, p, models.VoteTally{alice.Hex(): 3, "0x0000000000000000000000000000000000000009": 1})
	r, err := s.Reconcile(ctx, l, nil)
	require.NoError(err)
	require.False(r.IsValid)
	require.Equal(4, r.CachedTotal)
	require.Equal(uint64(1), r.LedgerTotal)
	require.Len(r.Mismatches, 2)

	counts, err := s.Rebuild(ctx, l, nil)
	require.NoError(err)
	require.Equal(models.VoteTally{alice.Hex(): 1}, counts)

	got, err := s.Get(ctx)
	require.NoError(err)
	require.Equal(counts, got)

	r, err = s.Reconcile(ctx, l, nil)
	require.NoError(err)
	require.True(r.IsValid)
	require.Empty(r.Mismatches)
}
