package tally

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
)

// Mismatch is a candidate whose cached count differs from the ledger
type Mismatch struct {
	Candidate string `json:"candidate"`
	Cached    int    `json:"cached"`
	Ledger    uint64 `json:"ledger"`
}

// Reconciliation compares the cached tally with the ledger
type Reconciliation struct {
	CachedTotal int        `json:"cachedTotal"`
	LedgerTotal uint64     `json:"ledgerTotal"`
	Mismatches  []Mismatch `json:"mismatches"`
	IsValid     bool       `json:"isValid"`
}

func ledgerCounts(ctx context.Context, g ledger.Gateway, candidates []common.Address) (models.VoteTally, error) {
	if candidates == nil {
		var err error
		if candidates, err = ledger.Candidates(ctx, g); err != nil {
			return nil, err
		}
	}
	counts := make(models.VoteTally, len(candidates))
	for _, c := range candidates {
		n, err := g.GetVoteCount(ctx, c)
		if err != nil {
			return nil, err
		}
		counts[c.Hex()] = int(n)
	}
	return counts, nil
}

// Rebuild replaces the cached tally with the ledger's counts. A nil candidate
// list enumerates every registered candidate.
func (s *Store) Rebuild(ctx context.Context, g ledger.Gateway, candidates []common.Address) (models.VoteTally, error) {
	counts, err := ledgerCounts(ctx, g, candidates)
	if err != nil {
		return nil, err
	}
	err = s.update(ctx, func(t models.VoteTally) error {
		for k := range t {
			delete(t, k)
		}
		for k, v := range counts {
			t[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Logger("tally").Info("tally rebuilt from ledger", zap.Int("candidates", len(counts)), zap.Int("total", counts.Total()))
	return counts, nil
}

// Reconcile reports where the cached tally disagrees with the ledger. The tally is
// valid when every listed candidate matches and the cached total does not exceed
// the ledger's total votes cast.
func (s *Store) Reconcile(ctx context.Context, g ledger.Gateway, candidates []common.Address) (*Reconciliation, error) {
	counts, err := ledgerCounts(ctx, g, candidates)
	if err != nil {
		return nil, err
	}
	total, err := g.GetTotalVotesCast(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{CachedTotal: cached.Total(), LedgerTotal: total, Mismatches: []Mismatch{}}
	for _, c := range counts.Candidates() {
		if cached[c] != counts[c] {
			r.Mismatches = append(r.Mismatches, Mismatch{Candidate: c, Cached: cached[c], Ledger: uint64(counts[c])})
		}
	}
	for _, c := range cached.Candidates() {
		if _, ok := counts[c]; !ok && candidates == nil {
			r.Mismatches = append(r.Mismatches, Mismatch{Candidate: c, Cached: cached[c]})
		}
	}
	r.IsValid = len(r.Mismatches) == 0 && uint64(r.CachedTotal) <= total
	return r, nil
}
