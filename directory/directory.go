package directory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chainvote-backend/ipfs"
	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/storage"
)

const defaultConcurrency = 8

// ErrResolution indicates a directory entry could not be resolved into a candidate profile
var ErrResolution = errors.New("failed to resolve candidate entry")

// EntryList is the append-only backing list of directory entries
type EntryList interface {
	Entries(ctx context.Context) ([]models.DirectoryEntry, error)
	Append(ctx context.Context, entry models.DirectoryEntry) error
}

var _ EntryList = (*storage.CIDList)(nil)

// Verifier confirms that an address is a registered candidate on the ledger
type Verifier interface {
	IsRegisteredCandidate(ctx context.Context, candidate common.Address) (bool, error)
}

// Failure is an entry skipped by a listing
type Failure struct {
	Entry models.DirectoryEntry `json:"entry"`
	Error string                `json:"error"`
}

// Listing is the resolved, deduplicated candidate directory
type Listing struct {
	Candidates []*models.CandidateRecord `json:"candidates"`
	Failed     []Failure                 `json:"failed,omitempty"`
}

// Directory resolves the candidate CID list against the content store
type Directory struct {
	list        EntryList
	store       ipfs.Store
	verifier    Verifier
	concurrency int
}

// Option configures a Directory
type Option func(*Directory)

// WithVerifier drops entries the verifier does not recognise
func WithVerifier(v Verifier) Option {
	return func(d *Directory) { d.verifier = v }
}

// WithConcurrency bounds the number of concurrent fetches
func WithConcurrency(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// New creates a Directory
func New(list EntryList, store ipfs.Store, opts ...Option) *Directory {
	d := &Directory{list: list, store: store, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List returns the raw entries in insertion order
func (d *Directory) List(ctx context.Context) ([]models.DirectoryEntry, error) {
	return d.list.Entries(ctx)
}

// Append adds an entry without deduplication
func (d *Directory) Append(ctx context.Context, cid, address string) error {
	cid, address = strings.TrimSpace(cid), strings.TrimSpace(address)
	if cid == "" || address == "" {
		return errors.Wrap(models.ErrInvalidRecord, "cid and address are required")
	}
	return d.list.Append(ctx, models.DirectoryEntry{CID: cid, Address: address})
}

// Resolve fetches and parses the profile an entry points at
func (d *Directory) Resolve(ctx context.Context, entry models.DirectoryEntry) (*models.CandidateRecord, error) {
	raw, err := d.store.Fetch(ctx, entry.CID)
	if err != nil {
		return nil, errors.Wrapf(ErrResolution, "fetch %s: %v", entry.CID, err)
	}
	var profile models.CandidateProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, errors.Wrapf(ErrResolution, "parse %s: %v", entry.CID, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrapf(ErrResolution, "%s: %v", entry.CID, err)
	}
	address := entry.Address
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}
	return &models.CandidateRecord{
		Address:        address,
		BasicInfo:      profile.BasicInfo,
		AdditionalInfo: profile.AdditionalInfo,
		ContentHash:    entry.CID,
	}, nil
}

// Candidates resolves every entry, skipping the ones that fail, and keeps the
// most recent entry per address
func (d *Directory) Candidates(ctx context.Context) (*Listing, error) {
	entries, err := d.List(ctx)
	if err != nil {
		return nil, err
	}

	resolved := make([]*models.CandidateRecord, len(entries))
	failures := make([]*Failure, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			rec, err := d.Resolve(gctx, entry)
			if err == nil && d.verifier != nil {
				err = d.verify(gctx, rec)
			}
			// each goroutine owns slot i
			if err != nil {
				failures[i] = &Failure{Entry: entry, Error: err.Error()}
				return nil
			}
			resolved[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listing := &Listing{Candidates: []*models.CandidateRecord{}}
	index := make(map[string]int)
	for i, rec := range resolved {
		if rec == nil {
			if failures[i] != nil {
				log.Logger("directory").Warn("skipping candidate entry",
					zap.String("cid", failures[i].Entry.CID),
					zap.String("error", failures[i].Error))
				listing.Failed = append(listing.Failed, *failures[i])
			}
			continue
		}
		key := strings.ToLower(rec.Address)
		if at, ok := index[key]; ok {
			listing.Candidates[at] = rec
			continue
		}
		index[key] = len(listing.Candidates)
		listing.Candidates = append(listing.Candidates, rec)
	}
	return listing, nil
}

func (d *Directory) verify(ctx context.Context, rec *models.CandidateRecord) error {
	if !common.IsHexAddress(rec.Address) {
		return errors.Wrapf(ErrResolution, "invalid address %q", rec.Address)
	}
	ok, err := d.verifier.IsRegisteredCandidate(ctx, common.HexToAddress(rec.Address))
	if err != nil {
		log.Logger("directory").Warn("failed to verify candidate, keeping entry",
			zap.String("address", rec.Address), zap.Error(err))
		return nil
	}
	if !ok {
		return errors.Wrapf(ErrResolution, "%s is not a registered candidate", rec.Address)
	}
	return nil
}
