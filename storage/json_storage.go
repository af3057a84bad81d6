package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"chainvote-backend/models"
)

const (
	// VoteCountFile holds the pointer to the latest pinned tally
	VoteCountFile = "vote-count-cid.json"
	// CandidateFile holds the candidate directory entries
	CandidateFile = "candidateCIDs.json"
)

type pointerDoc struct {
	CID string `json:"cid"`
}

type candidateDoc struct {
	Candidates []models.DirectoryEntry `json:"candidates"`
}

// FilePointer is a Pointer persisted as {"cid": "..."} in a JSON file.
// Compare-and-swap is only atomic within one process.
type FilePointer struct {
	path string
	mu   sync.Mutex
}

var _ Pointer = (*FilePointer)(nil)

// NewFilePointer creates a pointer stored at dataDir/name
func NewFilePointer(dataDir, name string) (*FilePointer, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrapf(ErrIO, "failed to create directory: %v", err)
	}
	return &FilePointer{path: filepath.Join(dataDir, name)}, nil
}

// Load returns the stored CID
func (p *FilePointer) Load(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *FilePointer) load() (string, error) {
	var doc pointerDoc
	found, err := ReadJSON(p.path, &doc)
	if err != nil || !found {
		return "", err
	}
	return doc.CID, nil
}

// CompareAndSwap stores next if the file still holds expected
func (p *FilePointer) CompareAndSwap(_ context.Context, expected, next string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.load()
	if err != nil {
		return err
	}
	if current != expected {
		return errors.Wrapf(ErrPointerConflict, "expected %q, found %q", expected, current)
	}
	return WriteJSON(p.path, pointerDoc{CID: next})
}

// CIDList is the append-only list of candidate directory entries
type CIDList struct {
	path string
	mu   sync.RWMutex
}

// NewCIDList creates a list stored at dataDir/candidateCIDs.json
func NewCIDList(dataDir string) (*CIDList, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrapf(ErrIO, "failed to create directory: %v", err)
	}
	return &CIDList{path: filepath.Join(dataDir, CandidateFile)}, nil
}

// Entries returns the stored entries in insertion order
func (l *CIDList) Entries(_ context.Context) ([]models.DirectoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries()
}

func (l *CIDList) entries() ([]models.DirectoryEntry, error) {
	var doc candidateDoc
	if _, err := ReadJSON(l.path, &doc); err != nil {
		return nil, err
	}
	if doc.Candidates == nil {
		return []models.DirectoryEntry{}, nil
	}
	return doc.Candidates, nil
}

// Append adds an entry at the end of the list
func (l *CIDList) Append(_ context.Context, entry models.DirectoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.entries()
	if err != nil {
		return err
	}
	return WriteJSON(l.path, candidateDoc{Candidates: append(entries, entry)})
}

// ReadJSON decodes the file at path into v, reporting false when it does not exist
func ReadJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(ErrIO, "failed to read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(ErrIO, "failed to unmarshal %s: %v", path, err)
	}
	return true, nil
}

// WriteJSON writes to a temporary file first and renames it over path
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", path)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrapf(ErrIO, "failed to write %s: %v", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrapf(ErrIO, "failed to save %s: %v", path, err)
	}
	return nil
}
