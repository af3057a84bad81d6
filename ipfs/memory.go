package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

// Memory is an in-process Store. CIDs are CIDv0 over the SHA-256 of the content.
type Memory struct {
	mu      sync.RWMutex
	content map[string][]byte
	pins    int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{content: make(map[string][]byte)}
}

// PinJSON pins the JSON encoding of v
func (m *Memory) PinJSON(ctx context.Context, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON for pinning")
	}
	return m.Put(ctx, body)
}

// PinFile pins the content of r
func (m *Memory) PinFile(ctx context.Context, r io.Reader, _, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read file")
	}
	return m.Put(ctx, data)
}

// Put pins raw bytes
func (m *Memory) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash content")
	}
	c := cid.NewCidV0(mh).String()
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.content[c] = stored
	m.pins++
	m.mu.Unlock()
	return c, nil
}

// Fetch returns a copy of the content pinned under c
func (m *Memory) Fetch(ctx context.Context, c string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.content[c]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "cid %s", c)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Pins returns how many pin operations succeeded
func (m *Memory) Pins() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pins
}
