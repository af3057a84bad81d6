package ipfs

import (
	"context"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
)

// PublicGateway is the public gateway used to build shareable links to pinned files
const PublicGateway = "https://ipfs.io/ipfs/"

var (
	// ErrStoreUnavailable indicates the content store is misconfigured, unreachable or failed the request
	ErrStoreUnavailable = errors.New("content store unavailable")
	// ErrNotFound indicates that no content is pinned under the requested CID
	ErrNotFound = errors.New("content not found")
)

// Store pins and fetches content-addressed blobs
type Store interface {
	// PinJSON marshals v once and pins exactly those bytes
	PinJSON(ctx context.Context, v interface{}) (string, error)
	// PinFile pins the content of r under the given file name and mime type
	PinFile(ctx context.Context, r io.Reader, filename, mimeType string) (string, error)
	// Fetch returns the raw content pinned under cid
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// ValidCID reports whether s parses as a CID
func ValidCID(s string) bool {
	_, err := cid.Decode(s)
	return err == nil
}

// PublicURL returns the public gateway link for a CID
func PublicURL(c string) string {
	return PublicGateway + c
}
