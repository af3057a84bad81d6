package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/pkg/errors"
)

// ShellConfig configures a Store backed by an IPFS node's HTTP RPC API
type ShellConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Shell is a Store backed by an IPFS node
type Shell struct {
	sh *shell.Shell
}

var _ Store = (*Shell)(nil)

// NewShell creates a Store talking to the node at cfg.Endpoint
func NewShell(cfg ShellConfig) *Shell {
	sh := shell.NewShell(cfg.Endpoint)
	if cfg.Timeout > 0 {
		sh.SetTimeout(cfg.Timeout)
	}
	return &Shell{sh: sh}
}

// PinJSON adds and pins the JSON encoding of v
func (s *Shell) PinJSON(ctx context.Context, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON for pinning")
	}
	return s.add(ctx, bytes.NewReader(body))
}

// PinFile adds and pins the content of r. The node does not keep file names or mime types.
func (s *Shell) PinFile(ctx context.Context, r io.Reader, _, _ string) (string, error) {
	return s.add(ctx, r)
}

func (s *Shell) add(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := s.sh.Add(r)
	if err != nil {
		return "", errors.Wrapf(ErrStoreUnavailable, "ipfs add failed: %v", err)
	}
	if err := s.sh.Pin(c); err != nil {
		return "", errors.Wrapf(ErrStoreUnavailable, "ipfs pin failed: %v", err)
	}
	return c, nil
}

// Fetch cats the content pinned under c
func (s *Shell) Fetch(ctx context.Context, c string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := s.sh.Cat(c)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, errors.Wrapf(ErrNotFound, "cid %s", c)
		}
		return nil, errors.Wrapf(ErrStoreUnavailable, "ipfs cat failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "failed to read %s: %v", c, err)
	}
	return data, nil
}
