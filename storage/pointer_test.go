package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"chainvote-backend/models"
)

func testPointer(t *testing.T, p Pointer) {
	require := require.New(t)
	ctx := context.Background()

	v, err := p.Load(ctx)
	require.NoError(err)
	require.Equal("", v)

	require.NoError(p.CompareAndSwap(ctx, "", "QmFirst"))
	v, err = p.Load(ctx)
	require.NoError(err)
	require.Equal("QmFirst", v)

	err = p.CompareAndSwap(ctx, "", "QmStale")
	require.Equal(ErrPointerConflict, errors.Cause(err))

	require.NoError(p.CompareAndSwap(ctx, "QmFirst", "QmSecond"))
	v, err = p.Load(ctx)
	require.NoError(err)
	require.Equal("QmSecond", v)

	// exactly one of the racing swaps from the same base wins
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.CompareAndSwap(ctx, "QmSecond", "QmRacer")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if errors.Cause(err) == ErrPointerConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()
	require.Equal(1, winners)
	require.Equal(7, conflicts)
}

func TestFilePointer(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFilePointer(dir, VoteCountFile)
	require.NoError(t, err)
	testPointer(t, p)

	data, err := os.ReadFile(filepath.Join(dir, VoteCountFile))
	require.NoError(t, err)
	require.JSONEq(t, `{"cid":"QmRacer"}`, string(data))
}

func TestFilePointerCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VoteCountFile), []byte("{"), 0644))
	p, err := NewFilePointer(dir, VoteCountFile)
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	require.Equal(t, ErrIO, errors.Cause(err))
}

func TestBoltPointer(t *testing.T) {
	p, err := OpenBoltPointer(filepath.Join(t.TempDir(), "pointer.db"), "vote-count")
	require.NoError(t, err)
	defer p.Close()
	testPointer(t, p)
}

func TestRedisPointer(t *testing.T) {
	s := miniredis.RunT(t)
	p, err := NewRedisPointer(context.Background(), s.Addr(), "", 0, "vote-count-cid")
	require.NoError(t, err)
	defer p.Close()
	testPointer(t, p)

	v, err := s.Get("vote-count-cid")
	require.NoError(t, err)
	require.Equal(t, "QmRacer", v)
}

func TestCIDList(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	l, err := NewCIDList(dir)
	require.NoError(err)

	entries, err := l.Entries(ctx)
	require.NoError(err)
	require.Empty(entries)

	a := models.DirectoryEntry{CID: "QmA", Address: "0x01"}
	b := models.DirectoryEntry{CID: "QmB", Address: "0x02"}
	require.NoError(l.Append(ctx, a))
	require.NoError(l.Append(ctx, b))
	require.NoError(l.Append(ctx, a))

	entries, err = l.Entries(ctx)
	require.NoError(err)
	require.Equal([]models.DirectoryEntry{a, b, a}, entries)

	data, err := os.ReadFile(filepath.Join(dir, CandidateFile))
	require.NoError(err)
	require.JSONEq(`{"candidates":[{"cid":"QmA","address":"0x01"},{"cid":"QmB","address":"0x02"},{"cid":"QmA","address":"0x01"}]}`, string(data))
}
