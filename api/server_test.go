package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"chainvote-backend/directory"
	"chainvote-backend/ipfs"
	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/service"
	"chainvote-backend/session"
	"chainvote-backend/storage"
	"chainvote-backend/tally"
)

var (
	voter     = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	candidate = common.HexToAddress("0x00000000000000000000000000000000000000C3")
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *Client, *ipfs.Memory) {
	dataDir := t.TempDir()
	mem := ipfs.NewMemory()
	list, err := storage.NewCIDList(dataDir)
	require.NoError(t, err)
	p, err := storage.NewFilePointer(dataDir, storage.VoteCountFile)
	require.NoError(t, err)
	q := tally.NewQueue(tally.NewStore(mem, p, tally.DefaultConfig), 16)
	q.Start()
	t.Cleanup(q.Stop)
	l, err := ledger.NewMemoryLedger(ledger.MemoryConfig{}, voter)
	require.NoError(t, err)

	svc := service.NewVotingService(mem, directory.New(list, mem), q, l,
		service.WithSessions(session.NewStore(session.DefaultConfig, clock.NewMock(), nil)))
	ts := httptest.NewServer(NewServer(cfg, svc).Handler())
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL, 0), mem
}

func unlimited() Config {
	cfg := DefaultConfig
	cfg.RateLimit = 0
	return cfg
}

func statusCode(t *testing.T, err error) int {
	var se *StatusError
	require.True(t, errors.As(err, &se), "unexpected error %v", err)
	return se.Code
}

func TestCandidateCIDs(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ts, c, mem := newTestServer(t, unlimited())

	entries, err := c.CandidateCIDs(ctx)
	require.NoError(err)
	require.Empty(entries)

	cid, err := mem.PinJSON(ctx, models.CandidateProfile{BasicInfo: models.CandidateBasicInfo{Name: "Carol"}})
	require.NoError(err)
	require.NoError(c.AddCandidateCID(ctx, cid, candidate.Hex()))
	entries, err = c.CandidateCIDs(ctx)
	require.NoError(err)
	require.Equal([]models.DirectoryEntry{{CID: cid, Address: candidate.Hex()}}, entries)

	err = c.AddCandidateCID(ctx, "", candidate.Hex())
	require.Equal(http.StatusBadRequest, statusCode(t, err))

	listing, err := c.ResolvedCandidates(ctx)
	require.NoError(err)
	require.Len(listing.Candidates, 1)
	require.Equal("Carol", listing.Candidates[0].BasicInfo.Name)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/candidate-cids", nil)
	require.NoError(err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(err)
	resp.Body.Close()
	require.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal("GET, POST", resp.Header.Get("Allow"))
	require.NotEmpty(resp.Header.Get(RequestIDHeader))
}

func TestVoteCount(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	_, c, _ := newTestServer(t, unlimited())

	counts, err := c.VoteCounts(ctx)
	require.NoError(err)
	require.Zero(counts.TotalVotes)

	n, err := c.UpdateVoteCount(ctx, candidate.Hex(), voter.Hex())
	require.NoError(err)
	require.Equal(1, n)
	n, err = c.Tally(voter.Hex()).Increment(ctx, strings.ToLower(candidate.Hex()))
	require.NoError(err)
	require.Equal(2, n)

	counts, err = c.VoteCounts(ctx)
	require.NoError(err)
	require.Equal(2, counts.TotalVotes)
	require.Equal(models.VoteTally{candidate.Hex(): 2}, counts.VoteCounts)

	_, err = c.UpdateVoteCount(ctx, "not-an-address", voter.Hex())
	require.Equal(http.StatusBadRequest, statusCode(t, err))

	stats, err := c.Stats(ctx)
	require.NoError(err)
	require.Equal(2, stats.Counting.Count)
	require.Equal(1, stats.Counting.Failures)

	stats, err = c.ResetStats(ctx)
	require.NoError(err)
	require.Zero(stats.Counting.Count)
	require.Zero(stats.Counting.Failures)
	stats, err = c.Stats(ctx)
	require.NoError(err)
	require.Zero(stats.Counting.Count)
}

func TestUploadToIPFS(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ts, c, mem := newTestServer(t, unlimited())

	hash, err := c.UploadFile(ctx, strings.NewReader("picture"), "me.png")
	require.NoError(err)
	require.True(ipfs.ValidCID(hash))
	raw, err := mem.Fetch(ctx, hash)
	require.NoError(err)
	require.Equal("picture", string(raw))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(mw.WriteField("other", "x"))
	require.NoError(mw.Close())
	resp, err := http.Post(ts.URL+"/upload-to-ipfs", mw.FormDataContentType(), &body)
	require.NoError(err)
	resp.Body.Close()
	require.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestVoteSessionEndpoint(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	_, c, _ := newTestServer(t, unlimited())

	step := models.VoteStep{CandidateAddress: candidate.Hex(), VoterAddress: voter.Hex(), Signature: "0x01", Step: 2}
	_, err := c.ReportVoteStep(ctx, step)
	require.Equal(http.StatusBadRequest, statusCode(t, err))

	step.Step = 1
	res, err := c.ReportVoteStep(ctx, step)
	require.NoError(err)
	require.Equal("First confirmation received", res.Message)

	step.Step, step.Signature = 2, "0x02"
	res, err = c.ReportVoteStep(ctx, step)
	require.NoError(err)
	require.Equal(2, res.Step)
	require.NotEmpty(res.Commitment)

	step.Step = 3
	_, err = c.ReportVoteStep(ctx, step)
	require.Equal(http.StatusBadRequest, statusCode(t, err))
}

func TestRateLimitedWrites(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cfg := DefaultConfig
	cfg.RateLimit, cfg.RateBurst = 0.001, 1
	_, c, _ := newTestServer(t, cfg)

	_, err := c.UpdateVoteCount(ctx, candidate.Hex(), voter.Hex())
	require.NoError(err)
	_, err = c.UpdateVoteCount(ctx, candidate.Hex(), voter.Hex())
	require.Equal(http.StatusTooManyRequests, statusCode(t, err))

	// reads are not limited
	_, err = c.VoteCounts(ctx)
	require.NoError(err)
	_, err = c.VoteCounts(ctx)
	require.NoError(err)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	require := require.New(t)
	cfg := DefaultConfig
	cfg.RateLimit, cfg.RateBurst = 0.001, 1
	ts, _, _ := newTestServer(t, cfg)

	post := func(forwarded string) int {
		body := `{"candidateAddress":"` + candidate.Hex() + `","voterAddress":"` + voter.Hex() + `"}`
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/update-vote-count", strings.NewReader(body))
		require.NoError(err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(err)
		resp.Body.Close()
		return resp.StatusCode
	}
	require.Equal(http.StatusOK, post("10.0.0.1"))
	for _, fwd := range []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"} {
		require.Equal(http.StatusTooManyRequests, post(fwd), fwd)
	}
}

func TestClientIP(t *testing.T) {
	require := require.New(t)
	cfg := unlimited()
	cfg.TrustedProxies = []string{"10.1.0.0/16", "192.168.1.1"}
	s := NewServer(cfg, nil)

	req := func(remote, forwarded string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/vote", nil)
		r.RemoteAddr = remote
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		return r
	}
	require.Equal("203.0.113.7", s.clientIP(req("203.0.113.7:4000", "1.2.3.4")))
	require.Equal("1.2.3.4", s.clientIP(req("10.1.2.3:4000", "1.2.3.4")))
	require.Equal("5.6.7.8", s.clientIP(req("192.168.1.1:4000", "1.2.3.4, 5.6.7.8, 10.1.9.9")))
	require.Equal("10.1.2.3", s.clientIP(req("10.1.2.3:4000", "")))
	require.Equal("10.1.0.1", s.clientIP(req("10.1.2.3:4000", "10.1.0.1")))

	_, err := ParseTrustedProxies([]string{"not-an-ip"})
	require.Error(err)
}

func TestHealthAndMetrics(t *testing.T) {
	require := require.New(t)
	ts, _, _ := newTestServer(t, unlimited())

	for _, path := range []string{"/healthz", "/api/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusOK, resp.StatusCode, path)
	}
}

func TestStatusOf(t *testing.T) {
	require := require.New(t)
	require.Equal(http.StatusBadRequest, statusOf(errors.Wrap(session.ErrInvalidSession, "x")))
	require.Equal(http.StatusBadRequest, statusOf(errors.Wrap(service.ErrNotVoted, "x")))
	require.Equal(http.StatusTooManyRequests, statusOf(tally.ErrQueueFull))
	require.Equal(http.StatusInternalServerError, statusOf(ipfs.ErrStoreUnavailable))
}
