package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"chainvote-backend/directory"
	"chainvote-backend/models"
	"chainvote-backend/service"
)

var _ directory.EntryList = (*Client)(nil)

// StatusError is a non-2xx reply from the server
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client calls the voting HTTP endpoints
type Client struct {
	r *resty.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		r: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var fail errorResponse
	req := c.r.R().SetContext(ctx).SetError(&fail)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", path)
	}
	if resp.IsError() {
		msg := fail.Error
		if msg == "" {
			msg = resp.String()
		}
		return &StatusError{Code: resp.StatusCode(), Message: msg}
	}
	return nil
}

// CandidateCIDs lists the raw directory entries
func (c *Client) CandidateCIDs(ctx context.Context) ([]models.DirectoryEntry, error) {
	var out candidateCIDsResponse
	if err := c.do(ctx, resty.MethodGet, "/candidate-cids", nil, &out); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

// AddCandidateCID appends a directory entry
func (c *Client) AddCandidateCID(ctx context.Context, cid, address string) error {
	return c.do(ctx, resty.MethodPost, "/candidate-cids", models.DirectoryEntry{CID: cid, Address: address}, nil)
}

// Entries lets the client back a directory.Directory
func (c *Client) Entries(ctx context.Context) ([]models.DirectoryEntry, error) {
	return c.CandidateCIDs(ctx)
}

// Append lets the client back a directory.Directory
func (c *Client) Append(ctx context.Context, entry models.DirectoryEntry) error {
	return c.AddCandidateCID(ctx, entry.CID, entry.Address)
}

// VoteCounts reads the cached tally
func (c *Client) VoteCounts(ctx context.Context) (*models.VoteCounts, error) {
	out := &models.VoteCounts{}
	if err := c.do(ctx, resty.MethodGet, "/vote-count", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateVoteCount adds a vote for candidate on behalf of voter
func (c *Client) UpdateVoteCount(ctx context.Context, candidate, voter string) (int, error) {
	var out messageResponse
	err := c.do(ctx, resty.MethodPost, "/update-vote-count", updateVoteCountRequest{
		CandidateAddress: candidate,
		VoterAddress:     voter,
	}, &out)
	return out.Count, err
}

// UploadFile pins a file through the server
func (c *Client) UploadFile(ctx context.Context, r io.Reader, filename string) (string, error) {
	var (
		out  uploadResponse
		fail errorResponse
	)
	resp, err := c.r.R().
		SetContext(ctx).
		SetFileReader("file", filename, r).
		SetResult(&out).
		SetError(&fail).
		Post("/upload-to-ipfs")
	if err != nil {
		return "", errors.Wrap(err, "failed to upload file")
	}
	if resp.IsError() {
		return "", &StatusError{Code: resp.StatusCode(), Message: fail.Error}
	}
	return out.IpfsHash, nil
}

// ReportVoteStep reports a signed confirmation step to the session endpoint
func (c *Client) ReportVoteStep(ctx context.Context, step models.VoteStep) (*models.VoteStepResult, error) {
	out := &models.VoteStepResult{}
	if err := c.do(ctx, resty.MethodPost, "/vote", step, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCaptcha checks a reCAPTCHA token through the server
func (c *Client) VerifyCaptcha(ctx context.Context, token string) error {
	var out captchaResponse
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(captchaRequest{Token: token}).
		SetResult(&out).
		SetError(&out).
		Post("/verify-captcha")
	if err != nil {
		return errors.Wrap(err, "failed to verify captcha")
	}
	if resp.IsError() || !out.Success {
		return errors.Wrap(service.ErrCaptcha, out.Error)
	}
	return nil
}

// Candidates reads registered candidates from the ledger through the server
func (c *Client) Candidates(ctx context.Context) ([]*models.CandidateRecord, error) {
	var out []*models.CandidateRecord
	if err := c.do(ctx, resty.MethodGet, "/candidates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolvedCandidates reads the deduplicated directory listing
func (c *Client) ResolvedCandidates(ctx context.Context) (*directory.Listing, error) {
	out := &directory.Listing{}
	if err := c.do(ctx, resty.MethodGet, "/candidates/resolved", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats reads the operation metrics summary
func (c *Client) Stats(ctx context.Context) (*service.MetricsResponse, error) {
	out := &service.MetricsResponse{}
	if err := c.do(ctx, resty.MethodGet, "/stats", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResetStats clears the operation stats and returns the emptied summary
func (c *Client) ResetStats(ctx context.Context) (*service.MetricsResponse, error) {
	out := &service.MetricsResponse{}
	if err := c.do(ctx, resty.MethodDelete, "/stats", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tally binds the client to voter so it can serve as a tally updater
func (c *Client) Tally(voter string) *VoterTally {
	return &VoterTally{client: c, voter: voter}
}

// VoterTally increments the server tally on behalf of one voter
type VoterTally struct {
	client *Client
	voter  string
}

// Increment adds a vote for candidate
func (t *VoterTally) Increment(ctx context.Context, candidate string) (int, error) {
	return t.client.UpdateVoteCount(ctx, candidate, t.voter)
}
