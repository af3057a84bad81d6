package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/pkg/log"
)

// PinataConfig configures the Pinata pinning service client
type PinataConfig struct {
	APIURL     string        `yaml:"apiURL"`
	GatewayURL string        `yaml:"gatewayURL"`
	APIKey     string        `yaml:"apiKey"`
	SecretKey  string        `yaml:"secretKey"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultPinataConfig points at the public Pinata endpoints
var DefaultPinataConfig = PinataConfig{
	APIURL:     "https://api.pinata.cloud",
	GatewayURL: "https://gateway.pinata.cloud",
	Timeout:    30 * time.Second,
}

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Pinata is a Store backed by the Pinata pinning API and gateway
type Pinata struct {
	cfg     PinataConfig
	api     *resty.Client
	gateway *resty.Client
}

var _ Store = (*Pinata)(nil)

// NewPinata creates a Pinata client. Missing credentials surface on the first pin call.
func NewPinata(cfg PinataConfig) *Pinata {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPinataConfig.Timeout
	}
	return &Pinata{
		cfg: cfg,
		api: resty.New().
			SetBaseURL(cfg.APIURL).
			SetTimeout(cfg.Timeout).
			SetHeader("pinata_api_key", cfg.APIKey).
			SetHeader("pinata_secret_api_key", cfg.SecretKey),
		gateway: resty.New().
			SetBaseURL(cfg.GatewayURL).
			SetTimeout(cfg.Timeout),
	}
}

func (p *Pinata) credentials() error {
	if p.cfg.APIKey == "" || p.cfg.SecretKey == "" {
		return errors.Wrap(ErrStoreUnavailable, "pinata API keys are not set")
	}
	return nil
}

// PinJSON pins a JSON document through pinJSONToIPFS
func (p *Pinata) PinJSON(ctx context.Context, v interface{}) (string, error) {
	if err := p.credentials(); err != nil {
		return "", err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON for pinning")
	}
	var out pinataResponse
	resp, err := p.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/pinning/pinJSONToIPFS")
	if err := checkResponse(resp, err, "pinJSONToIPFS"); err != nil {
		return "", err
	}
	if out.IpfsHash == "" {
		return "", errors.Wrap(ErrStoreUnavailable, "pinJSONToIPFS returned no hash")
	}
	log.Logger("ipfs").Debug("pinned JSON", zap.String("cid", out.IpfsHash), zap.Int64("size", out.PinSize))
	return out.IpfsHash, nil
}

// PinFile pins a file through pinFileToIPFS as multipart field "file"
func (p *Pinata) PinFile(ctx context.Context, r io.Reader, filename, mimeType string) (string, error) {
	if err := p.credentials(); err != nil {
		return "", err
	}
	if filename == "" {
		filename = "unnamed_file"
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var out pinataResponse
	resp, err := p.api.R().
		SetContext(ctx).
		SetMultipartField("file", filename, mimeType, r).
		SetResult(&out).
		Post("/pinning/pinFileToIPFS")
	if err := checkResponse(resp, err, "pinFileToIPFS"); err != nil {
		return "", err
	}
	if out.IpfsHash == "" {
		return "", errors.Wrap(ErrStoreUnavailable, "pinFileToIPFS returned no hash")
	}
	log.Logger("ipfs").Debug("pinned file", zap.String("cid", out.IpfsHash), zap.String("filename", filename))
	return out.IpfsHash, nil
}

// Fetch reads pinned content from the gateway
func (p *Pinata) Fetch(ctx context.Context, c string) ([]byte, error) {
	resp, err := p.gateway.R().
		SetContext(ctx).
		SetPathParam("cid", c).
		Get("/ipfs/{cid}")
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "failed to fetch %s: %v", c, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNotFound, "cid %s", c)
	}
	if resp.IsError() {
		return nil, errors.Wrapf(ErrStoreUnavailable, "gateway returned %d for %s", resp.StatusCode(), c)
	}
	return resp.Body(), nil
}

func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "%s failed: %v", op, err)
	}
	if resp.IsError() {
		return errors.Wrapf(ErrStoreUnavailable, "%s returned %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}
