package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// DefaultCaptchaURL is Google's reCAPTCHA verification endpoint
const DefaultCaptchaURL = "https://www.google.com/recaptcha/api/siteverify"

// CaptchaConfig configures reCAPTCHA verification
type CaptchaConfig struct {
	VerifyURL string        `yaml:"verifyURL"`
	SecretKey string        `yaml:"secretKey"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultCaptchaConfig is the default captcha configuration
var DefaultCaptchaConfig = CaptchaConfig{
	VerifyURL: DefaultCaptchaURL,
	Timeout:   10 * time.Second,
}

// CaptchaVerifier checks reCAPTCHA tokens
type CaptchaVerifier struct {
	client *resty.Client
	cfg    CaptchaConfig
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewCaptchaVerifier creates a verifier for cfg
func NewCaptchaVerifier(cfg CaptchaConfig) *CaptchaVerifier {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultCaptchaURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCaptchaConfig.Timeout
	}
	return &CaptchaVerifier{
		client: resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
	}
}

// Verify returns ErrCaptcha when the token is rejected
func (c *CaptchaVerifier) Verify(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.Wrap(ErrCaptcha, "missing token")
	}
	var out siteVerifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"secret": c.cfg.SecretKey, "response": token}).
		SetResult(&out).
		Post(c.cfg.VerifyURL)
	if err != nil {
		return errors.Wrap(err, "failed to reach captcha verification")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("captcha verification returned status %d", resp.StatusCode())
	}
	if !out.Success {
		return errors.Wrapf(ErrCaptcha, "rejected: %s", strings.Join(out.ErrorCodes, ","))
	}
	return nil
}
