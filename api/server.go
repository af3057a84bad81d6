package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
	"chainvote-backend/service"
	"chainvote-backend/session"
	"chainvote-backend/tally"
)

// RequestIDHeader carries the per-request id
const RequestIDHeader = "X-Request-ID"

type (
	// Config is the HTTP server config
	Config struct {
		Host              string        `yaml:"host"`
		Port              int           `yaml:"port"`
		MaxConcurrent     int64         `yaml:"maxConcurrent"`
		AcquireTimeout    time.Duration `yaml:"acquireTimeout"`
		RateLimit         float64       `yaml:"rateLimit"`
		RateBurst         int           `yaml:"rateBurst"`
		RateLimitClients  int           `yaml:"rateLimitClients"`
		MaxUploadBytes    int64         `yaml:"maxUploadBytes"`
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honored
		TrustedProxies []string `yaml:"trustedProxies"`
	}

	// Server serves the voting HTTP endpoints
	Server struct {
		cfg     Config
		svc     *service.VotingService
		sem     *semaphore.Weighted
		limiter *rateLimiter
		proxies []*net.IPNet
		mux     *http.ServeMux
		svr     *http.Server
	}

	rateLimiter struct {
		limiters *lru.Cache[string, *rate.Limiter]
		r        rate.Limit
		b        int
	}

	errorResponse struct {
		Error string `json:"error"`
	}

	messageResponse struct {
		Message string `json:"message"`
		Count   int    `json:"count,omitempty"`
	}

	candidateCIDsResponse struct {
		Candidates []models.DirectoryEntry `json:"candidates"`
	}

	updateVoteCountRequest struct {
		CandidateAddress string `json:"candidateAddress"`
		VoterAddress     string `json:"voterAddress"`
	}

	uploadResponse struct {
		IpfsHash string `json:"ipfsHash"`
	}

	captchaRequest struct {
		Token string `json:"token"`
	}

	captchaResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
)

// DefaultConfig is the default server config
var DefaultConfig = Config{
	Port:              3000,
	MaxConcurrent:     64,
	AcquireTimeout:    10 * time.Second,
	RateLimit:         5,
	RateBurst:         10,
	RateLimitClients:  4096,
	MaxUploadBytes:    32 << 20,
	ReadHeaderTimeout: 10 * time.Second,
}

// ParseTrustedProxies parses IPs and CIDRs into networks
func ParseTrustedProxies(list []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(list))
	for _, p := range list {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, errors.Errorf("invalid trusted proxy %q", p)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trusted proxy %q", p)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func newRateLimiter(size int, r rate.Limit, b int) *rateLimiter {
	if size <= 0 {
		size = DefaultConfig.RateLimitClients
	}
	cache, _ := lru.New[string, *rate.Limiter](size)
	return &rateLimiter{limiters: cache, r: r, b: b}
}

func (rl *rateLimiter) allow(key string) bool {
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.r, rl.b)
		if prev, found, _ := rl.limiters.PeekOrAdd(key, l); found {
			l = prev
		}
	}
	return l.Allow()
}

// NewServer creates the HTTP server over svc
func NewServer(cfg Config, svc *service.VotingService) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig.AcquireTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig.MaxUploadBytes
	}
	s := &Server{
		cfg: cfg,
		svc: svc,
		sem: semaphore.NewWeighted(cfg.MaxConcurrent),
		mux: http.NewServeMux(),
	}
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.L().Warn("ignoring trusted proxies", zap.Error(err))
	}
	s.proxies = proxies
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitClients, rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("/candidate-cids", s.handleCandidateCIDs, http.MethodGet, http.MethodPost)
	s.handle("/vote-count", s.handleVoteCount, http.MethodGet)
	s.handle("/update-vote-count", s.handleUpdateVoteCount, http.MethodPost)
	s.handle("/upload-to-ipfs", s.handleUpload, http.MethodPost)
	s.handle("/vote", s.handleVote, http.MethodPost)
	s.handle("/verify-captcha", s.handleVerifyCaptcha, http.MethodPost)
	s.handle("/candidates", s.handleCandidates, http.MethodGet)
	s.handle("/candidates/resolved", s.handleResolvedCandidates, http.MethodGet)
	s.handle("/stats", s.handleStats, http.MethodGet, http.MethodDelete)
	s.handle("/healthz", s.handleHealth, http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// handle registers h at path and under the /api prefix
func (s *Server) handle(path string, h http.HandlerFunc, methods ...string) {
	wrapped := s.wrap(h, methods)
	s.mux.Handle(path, wrapped)
	s.mux.Handle("/api"+path, wrapped)
}

func (s *Server) wrap(h http.HandlerFunc, methods []string) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		logger := log.Logger("api").With(
			zap.String("requestID", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		if !allowed(r.Method, methods) {
			w.Header().Set("Allow", allow)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method " + r.Method + " Not Allowed"})
			return
		}
		if r.Method != http.MethodGet && s.limiter != nil && !s.limiter.allow(s.clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		acquireCtx, cancel := context.WithTimeout(r.Context(), s.cfg.AcquireTimeout)
		defer cancel()
		if err := s.sem.Acquire(acquireCtx, 1); err != nil {
			logger.Warn("fail to acquire semaphore", zap.Error(err))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "server busy"})
			return
		}
		defer s.sem.Release(1)

		start := time.Now()
		h(w, r)
		logger.Debug("request served", zap.Duration("latency", time.Since(start)))
	})
}

// Handler returns the route multiplexer
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the http server
func (s *Server) Start(_ context.Context) error {
	s.svr = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.mux,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	ln, err := net.Listen("tcp", s.svr.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.svr.Addr)
	}
	log.L().Info("http server started", zap.String("address", ln.Addr().String()))
	go func() {
		if err := s.svr.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.L().Fatal("http server failed to serve", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the http server
func (s *Server) Stop(ctx context.Context) error {
	if s.svr == nil {
		return nil
	}
	return s.svr.Shutdown(ctx)
}

func (s *Server) handleCandidateCIDs(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		entries, err := s.svc.CandidateCIDs(r.Context())
		if err != nil {
			writeError(w, r, errors.Wrap(err, "failed to read candidate CIDs"))
			return
		}
		writeJSON(w, http.StatusOK, candidateCIDsResponse{Candidates: entries})
		return
	}
	var req models.DirectoryEntry
	if !decode(w, r, &req) {
		return
	}
	if req.CID == "" || req.Address == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "CID and address are required"})
		return
	}
	if err := s.svc.AddCandidateCID(r.Context(), req.CID, req.Address); err != nil {
		writeError(w, r, errors.Wrap(err, "failed to add candidate CID"))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "CID added successfully"})
}

func (s *Server) handleVoteCount(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.VoteCounts(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to read vote counts"))
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleUpdateVoteCount(w http.ResponseWriter, r *http.Request) {
	var req updateVoteCountRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := s.svc.UpdateVoteCount(r.Context(), req.CandidateAddress, req.VoterAddress)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to update vote count"))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Vote count updated successfully", Count: n})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error parsing form data"})
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid file upload"})
		return
	}
	defer file.Close()
	hash, err := s.svc.UploadFile(r.Context(), service.Upload{
		Reader:   file,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to upload file"))
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{IpfsHash: hash})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteStep
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.VoteStep(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerifyCaptcha(w http.ResponseWriter, r *http.Request) {
	var req captchaRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.VerifyCaptcha(r.Context(), req.Token); err != nil {
		writeJSON(w, statusOf(err), captchaResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, captchaResponse{Success: true})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.LedgerCandidates(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to fetch candidates"))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleResolvedCandidates(w http.ResponseWriter, r *http.Request) {
	listing, err := s.svc.Candidates(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to resolve candidates"))
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		s.svc.Metrics().Reset()
		log.Logger("api").Info("operation stats reset")
	}
	writeJSON(w, http.StatusOK, s.svc.Metrics().GetMetrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func allowed(method string, methods []string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// clientIP is the remote address, or the nearest untrusted hop of
// X-Forwarded-For when the request arrives through a trusted proxy
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.trusted(host) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !s.trusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (s *Server) trusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range s.proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// statusOf maps validation-class errors to 400
func statusOf(err error) int {
	switch errors.Cause(err) {
	case models.ErrInvalidRecord,
		session.ErrInvalidSession,
		session.ErrInvalidStep,
		session.ErrSignatureMismatch,
		service.ErrCaptcha,
		service.ErrNotVoted,
		service.ErrAlreadyRegistered,
		service.ErrNotRegistered:
		return http.StatusBadRequest
	case tally.ErrQueueFull:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		log.Logger("api").Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestID", w.Header().Get(RequestIDHeader)),
			zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger("api").Warn("failed to write response", zap.Error(err))
	}
}
