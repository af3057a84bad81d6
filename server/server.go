package server

import (
	"context"
	"crypto/ecdsa"
	"io"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/api"
	"chainvote-backend/config"
	"chainvote-backend/directory"
	"chainvote-backend/ipfs"
	"chainvote-backend/ledger"
	"chainvote-backend/pkg/log"
	"chainvote-backend/service"
	"chainvote-backend/session"
	"chainvote-backend/storage"
	"chainvote-backend/tally"
	"chainvote-backend/wallet"
)

// Server is the assembled voting backend
type Server struct {
	cfg      config.Config
	pointer  storage.Pointer
	conn     *ledger.Connection
	queue    *tally.Queue
	sessions *session.Store
	svc      *service.VotingService
	http     *api.Server
}

// NewStore creates the configured content store
func NewStore(cfg config.Config) (ipfs.Store, error) {
	switch cfg.Store.Backend {
	case config.StorePinata:
		return ipfs.NewPinata(cfg.Store.Pinata), nil
	case config.StoreShell:
		return ipfs.NewShell(cfg.Store.Shell), nil
	case config.StoreMemory:
		return ipfs.NewMemory(), nil
	default:
		return nil, errors.Wrapf(config.ErrInvalidCfg, "unknown content store %q", cfg.Store.Backend)
	}
}

// NewPointer opens the configured tally pointer
func NewPointer(ctx context.Context, cfg config.Config) (storage.Pointer, error) {
	switch cfg.Storage.Pointer {
	case config.PointerFile:
		return storage.NewFilePointer(cfg.Storage.DataDir, storage.VoteCountFile)
	case config.PointerBolt:
		return storage.OpenBoltPointer(cfg.Storage.BoltPath, storage.VoteCountFile)
	case config.PointerRedis:
		r := cfg.Storage.Redis
		return storage.NewRedisPointer(ctx, r.Addr, r.Password, r.DB, r.Key)
	default:
		return nil, errors.Wrapf(config.ErrInvalidCfg, "unknown tally pointer %q", cfg.Storage.Pointer)
	}
}

// NewGateway opens the configured ledger acting as the account of keyHex.
// A contract gateway is returned connected.
func NewGateway(ctx context.Context, cfg config.Config, keyHex string) (ledger.Gateway, *ledger.Connection, error) {
	var (
		account common.Address
		key     *ecdsa.PrivateKey
		err     error
	)
	if keyHex != "" {
		if key, err = wallet.KeyFromHex(keyHex); err != nil {
			return nil, nil, err
		}
		account = wallet.NewKeySigner(key).Address()
	}
	switch cfg.Ledger.Backend {
	case config.LedgerMemory:
		statePath := cfg.Ledger.StatePath
		if statePath == "" {
			statePath = filepath.Join(cfg.Storage.DataDir, "ledger.json")
		}
		l, err := ledger.NewMemoryLedger(ledger.MemoryConfig{StatePath: statePath, ChainID: cfg.Ledger.ChainID}, account)
		return l, nil, err
	case config.LedgerContract:
		conn := ledger.NewConnection(cfg.Ledger, nil, key)
		if err := conn.Connect(ctx); err != nil {
			return nil, nil, err
		}
		if !conn.OnExpectedChain() {
			conn.Disconnect()
			return nil, nil, errors.Wrapf(ledger.ErrWrongNetwork, "expected chain %d", cfg.Ledger.ChainID)
		}
		return conn, conn, nil
	default:
		return nil, nil, errors.Wrapf(config.ErrInvalidCfg, "unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// New assembles the backend from cfg
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	list, err := storage.NewCIDList(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	pointer, err := NewPointer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gateway, conn, err := NewGateway(ctx, cfg, cfg.Ledger.KeyHex)
	if err != nil {
		closePointer(pointer)
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		pointer:  pointer,
		conn:     conn,
		queue:    tally.NewQueue(tally.NewStore(store, pointer, cfg.Tally), cfg.Tally.QueueSize),
		sessions: session.NewStore(cfg.Session, clock.New(), gateway),
	}
	opts := []service.Option{
		service.WithSessions(s.sessions),
		service.WithLedgerVoteGuard(cfg.Tally.RequireLedgerVote),
	}
	if cfg.Captcha.SecretKey != "" {
		opts = append(opts, service.WithCaptcha(service.NewCaptchaVerifier(cfg.Captcha)))
	}
	dir := directory.New(list, store, directory.WithVerifier(gateway))
	s.svc = service.NewVotingService(store, dir, s.queue, gateway, opts...)
	s.http = api.NewServer(cfg.Server, s.svc)
	return s, nil
}

// Service returns the voting service
func (s *Server) Service() *service.VotingService {
	return s.svc
}

// Start starts the tally queue, the session sweeper and the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.queue.Start()
	s.sessions.Start()
	if err := s.http.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start http server")
	}
	return nil
}

// Stop shuts everything down in reverse order
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Stop(ctx)
	s.sessions.Stop()
	s.queue.Stop()
	if s.conn != nil {
		s.conn.Disconnect()
	}
	closePointer(s.pointer)
	return err
}

// Close releases the resources held by a server that was never started
func (s *Server) Close() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
	closePointer(s.pointer)
}

func closePointer(p storage.Pointer) {
	if c, ok := p.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.L().Warn("failed to close tally pointer", zap.Error(err))
		}
	}
}
