package config

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"chainvote-backend/api"
	"chainvote-backend/ipfs"
	"chainvote-backend/ledger"
	"chainvote-backend/pkg/log"
	"chainvote-backend/service"
	"chainvote-backend/session"
	"chainvote-backend/tally"
)

// Content store backends
const (
	StorePinata = "pinata"
	StoreShell  = "shell"
	StoreMemory = "memory"
)

// Tally pointer backends
const (
	PointerFile  = "file"
	PointerBolt  = "bolt"
	PointerRedis = "redis"
)

// Ledger backends
const (
	LedgerContract = "contract"
	LedgerMemory   = "memory"
)

type (
	// Storage is the local state: pointer files and the tally pointer backend
	Storage struct {
		DataDir  string `yaml:"dataDir"`
		Pointer  string `yaml:"pointer"`
		BoltPath string `yaml:"boltPath"`
		Redis    Redis  `yaml:"redis"`
	}

	// Redis configures the shared tally pointer
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Key      string `yaml:"key"`
	}

	// Store selects and configures the content store
	Store struct {
		Backend string            `yaml:"backend"`
		Pinata  ipfs.PinataConfig `yaml:"pinata"`
		Shell   ipfs.ShellConfig  `yaml:"shell"`
	}

	// Config is the root configuration
	Config struct {
		Server  api.Config            `yaml:"server"`
		Storage Storage               `yaml:"storage"`
		Store   Store                 `yaml:"store"`
		Ledger  ledger.Config         `yaml:"ledger"`
		Tally   tally.Config          `yaml:"tally"`
		Session session.Config        `yaml:"session"`
		Captcha service.CaptchaConfig `yaml:"captcha"`
		Log     log.GlobalConfig      `yaml:"log"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

var (
	// Default is the default config
	Default = Config{
		Server: api.DefaultConfig,
		Storage: Storage{
			DataDir:  "data",
			Pointer:  PointerFile,
			BoltPath: "data/pointers.db",
			Redis: Redis{
				Addr: "127.0.0.1:6379",
				Key:  "chainvote:vote-count-cid",
			},
		},
		Store: Store{
			Backend: StorePinata,
			Pinata:  ipfs.DefaultPinataConfig,
			Shell:   ipfs.ShellConfig{Endpoint: "localhost:5001", Timeout: 30 * time.Second},
		},
		Ledger:  ledger.DefaultConfig,
		Tally:   tally.DefaultConfig,
		Session: session.DefaultConfig,
		Captcha: service.DefaultCaptchaConfig,
		Log:     log.GlobalConfig{},
	}

	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")

	// Validates is the collection config validation functions
	Validates = []Validate{
		ValidateServer,
		ValidateStorage,
		ValidateStore,
		ValidateLedger,
		ValidateTally,
		ValidateSession,
	}

	// environment variables consulted when the matching value is unset
	_envOverrides = map[string]func(*Config) *string{
		"PINATA_API_KEY":        func(c *Config) *string { return &c.Store.Pinata.APIKey },
		"PINATA_SECRET_API_KEY": func(c *Config) *string { return &c.Store.Pinata.SecretKey },
		"RECAPTCHA_SECRET_KEY":  func(c *Config) *string { return &c.Captcha.SecretKey },
		"LEDGER_RPC_URL":        func(c *Config) *string { return &c.Ledger.RPCURL },
		"LEDGER_KEY":            func(c *Config) *string { return &c.Ledger.KeyHex },
		"VOTER_REGISTRY":        func(c *Config) *string { return &c.Ledger.VoterRegistry },
		"CANDIDATE_REGISTRY":    func(c *Config) *string { return &c.Ledger.CandidateRegistry },
	}
)

// LoadEnv loads .env style files into the process environment. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load env file %s", p)
		}
	}
	return nil
}

// New creates a config instance. It first loads the default configs. If the config path is not empty, it will read from
// the file and override the default configs. By default, it will apply all validation functions.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}
	applyEnv(&cfg)

	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// DoNotValidate validates the given config
func DoNotValidate(cfg Config) error { return nil }

func applyEnv(cfg *Config) {
	for name, field := range _envOverrides {
		v, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if p := field(cfg); *p == "" {
			*p = v
		}
	}
}

// ValidateServer validates the HTTP server configs
func ValidateServer(cfg Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.Wrapf(ErrInvalidCfg, "server port %d is out of range", cfg.Server.Port)
	}
	if cfg.Server.MaxConcurrent <= 0 {
		return errors.Wrap(ErrInvalidCfg, "server maxConcurrent should be greater than 0")
	}
	if cfg.Server.RateLimit < 0 || cfg.Server.RateBurst < 0 {
		return errors.Wrap(ErrInvalidCfg, "server rate limits should not be negative")
	}
	if _, err := api.ParseTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return errors.Wrapf(ErrInvalidCfg, "server trustedProxies: %v", err)
	}
	return nil
}

// ValidateStorage validates the local storage configs
func ValidateStorage(cfg Config) error {
	if cfg.Storage.DataDir == "" {
		return errors.Wrap(ErrInvalidCfg, "storage dataDir is required")
	}
	switch cfg.Storage.Pointer {
	case PointerFile:
	case PointerBolt:
		if cfg.Storage.BoltPath == "" {
			return errors.Wrap(ErrInvalidCfg, "storage boltPath is required for the bolt pointer")
		}
	case PointerRedis:
		if cfg.Storage.Redis.Addr == "" || cfg.Storage.Redis.Key == "" {
			return errors.Wrap(ErrInvalidCfg, "storage redis addr and key are required for the redis pointer")
		}
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown tally pointer %q", cfg.Storage.Pointer)
	}
	return nil
}

// ValidateStore validates the content store configs
func ValidateStore(cfg Config) error {
	switch cfg.Store.Backend {
	case StorePinata:
		if cfg.Store.Pinata.APIURL == "" || cfg.Store.Pinata.GatewayURL == "" {
			return errors.Wrap(ErrInvalidCfg, "pinata apiURL and gatewayURL are required")
		}
	case StoreShell:
		if cfg.Store.Shell.Endpoint == "" {
			return errors.Wrap(ErrInvalidCfg, "shell endpoint is required")
		}
	case StoreMemory:
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown content store %q", cfg.Store.Backend)
	}
	return nil
}

// ValidateLedger validates the ledger configs
func ValidateLedger(cfg Config) error {
	if cfg.Ledger.ChainID == 0 {
		return errors.Wrap(ErrInvalidCfg, "ledger chainID should be greater than 0")
	}
	switch cfg.Ledger.Backend {
	case LedgerMemory:
		return nil
	case LedgerContract:
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown ledger backend %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.RPCURL == "" {
		return errors.Wrap(ErrInvalidCfg, "ledger rpcURL is required")
	}
	for name, addr := range map[string]string{
		"voterRegistry":     cfg.Ledger.VoterRegistry,
		"candidateRegistry": cfg.Ledger.CandidateRegistry,
	} {
		if !common.IsHexAddress(addr) {
			return errors.Wrapf(ErrInvalidCfg, "ledger %s %q is not an address", name, addr)
		}
	}
	return nil
}

// ValidateTally validates the tally configs
func ValidateTally(cfg Config) error {
	if cfg.Tally.QueueSize <= 0 {
		return errors.Wrap(ErrInvalidCfg, "tally queueSize should be greater than 0")
	}
	if cfg.Tally.RetryInterval < 0 {
		return errors.Wrap(ErrInvalidCfg, "tally retryInterval should not be negative")
	}
	return nil
}

// ValidateSession validates the vote session configs
func ValidateSession(cfg Config) error {
	if cfg.Session.TTL <= 0 {
		return errors.Wrap(ErrInvalidCfg, "session ttl should be greater than 0")
	}
	if cfg.Session.SweepInterval <= 0 {
		return errors.Wrap(ErrInvalidCfg, "session sweepInterval should be greater than 0")
	}
	return nil
}
