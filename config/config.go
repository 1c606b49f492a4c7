package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultProgramID is the program identity every pod and registry address is
// derived under unless a network overrides it.
const DefaultProgramID = "5EFN2ja837Uk3setSnu99JvSfx8H8sNWKx3Hndm3XeKb"

const (
	defaultRPCAddress      = ":8545"
	defaultDataDir         = "./memepod-data"
	defaultStorageBackend  = "leveldb"
	defaultNonceTTLSeconds = 600
	defaultNonceSkewSecs   = 30
	defaultNonceCapacity   = 65536
	defaultRatePerSecond   = 20
	defaultRateBurst       = 40
	defaultLogLevel        = "info"
	defaultLogMaxSizeMB    = 100
	defaultLogMaxBackups   = 5
	defaultLogMaxAgeDays   = 14
)

type Config struct {
	NetworkName    string `toml:"NetworkName"`
	ProgramID      string `toml:"ProgramID"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	GenesisFile    string `toml:"GenesisFile"`
	// IndexerDSN selects the event index database. Empty means a SQLite file
	// inside DataDir; postgres:// DSNs use Postgres.
	IndexerDSN string `toml:"IndexerDSN"`

	RPCAddress           string   `toml:"RPCAddress"`
	RPCReadHeaderTimeout int      `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout       int      `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int      `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int      `toml:"RPCIdleTimeout"`
	RPCTrustedProxies    []string `toml:"RPCTrustedProxies"`
	RPCTrustProxyHeaders bool     `toml:"RPCTrustProxyHeaders"`
	RPCTLSCertFile       string   `toml:"RPCTLSCertFile"`
	RPCTLSKeyFile        string   `toml:"RPCTLSKeyFile"`

	Admission Admission `toml:"admission"`
	RateLimit RateLimit `toml:"rate_limit"`
	Logging   Logging   `toml:"logging"`
}

// Admission governs signed envelopes and operator tokens.
type Admission struct {
	// Envelope nonces are unix nanoseconds and must fall within
	// [now-NonceTTLSeconds, now+NonceSkewSeconds].
	NonceTTLSeconds  int `toml:"NonceTTLSeconds"`
	NonceSkewSeconds int `toml:"NonceSkewSeconds"`
	NonceCapacity    int `toml:"NonceCapacity"`
	// OperatorSecretFile holds the HS256 secret operator JWTs are signed with.
	OperatorSecretFile string `toml:"OperatorSecretFile"`
	// OperatorSecretEnv, when set, names an environment variable that overrides
	// the file.
	OperatorSecretEnv string `toml:"OperatorSecretEnv"`
	OperatorIssuer    string `toml:"OperatorIssuer"`
}

// RateLimit bounds requests per source address.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Logging mirrors the options accepted by observability/logging.
type Logging struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := ensureOperatorSecret(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "memepod-local"
	}
	if strings.TrimSpace(c.ProgramID) == "" {
		c.ProgramID = DefaultProgramID
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = defaultStorageBackend
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if c.RPCReadHeaderTimeout <= 0 {
		c.RPCReadHeaderTimeout = 5
	}
	if c.RPCReadTimeout <= 0 {
		c.RPCReadTimeout = 15
	}
	if c.RPCWriteTimeout <= 0 {
		c.RPCWriteTimeout = 15
	}
	if c.RPCIdleTimeout <= 0 {
		c.RPCIdleTimeout = 60
	}
	if c.RPCTrustedProxies == nil {
		c.RPCTrustedProxies = []string{}
	}
	if c.Admission.NonceTTLSeconds <= 0 {
		c.Admission.NonceTTLSeconds = defaultNonceTTLSeconds
	}
	if c.Admission.NonceSkewSeconds <= 0 {
		c.Admission.NonceSkewSeconds = defaultNonceSkewSecs
	}
	if c.Admission.NonceCapacity <= 0 {
		c.Admission.NonceCapacity = defaultNonceCapacity
	}
	if strings.TrimSpace(c.Admission.OperatorIssuer) == "" {
		c.Admission.OperatorIssuer = "memepod-operator"
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = defaultRatePerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = defaultLogMaxAgeDays
	}
}

func ensureOperatorSecret(configPath string, cfg *Config) error {
	if strings.TrimSpace(cfg.Admission.OperatorSecretEnv) != "" {
		return nil
	}
	secretPath := cfg.Admission.OperatorSecretFile
	if secretPath == "" {
		secretPath = defaultSecretPath(configPath)
	}

	if _, err := os.Stat(secretPath); os.IsNotExist(err) {
		if err := writeSecret(secretPath); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.Admission.OperatorSecretFile != secretPath {
		cfg.Admission.OperatorSecretFile = secretPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	secretPath := defaultSecretPath(path)
	if err := writeSecret(secretPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Admission.OperatorSecretFile = secretPath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func writeSecret(path string) error {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate operator secret: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(buf)), 0o600)
}

func defaultSecretPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.secret")
}

// OperatorSecret resolves the HS256 secret for operator tokens.
func (c *Config) OperatorSecret() ([]byte, error) {
	if name := strings.TrimSpace(c.Admission.OperatorSecretEnv); name != "" {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return nil, fmt.Errorf("operator secret env %s is empty", name)
		}
		return []byte(value), nil
	}
	raw, err := os.ReadFile(c.Admission.OperatorSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read operator secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return nil, fmt.Errorf("operator secret file %s is empty", c.Admission.OperatorSecretFile)
	}
	return []byte(secret), nil
}

// IndexerTarget returns the DSN the event index should open.
func (c *Config) IndexerTarget() string {
	if dsn := strings.TrimSpace(c.IndexerDSN); dsn != "" {
		return dsn
	}
	return "file:" + filepath.Join(c.DataDir, "events.db")
}

// StoragePath returns the directory or file the state backend lives in.
func (c *Config) StoragePath() string {
	switch c.StorageBackend {
	case "bolt":
		return filepath.Join(c.DataDir, "state.bolt")
	default:
		return filepath.Join(c.DataDir, "state")
	}
}
