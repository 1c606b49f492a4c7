package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var supportedBackends = map[string]struct{}{"memory": {}, "leveldb": {}, "bolt": {}}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if _, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.ProgramID)); err != nil {
		return fmt.Errorf("ProgramID: %w", err)
	}
	if _, ok := supportedBackends[c.StorageBackend]; !ok {
		return fmt.Errorf("StorageBackend: unsupported value %q", c.StorageBackend)
	}
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("RPCAddress: %w", err)
	}
	if (c.RPCTLSCertFile == "") != (c.RPCTLSKeyFile == "") {
		return fmt.Errorf("RPCTLSCertFile and RPCTLSKeyFile must be set together")
	}
	for _, proxy := range c.RPCTrustedProxies {
		if net.ParseIP(strings.TrimSpace(proxy)) == nil {
			return fmt.Errorf("RPCTrustedProxies: invalid address %q", proxy)
		}
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond and Burst must be positive")
	}
	if c.Admission.NonceTTLSeconds <= 0 {
		return fmt.Errorf("admission: NonceTTLSeconds must be positive")
	}
	if c.Admission.NonceTTLSeconds > 3600 {
		return fmt.Errorf("admission: NonceTTLSeconds must not exceed 3600")
	}
	if c.Admission.NonceSkewSeconds <= 0 || c.Admission.NonceSkewSeconds > 120 {
		return fmt.Errorf("admission: NonceSkewSeconds must be between 1 and 120")
	}
	if c.Admission.NonceCapacity <= 0 {
		return fmt.Errorf("admission: NonceCapacity must be positive")
	}
	return nil
}
