package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"memepod/config"
	"memepod/core"
	"memepod/core/genesis"
	"memepod/indexer"
	"memepod/observability/logging"
	"memepod/rpc"
	"memepod/storage"
)

const (
	genesisPathEnv = "MEMEPOD_GENESIS"
	envNameEnv     = "MEMEPOD_ENV"
)

type envLookupFunc func(string) (string, bool)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON or YAML file (overrides MEMEPOD_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "podd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv(envNameEnv))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "podd",
		Env:        env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, idx, closeAll, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	genesisPath := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		applied, err := node.ApplyGenesis(ctx, spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if applied {
			logger.Info("genesis applied", slog.String("path", genesisPath))
		} else {
			logger.Info("genesis already applied; skipping", slog.String("path", genesisPath))
		}
	}

	secret, err := cfg.OperatorSecret()
	if err != nil {
		return err
	}
	server, err := rpc.NewServer(node, rpc.ServerConfig{
		ReadHeaderTimeout: time.Duration(cfg.RPCReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPCIdleTimeout) * time.Second,
		TrustedProxies:    cfg.RPCTrustedProxies,
		TrustProxyHeaders: cfg.RPCTrustProxyHeaders,
		TLSCertFile:       cfg.RPCTLSCertFile,
		TLSKeyFile:        cfg.RPCTLSKeyFile,
		NonceTTL:          time.Duration(cfg.Admission.NonceTTLSeconds) * time.Second,
		NonceSkew:         time.Duration(cfg.Admission.NonceSkewSeconds) * time.Second,
		NonceCapacity:     cfg.Admission.NonceCapacity,
		NoncePersistence:  idx,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		OperatorSecret:    secret,
		OperatorIssuer:    cfg.Admission.OperatorIssuer,
	}, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPCAddress, err)
	}
	logger.Info("node started",
		slog.String("network", cfg.NetworkName),
		slog.String("program", node.Program().String()),
		slog.String("backend", cfg.StorageBackend),
	)
	if err := server.Serve(ctx, ln); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openNode opens storage and the event index and wires them into a node. The
// index is returned as well since it also persists admitted envelope nonces.
// The returned func releases both.
func openNode(cfg *config.Config, logger *slog.Logger) (*core.Node, *indexer.Indexer, func(), error) {
	program, err := solana.PublicKeyFromBase58(strings.TrimSpace(cfg.ProgramID))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("program id: %w", err)
	}
	if cfg.StorageBackend != "memory" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("prepare data directory: %w", err)
		}
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.StoragePath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open storage: %w", err)
	}
	idx, err := indexer.Open(cfg.IndexerTarget())
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("open event index: %w", err)
	}
	node, err := core.NewNode(db, program)
	if err != nil {
		_ = idx.Close()
		db.Close()
		return nil, nil, nil, err
	}
	node.SetLogger(logger)
	node.SetIndexer(idx)
	logger.Info("storage opened",
		slog.String("backend", cfg.StorageBackend),
		slog.String("path", cfg.StoragePath()),
		logging.MaskDSN("indexer", cfg.IndexerTarget()))
	return node, idx, func() {
		if err := idx.Close(); err != nil {
			logger.Warn("close event index", slog.String("error", err.Error()))
		}
		db.Close()
	}, nil
}

func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}
