package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"

	"memepod/config"
	"memepod/core/genesis"
	"memepod/native/token"
	"memepod/observability/logging"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key != genesisPathEnv {
			t.Fatalf("unexpected lookup key: %s", key)
		}
		return "env-path", true
	}

	if path := resolveGenesisPath("  cli-path ", "cfg-path", lookup); path != "cli-path" {
		t.Fatalf("cli flag should win, got %q", path)
	}
	if path := resolveGenesisPath("", "cfg-path", lookup); path != "env-path" {
		t.Fatalf("environment should override config, got %q", path)
	}
	emptyLookup := func(string) (string, bool) { return " \t", true }
	if path := resolveGenesisPath("", " cfg-path ", emptyLookup); path != "cfg-path" {
		t.Fatalf("config should be used last, got %q", path)
	}
	if path := resolveGenesisPath("", "", emptyLookup); path != "" {
		t.Fatalf("expected no genesis, got %q", path)
	}
}

func TestOpenNodeAppliesGenesisOnce(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.StorageBackend = "bolt"

	genesisPath := filepath.Join(dir, "genesis.yaml")
	holder := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	doc := "genesisTime: \"2024-01-01T00:00:00Z\"\nlamports:\n  " + holder + ": 42\n"
	if err := os.WriteFile(genesisPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	spec, err := genesis.LoadSpec(genesisPath)
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}

	logger := logging.Setup("podd-test", "test")
	for round, want := range []bool{true, false} {
		node, _, closeAll, err := openNode(cfg, logger)
		if err != nil {
			t.Fatalf("open node: %v", err)
		}
		applied, err := node.ApplyGenesis(context.Background(), spec)
		if err != nil {
			t.Fatalf("apply genesis: %v", err)
		}
		if applied != want {
			t.Fatalf("round %d: applied=%v want %v", round, applied, want)
		}
		balance, err := node.TokenBalance(solana.MustPublicKeyFromBase58(holder), token.NativeMint)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if balance != 42 {
			t.Fatalf("round %d: balance %d want 42", round, balance)
		}
		closeAll()
	}
}
