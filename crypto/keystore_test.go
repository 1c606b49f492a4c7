package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "user.keystore")
	if err := SaveToKeystore(path, key, "hunter2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected permissions %v", info.Mode().Perm())
	}

	loaded, err := LoadFromKeystore(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.PublicKey().Equals(key.PublicKey()) {
		t.Fatalf("loaded key mismatch")
	}

	if _, err := LoadFromKeystore(path, "wrong"); !errors.Is(err, ErrKeystorePassphrase) {
		t.Fatalf("expected passphrase error, got %v", err)
	}
}

func TestEnvelopeSignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payload := []byte(`{"quoteAmount":"1000"}`)
	program := solana.MustPublicKeyFromBase58("5EFN2ja837Uk3setSnu99JvSfx8H8sNWKx3Hndm3XeKb")
	sig, err := SignEnvelope(key, program, "pod_buy", 7, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyEnvelope(key.PublicKey(), program, "pod_buy", 7, payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyEnvelope(key.PublicKey(), program, "pod_buy", 8, payload, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected nonce tamper to fail, got %v", err)
	}
	if err := VerifyEnvelope(key.PublicKey(), program, "pod_close", 7, payload, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected method tamper to fail, got %v", err)
	}
	if err := VerifyEnvelope(key.PublicKey(), solana.SolMint, "pod_buy", 7, payload, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected program mismatch to fail, got %v", err)
	}
	other, _ := GenerateKey()
	if err := VerifyEnvelope(other.PublicKey(), program, "pod_buy", 7, payload, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signer mismatch to fail, got %v", err)
	}
}
