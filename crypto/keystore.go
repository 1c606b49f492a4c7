package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersion = 1
	scryptN         = 1 << 15
	scryptR         = 8
	scryptP         = 1
	scryptKeyLen    = 32
)

var ErrKeystorePassphrase = errors.New("crypto: keystore passphrase mismatch")

type keystoreFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	KDF        kdf    `json:"kdf"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type kdf struct {
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
	Salt string `json:"salt"`
}

// SaveToKeystore encrypts key with a scrypt-derived secretbox key and writes it
// to path with 0600 permissions. Parent directories are created with 0700.
func SaveToKeystore(path string, key solana.PrivateKey, passphrase string) error {
	if len(key) != 64 {
		return errors.New("crypto: invalid private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	secret, err := deriveKey(passphrase, salt[:], scryptN, scryptR, scryptP)
	if err != nil {
		return err
	}
	sealed := secretbox.Seal(nil, key, &nonce, secret)

	encoded, err := json.MarshalIndent(keystoreFile{
		Version:    keystoreVersion,
		Address:    key.PublicKey().String(),
		KDF:        kdf{N: scryptN, R: scryptR, P: scryptP, Salt: hex.EncodeToString(salt[:])},
		Nonce:      hex.EncodeToString(nonce[:]),
		Ciphertext: hex.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts a keystore written by SaveToKeystore.
func LoadFromKeystore(path, passphrase string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file keystoreFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	if file.Version != keystoreVersion {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d", file.Version)
	}
	salt, err := hex.DecodeString(file.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore salt: %w", err)
	}
	nonceBytes, err := hex.DecodeString(file.Nonce)
	if err != nil || len(nonceBytes) != 24 {
		return nil, errors.New("crypto: keystore nonce malformed")
	}
	sealed, err := hex.DecodeString(file.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore ciphertext: %w", err)
	}
	secret, err := deriveKey(passphrase, salt, file.KDF.N, file.KDF.R, file.KDF.P)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	opened, ok := secretbox.Open(nil, sealed, &nonce, secret)
	if !ok {
		return nil, ErrKeystorePassphrase
	}
	key := solana.PrivateKey(opened)
	if file.Address != "" && key.PublicKey().String() != file.Address {
		return nil, errors.New("crypto: keystore address does not match key")
	}
	return key, nil
}

func deriveKey(passphrase string, salt []byte, n, r, p int) (*[32]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, n, r, p, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	var out [32]byte
	copy(out[:], derived)
	return &out, nil
}
