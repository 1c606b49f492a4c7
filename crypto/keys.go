package crypto

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

var ErrInvalidSignature = errors.New("crypto: invalid envelope signature")

// GenerateKey returns a fresh ed25519 signing key.
func GenerateKey() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// EnvelopeMessage is the byte string a caller signs to authorise method on
// program with the given nonce and JSON payload.
func EnvelopeMessage(program solana.PublicKey, method string, nonce uint64, payload []byte) []byte {
	msg := make([]byte, 0, 45+len(method)+len(payload)+22)
	msg = append(msg, program.String()...)
	msg = append(msg, '\n')
	msg = append(msg, method...)
	msg = append(msg, '\n')
	msg = strconv.AppendUint(msg, nonce, 10)
	msg = append(msg, '\n')
	msg = append(msg, payload...)
	return msg
}

// SignEnvelope signs the envelope message for method on program.
func SignEnvelope(key solana.PrivateKey, program solana.PublicKey, method string, nonce uint64, payload []byte) (solana.Signature, error) {
	if len(key) != 64 {
		return solana.Signature{}, fmt.Errorf("crypto: private key must be 64 bytes, got %d", len(key))
	}
	return key.Sign(EnvelopeMessage(program, method, nonce, payload))
}

// VerifyEnvelope checks that signer produced sig over the envelope message.
func VerifyEnvelope(signer, program solana.PublicKey, method string, nonce uint64, payload []byte, sig solana.Signature) error {
	if !sig.Verify(signer, EnvelopeMessage(program, method, nonce, payload)) {
		return ErrInvalidSignature
	}
	return nil
}
