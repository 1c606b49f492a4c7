package state

import "github.com/gagliardetto/solana-go"

var (
	mainStateKeyBytes  = []byte("mainstate/record")
	podRecordPrefix    = []byte("pod/record/")
	podIndexKeyBytes   = []byte("pod/index")
	tokenMintPrefix    = []byte("token/mint/")
	tokenAccountPrefix = []byte("token/account/")
	lamportsPrefix     = []byte("lamports/")
)

func prefixedKey(prefix []byte, addr solana.PublicKey) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

// MainStateKey returns the key of the singleton registry record.
func MainStateKey() []byte { return append([]byte(nil), mainStateKeyBytes...) }

// PodKey returns the key of the pod record stored at addr.
func PodKey(addr solana.PublicKey) []byte { return prefixedKey(podRecordPrefix, addr) }

// PodIndexKey returns the key of the ordered list of pod addresses.
func PodIndexKey() []byte { return append([]byte(nil), podIndexKeyBytes...) }

// TokenMintKey returns the key of a mint record.
func TokenMintKey(mint solana.PublicKey) []byte { return prefixedKey(tokenMintPrefix, mint) }

// TokenAccountKey returns the key of a token account record.
func TokenAccountKey(addr solana.PublicKey) []byte { return prefixedKey(tokenAccountPrefix, addr) }

// LamportsKey returns the key of an identity's native balance.
func LamportsKey(owner solana.PublicKey) []byte { return prefixedKey(lamportsPrefix, owner) }
