package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
)

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatKey(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}
