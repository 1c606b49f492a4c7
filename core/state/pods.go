package state

import (
	"github.com/gagliardetto/solana-go"

	"memepod/native/pod"
)

type storedPod struct {
	PodName      [pod.PodNameLen]byte
	TokenName    [pod.TokenNameLen]byte
	TokenSymbol  [pod.TokenSymbolLen]byte
	Decimal      uint8
	BaseAsset    [32]byte
	QuoteAsset   [32]byte
	Owner        [32]byte
	BaseAmount   uint64
	BoughtAmount uint64
	TokenPrice   uint64
	ExpireTime   uint64
	IsActive     bool
}

func newStoredPod(p *pod.Pod) *storedPod {
	return &storedPod{
		PodName:      p.PodName,
		TokenName:    p.TokenName,
		TokenSymbol:  p.TokenSymbol,
		Decimal:      p.Decimal,
		BaseAsset:    p.BaseAsset,
		QuoteAsset:   p.QuoteAsset,
		Owner:        p.Owner,
		BaseAmount:   p.BaseAmount,
		BoughtAmount: p.BoughtAmount,
		TokenPrice:   p.TokenPrice,
		ExpireTime:   p.ExpireTime,
		IsActive:     p.IsActive,
	}
}

func (s *storedPod) toPod() *pod.Pod {
	return &pod.Pod{
		Owner:        s.Owner,
		BaseAsset:    s.BaseAsset,
		QuoteAsset:   s.QuoteAsset,
		PodName:      s.PodName,
		TokenName:    s.TokenName,
		TokenSymbol:  s.TokenSymbol,
		Decimal:      s.Decimal,
		BaseAmount:   s.BaseAmount,
		BoughtAmount: s.BoughtAmount,
		TokenPrice:   s.TokenPrice,
		ExpireTime:   s.ExpireTime,
		IsActive:     s.IsActive,
	}
}

// Pod loads the pod record stored at addr.
func (m *Manager) Pod(addr solana.PublicKey) (*pod.Pod, bool, error) {
	var stored storedPod
	ok, err := m.KVGet(PodKey(addr), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toPod(), true, nil
}

// PutPod writes the pod record at addr.
func (m *Manager) PutPod(addr solana.PublicKey, p *pod.Pod) error {
	if p == nil {
		return errNilRecord
	}
	return m.KVPut(PodKey(addr), newStoredPod(p))
}

// PodIndex returns every pod address in creation order.
func (m *Manager) PodIndex() ([]solana.PublicKey, error) {
	var raw [][]byte
	if err := m.KVGetList(PodIndexKey(), &raw); err != nil {
		return nil, err
	}
	out := make([]solana.PublicKey, 0, len(raw))
	for _, entry := range raw {
		out = append(out, solana.PublicKeyFromBytes(entry))
	}
	return out, nil
}

// AppendPodIndex records addr in the pod index. Duplicates are ignored.
func (m *Manager) AppendPodIndex(addr solana.PublicKey) error {
	return m.KVAppend(PodIndexKey(), addr.Bytes())
}
