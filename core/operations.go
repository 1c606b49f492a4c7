package core

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"memepod/native/mainstate"
	"memepod/native/pod"
	"memepod/native/token"
	"memepod/observability"
)

// RegistryInit creates the global registry with caller as owner.
func (n *Node) RegistryInit(ctx context.Context, caller solana.PublicKey) (*mainstate.State, error) {
	var out *mainstate.State
	err := n.execute(ctx, "registry_init", func(c *call) error {
		var err error
		out, err = c.registry.Init(caller)
		return err
	})
	return out, err
}

// RegistryUpdate replaces the registry fields; caller must be the owner.
func (n *Node) RegistryUpdate(ctx context.Context, caller solana.PublicKey, input mainstate.UpdateInput) (*mainstate.State, error) {
	var out *mainstate.State
	err := n.execute(ctx, "registry_update", func(c *call) error {
		var err error
		out, err = c.registry.Update(caller, input)
		return err
	})
	return out, err
}

// Registry returns the current registry record.
func (n *Node) Registry() (*mainstate.State, error) {
	var out *mainstate.State
	err := n.view(func(c *call) error {
		var err error
		out, err = c.registry.Get()
		return err
	})
	return out, err
}

// PodCreate opens a new sale funded by creator.
func (n *Node) PodCreate(ctx context.Context, creator solana.PublicKey, input pod.CreateInput) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.execute(ctx, "pod_create", func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.Create(cfg, creator, input)
		return err
	})
	return out, err
}

// PodBuy spends quoteAmount of the native asset on the pod's inventory.
func (n *Node) PodBuy(ctx context.Context, buyer solana.PublicKey, id pod.ID, quoteAmount uint64) (*pod.Purchase, error) {
	var out *pod.Purchase
	err := n.execute(ctx, "pod_buy", func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.Buy(cfg, buyer, id, quoteAmount)
		return err
	})
	if err == nil {
		observability.Pods().RecordBuy(out.QuoteAmount, out.OutputAmount)
	}
	return out, err
}

// PodEdit tops up inventory and reprices a pod.
func (n *Node) PodEdit(ctx context.Context, admin solana.PublicKey, id pod.ID, additionalBase, newPrice uint64) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.execute(ctx, "pod_edit", func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.Edit(cfg, admin, id, additionalBase, newPrice)
		return err
	})
	return out, err
}

// PodWithdraw moves unsold inventory and proceeds back to the admin.
func (n *Node) PodWithdraw(ctx context.Context, admin solana.PublicKey, id pod.ID, baseOut, quoteOut uint64) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.execute(ctx, "pod_withdraw", func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.Withdraw(cfg, admin, id, baseOut, quoteOut)
		return err
	})
	return out, err
}

// PodClose deactivates a pod and burns what is left in its base vault.
func (n *Node) PodClose(ctx context.Context, admin solana.PublicKey, id pod.ID) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.execute(ctx, "pod_close", func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.Close(cfg, admin, id)
		return err
	})
	return out, err
}

// PodGet loads a pod by identity.
func (n *Node) PodGet(id pod.ID) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.view(func(c *call) error {
		var err error
		out, err = c.pods.Get(id)
		return err
	})
	return out, err
}

// PodGetByAddress loads a pod by its derived address.
func (n *Node) PodGetByAddress(addr solana.PublicKey) (*pod.Pod, error) {
	var out *pod.Pod
	err := n.view(func(c *call) error {
		var err error
		out, err = c.pods.GetByAddress(addr)
		return err
	})
	return out, err
}

// PodQuoteBuy previews a purchase without moving funds.
func (n *Node) PodQuoteBuy(id pod.ID, quoteAmount uint64) (*pod.Quote, error) {
	var out *pod.Quote
	err := n.view(func(c *call) error {
		cfg, err := c.registry.Get()
		if err != nil {
			return err
		}
		out, err = c.pods.QuoteBuy(cfg, id, quoteAmount)
		return err
	})
	return out, err
}

// PodVaults reports the pod's vault addresses and balances.
func (n *Node) PodVaults(id pod.ID) (*pod.Vaults, error) {
	var out *pod.Vaults
	err := n.view(func(c *call) error {
		var err error
		out, err = c.pods.Vaults(id)
		return err
	})
	return out, err
}

// PodList returns every pod in creation order.
func (n *Node) PodList() ([]*pod.Pod, error) {
	var out []*pod.Pod
	err := n.view(func(c *call) error {
		var err error
		out, err = c.pods.List()
		return err
	})
	return out, err
}

// TokenRegisterMint creates a fungible mint.
func (n *Node) TokenRegisterMint(ctx context.Context, addr solana.PublicKey, decimals uint8, authority solana.PublicKey) (*token.Mint, error) {
	var out *token.Mint
	err := n.execute(ctx, "token_register_mint", func(c *call) error {
		var err error
		out, err = c.tokens.RegisterMint(addr, decimals, authority)
		return err
	})
	return out, err
}

// TokenMintTo mints amount of mint into owner's associated account, signed by
// the mint authority.
func (n *Node) TokenMintTo(ctx context.Context, mint, owner solana.PublicKey, amount uint64, authority solana.PublicKey) (*token.Account, error) {
	var out *token.Account
	err := n.execute(ctx, "token_mint_to", func(c *call) error {
		var err error
		out, err = c.tokens.MintTo(mint, owner, amount, token.SignerAuthority(authority))
		return err
	})
	return out, err
}

// TokenAirdrop credits owner with lamports and returns the new balance.
func (n *Node) TokenAirdrop(ctx context.Context, owner solana.PublicKey, lamports uint64) (uint64, error) {
	var out uint64
	err := n.execute(ctx, "token_airdrop", func(c *call) error {
		var err error
		out, err = c.tokens.Airdrop(owner, lamports)
		return err
	})
	return out, err
}

// TokenBalance reports owner's balance of mint. The native mint includes
// unwrapped lamports.
func (n *Node) TokenBalance(owner, mint solana.PublicKey) (uint64, error) {
	var out uint64
	err := n.view(func(c *call) error {
		var err error
		if mint.Equals(token.NativeMint) {
			out, err = c.tokens.NativeBalance(owner)
			return err
		}
		out, err = c.tokens.BalanceOf(owner, mint)
		return err
	})
	return out, err
}
