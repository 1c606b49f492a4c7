package rpc

import (
	"net/http"

	"memepod/native/token"
)

type registerMintParams struct {
	Mint          string `json:"mint"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority,omitempty"`
}

type mintToParams struct {
	Mint   string `json:"mint"`
	Owner  string `json:"owner"`
	Amount Uint64 `json:"amount"`
}

type airdropParams struct {
	Owner    string `json:"owner"`
	Lamports Uint64 `json:"lamports"`
}

type balanceParams struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint,omitempty"`
}

// handleTokenRegisterMint registers a mint. The envelope signer becomes the
// mint authority unless one is named.
func (s *Server) handleTokenRegisterMint(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p registerMintParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", p.Mint)
	if err != nil {
		return nil, err
	}
	authority, err := parseOptionalKey("mintAuthority", p.MintAuthority, call.signer)
	if err != nil {
		return nil, err
	}
	registered, err := s.node.TokenRegisterMint(r.Context(), mint, p.Decimals, authority)
	if err != nil {
		return nil, err
	}
	return mintResult(registered), nil
}

// handleTokenMintTo mints into owner's associated account; the envelope signer
// must be the mint authority.
func (s *Server) handleTokenMintTo(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p mintToParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", p.Mint)
	if err != nil {
		return nil, err
	}
	owner, err := parseKey("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	account, err := s.node.TokenMintTo(r.Context(), mint, owner, uint64(p.Amount), call.signer)
	if err != nil {
		return nil, err
	}
	return accountResult(account), nil
}

func (s *Server) handleTokenAirdrop(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p airdropParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	owner, err := parseKey("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.TokenAirdrop(r.Context(), owner, uint64(p.Lamports))
	if err != nil {
		return nil, err
	}
	return BalanceResult{Owner: owner.String(), Mint: token.NativeMint.String(), Balance: Uint64(balance)}, nil
}

func (s *Server) handleTokenBalance(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p balanceParams
	if err := params(req, &p); err != nil {
		return nil, err
	}
	owner, err := parseKey("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	mint, err := parseOptionalKey("mint", p.Mint, token.NativeMint)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.TokenBalance(owner, mint)
	if err != nil {
		return nil, err
	}
	return BalanceResult{Owner: owner.String(), Mint: mint.String(), Balance: Uint64(balance)}, nil
}
