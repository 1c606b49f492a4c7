package rpc

import (
	"net/http"

	"memepod/native/mainstate"
)

type registryUpdateParams struct {
	Owner        string  `json:"owner"`
	FeeRecipient string  `json:"feeRecipient"`
	CreationFee  *Uint64 `json:"creationFee"`
	TradingFee   *uint16 `json:"tradingFee"`
	CreatorFee   *uint16 `json:"creatorFee"`
	OwnerFee     *uint16 `json:"ownerFee"`
}

func (s *Server) handleRegistryInit(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var empty struct{}
	if err := payload(call, &empty); err != nil {
		return nil, err
	}
	st, err := s.node.RegistryInit(r.Context(), call.signer)
	if err != nil {
		return nil, err
	}
	return registryResult(s.node.Program(), st)
}

// handleRegistryUpdate replaces every registry field. All six values are
// required so a partial payload cannot silently zero a fee.
func (s *Server) handleRegistryUpdate(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p registryUpdateParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	owner, err := parseKey("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	recipient, err := parseKey("feeRecipient", p.FeeRecipient)
	if err != nil {
		return nil, err
	}
	if p.CreationFee == nil || p.TradingFee == nil || p.CreatorFee == nil || p.OwnerFee == nil {
		return nil, invalidParams("creationFee, tradingFee, creatorFee and ownerFee are required")
	}
	st, err := s.node.RegistryUpdate(r.Context(), call.signer, mainstate.UpdateInput{
		Owner:        owner,
		FeeRecipient: recipient,
		CreationFee:  uint64(*p.CreationFee),
		TradingFee:   *p.TradingFee,
		CreatorFee:   *p.CreatorFee,
		OwnerFee:     *p.OwnerFee,
	})
	if err != nil {
		return nil, err
	}
	return registryResult(s.node.Program(), st)
}

func (s *Server) handleRegistryGet(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var empty struct{}
	if err := params(req, &empty); err != nil {
		return nil, err
	}
	st, err := s.node.Registry()
	if err != nil {
		return nil, err
	}
	return registryResult(s.node.Program(), st)
}
