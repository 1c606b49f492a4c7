package rpc

import (
	"net/http"
	"strings"

	"memepod/indexer"
	"memepod/native/pod"
	"memepod/native/token"
)

const maxEventsLimit = 500

type podCreateParams struct {
	BaseAsset    string `json:"baseAsset"`
	QuoteAsset   string `json:"quoteAsset,omitempty"`
	PodName      string `json:"podName"`
	TokenName    string `json:"tokenName"`
	TokenSymbol  string `json:"tokenSymbol"`
	BaseAmount   Uint64 `json:"baseAmount"`
	TokenPrice   Uint64 `json:"tokenPrice"`
	TokenDecimal uint8  `json:"tokenDecimal"`
	ExpireTime   Uint64 `json:"expireTime"`
}

type podAmountParams struct {
	PodRef
	QuoteAmount Uint64 `json:"quoteAmount"`
}

type podEditParams struct {
	PodRef
	AdditionalBase Uint64 `json:"additionalBase"`
	TokenPrice     Uint64 `json:"tokenPrice"`
}

type podWithdrawParams struct {
	PodRef
	BaseAmount  Uint64 `json:"baseAmount"`
	QuoteAmount Uint64 `json:"quoteAmount"`
}

type podEventsParams struct {
	Pod           string `json:"pod,omitempty"`
	Type          string `json:"type,omitempty"`
	Actor         string `json:"actor,omitempty"`
	AfterSequence uint64 `json:"afterSequence,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// resolve turns a reference into a pod identity. Address lookups must hit a
// stored pod; identity references are taken as given.
func (s *Server) resolve(ref PodRef) (pod.ID, error) {
	if strings.TrimSpace(ref.Pod) != "" {
		if ref.Owner != "" || ref.BaseAsset != "" {
			return pod.ID{}, invalidParams("provide either pod or owner/baseAsset, not both")
		}
		addr, err := parseKey("pod", ref.Pod)
		if err != nil {
			return pod.ID{}, err
		}
		p, err := s.node.PodGetByAddress(addr)
		if err != nil {
			return pod.ID{}, err
		}
		return p.ID(), nil
	}
	owner, err := parseKey("owner", ref.Owner)
	if err != nil {
		return pod.ID{}, err
	}
	base, err := parseKey("baseAsset", ref.BaseAsset)
	if err != nil {
		return pod.ID{}, err
	}
	quote, err := parseOptionalKey("quoteAsset", ref.QuoteAsset, token.NativeMint)
	if err != nil {
		return pod.ID{}, err
	}
	return pod.ID{Owner: owner, BaseAsset: base, QuoteAsset: quote}, nil
}

func (s *Server) handlePodCreate(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p podCreateParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	base, err := parseKey("baseAsset", p.BaseAsset)
	if err != nil {
		return nil, err
	}
	quote, err := parseOptionalKey("quoteAsset", p.QuoteAsset, token.NativeMint)
	if err != nil {
		return nil, err
	}
	created, err := s.node.PodCreate(r.Context(), call.signer, pod.CreateInput{
		BaseAsset:    base,
		QuoteAsset:   quote,
		PodName:      p.PodName,
		TokenName:    p.TokenName,
		TokenSymbol:  p.TokenSymbol,
		BaseAmount:   uint64(p.BaseAmount),
		TokenPrice:   uint64(p.TokenPrice),
		TokenDecimal: p.TokenDecimal,
		ExpireTime:   uint64(p.ExpireTime),
	})
	if err != nil {
		return nil, err
	}
	return podResult(s.node.Program(), created)
}

func (s *Server) handlePodBuy(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p podAmountParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p.PodRef)
	if err != nil {
		return nil, err
	}
	result, err := s.node.PodBuy(r.Context(), call.signer, id, uint64(p.QuoteAmount))
	if err != nil {
		return nil, err
	}
	return purchaseResult(*result), nil
}

func (s *Server) handlePodEdit(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p podEditParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p.PodRef)
	if err != nil {
		return nil, err
	}
	updated, err := s.node.PodEdit(r.Context(), call.signer, id, uint64(p.AdditionalBase), uint64(p.TokenPrice))
	if err != nil {
		return nil, err
	}
	return podResult(s.node.Program(), updated)
}

func (s *Server) handlePodWithdraw(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p podWithdrawParams
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p.PodRef)
	if err != nil {
		return nil, err
	}
	updated, err := s.node.PodWithdraw(r.Context(), call.signer, id, uint64(p.BaseAmount), uint64(p.QuoteAmount))
	if err != nil {
		return nil, err
	}
	return podResult(s.node.Program(), updated)
}

func (s *Server) handlePodClose(r *http.Request, _ *RPCRequest, call *signedCall) (interface{}, error) {
	var p PodRef
	if err := payload(call, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	closed, err := s.node.PodClose(r.Context(), call.signer, id)
	if err != nil {
		return nil, err
	}
	return podResult(s.node.Program(), closed)
}

func (s *Server) handlePodGet(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p PodRef
	if err := params(req, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	found, err := s.node.PodGet(id)
	if err != nil {
		return nil, err
	}
	return podResult(s.node.Program(), found)
}

func (s *Server) handlePodList(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var empty struct{}
	if err := params(req, &empty); err != nil {
		return nil, err
	}
	pods, err := s.node.PodList()
	if err != nil {
		return nil, err
	}
	out := make([]*PodResult, 0, len(pods))
	for _, p := range pods {
		res, err := podResult(s.node.Program(), p)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Server) handlePodQuoteBuy(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p podAmountParams
	if err := params(req, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p.PodRef)
	if err != nil {
		return nil, err
	}
	quote, err := s.node.PodQuoteBuy(id, uint64(p.QuoteAmount))
	if err != nil {
		return nil, err
	}
	simulated, err := podResult(s.node.Program(), quote.Pod)
	if err != nil {
		return nil, err
	}
	return QuoteResult{PurchaseResult: purchaseResult(quote.Purchase), Pod: simulated}, nil
}

func (s *Server) handlePodVaults(_ *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p PodRef
	if err := params(req, &p); err != nil {
		return nil, err
	}
	id, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	vaults, err := s.node.PodVaults(id)
	if err != nil {
		return nil, err
	}
	return vaultsResult(vaults), nil
}

func (s *Server) handlePodEvents(r *http.Request, req *RPCRequest, _ *signedCall) (interface{}, error) {
	var p podEventsParams
	if err := params(req, &p); err != nil {
		return nil, err
	}
	if p.Limit < 0 || p.Limit > maxEventsLimit {
		return nil, invalidParams("limit must be between 0 and %d", maxEventsLimit)
	}
	records, err := s.node.Events(r.Context(), indexer.Filter{
		Pod:           strings.TrimSpace(p.Pod),
		Type:          strings.TrimSpace(p.Type),
		Actor:         strings.TrimSpace(p.Actor),
		AfterSequence: p.AfterSequence,
		Limit:         p.Limit,
	})
	if err != nil {
		return nil, err
	}
	return eventResults(records)
}
