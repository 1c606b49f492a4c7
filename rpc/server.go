package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memepod/core"
	"memepod/observability"
	"memepod/observability/logging"
)

// ServerConfig carries the transport settings resolved from the node config.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	TrustedProxies    []string
	TrustProxyHeaders bool
	TLSCertFile       string
	TLSKeyFile        string

	// NonceTTL bounds how old an envelope nonce may be, NonceSkew how far
	// ahead of the node clock. NonceCapacity caps the in-memory window.
	NonceTTL          time.Duration
	NonceSkew         time.Duration
	NonceCapacity     int
	NoncePersistence  NoncePersistence
	RequestsPerSecond float64
	Burst             int

	OperatorSecret []byte
	OperatorIssuer string
}

type handlerFunc func(r *http.Request, req *RPCRequest, call *signedCall) (interface{}, error)

type methodSpec struct {
	handler handlerFunc
	// signed methods change state and require an envelope.
	signed bool
	// operator methods additionally require a bearer token.
	operator bool
}

type Server struct {
	node   *core.Node
	cfg    ServerConfig
	logger *slog.Logger

	methods  map[string]methodSpec
	nonces   *nonceGuard
	limiter  *sourceLimiter
	operator *operatorAuth
	hub      *Hub

	httpServer *http.Server
	nowFn      func() time.Time
}

// NewServer wires the RPC surface for node and registers the websocket hub as
// an event sink.
func NewServer(node *core.Node, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:     node,
		cfg:      cfg,
		logger:   logger,
		nonces:   newNonceGuard(cfg.NonceTTL, cfg.NonceSkew, cfg.NonceCapacity, cfg.NoncePersistence),
		limiter:  newSourceLimiter(cfg.RequestsPerSecond, cfg.Burst),
		operator: &operatorAuth{secret: cfg.OperatorSecret, issuer: cfg.OperatorIssuer, skew: 30 * time.Second},
		hub:      NewHub(logger),
		nowFn:    time.Now,
	}
	s.methods = map[string]methodSpec{
		"mainstate_init":     {handler: s.handleRegistryInit, signed: true},
		"mainstate_update":   {handler: s.handleRegistryUpdate, signed: true},
		"mainstate_get":      {handler: s.handleRegistryGet},
		"pod_create":         {handler: s.handlePodCreate, signed: true},
		"pod_buy":            {handler: s.handlePodBuy, signed: true},
		"pod_edit":           {handler: s.handlePodEdit, signed: true},
		"pod_withdraw":       {handler: s.handlePodWithdraw, signed: true},
		"pod_close":          {handler: s.handlePodClose, signed: true},
		"pod_get":            {handler: s.handlePodGet},
		"pod_list":           {handler: s.handlePodList},
		"pod_quoteBuy":       {handler: s.handlePodQuoteBuy},
		"pod_vaults":         {handler: s.handlePodVaults},
		"pod_events":         {handler: s.handlePodEvents},
		"token_registerMint": {handler: s.handleTokenRegisterMint, signed: true, operator: true},
		"token_mintTo":       {handler: s.handleTokenMintTo, signed: true, operator: true},
		"token_airdrop":      {handler: s.handleTokenAirdrop, signed: true, operator: true},
		"token_balance":      {handler: s.handleTokenBalance},
	}
	node.AddSink(s.hub)
	return s, nil
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	return r
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSCertFile != "" {
			err = s.httpServer.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		errCh <- err
	}()
	s.logger.Info("json-rpc server listening", slog.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := s.nowFn()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	source := s.clientSource(r)
	if !s.limiter.allow(source, start) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", source)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	method := strings.TrimSpace(req.Method)
	spec, ok := s.methods[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", method)
		return
	}

	result, err := s.dispatch(r, req, method, spec)
	code := 0
	if err != nil {
		status, rpcErr := classify(err)
		code = rpcErr.Code
		if status >= http.StatusInternalServerError {
			s.logger.Error("rpc call failed", slog.String("method", method), slog.String("error", err.Error()))
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		writeResult(w, req.ID, result)
	}
	observability.ModuleMetrics().Observe("rpc", method, code, time.Since(start))
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest, method string, spec methodSpec) (interface{}, error) {
	if spec.operator {
		if err := s.operator.authorize(r); err != nil {
			s.logger.Warn("operator call rejected",
				slog.String("method", method),
				slog.String("source", s.clientSource(r)),
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			return nil, err
		}
	}
	if !spec.signed {
		return spec.handler(r, req, nil)
	}
	if len(req.Params) != 1 {
		return nil, invalidParams("signed envelope required")
	}
	call, err := decodeEnvelope(s.node.Program(), method, req.Params[0])
	if err != nil {
		return nil, err
	}
	if err := s.nonces.admit(r.Context(), call.signer, call.nonce, s.nowFn()); err != nil {
		return nil, err
	}
	return spec.handler(r, req, call)
}

// params decodes the single parameter object of an unsigned call. Missing
// params decode as the zero value.
func params(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	if len(req.Params) > 1 {
		return invalidParams("expected a single parameter object")
	}
	if err := strictDecode(req.Params[0], out); err != nil {
		return invalidParams("invalid parameters: %v", err)
	}
	return nil
}

func payload(call *signedCall, out interface{}) error {
	if err := strictDecode(call.payload, out); err != nil {
		return invalidParams("invalid payload: %v", err)
	}
	return nil
}
