package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"memepod/core"
	podErrors "memepod/core/errors"
	"memepod/crypto"
	"memepod/indexer"
	"memepod/native/token"
	"memepod/storage"
)

var testProgram = solana.MustPublicKeyFromBase58("5EFN2ja837Uk3setSnu99JvSfx8H8sNWKx3Hndm3XeKb")

var testOperatorSecret = []byte("rpc-test-secret")

type testEnv struct {
	t      *testing.T
	server *Server
	idx    *indexer.Indexer
	nonce  uint64
	token  string
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), testProgram)
	require.NoError(t, err)
	idx, err := indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	node.SetIndexer(idx)

	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
		cfg.Burst = 1000
	}
	if cfg.NoncePersistence == nil {
		cfg.NoncePersistence = idx
	}
	if cfg.OperatorSecret == nil {
		cfg.OperatorSecret = testOperatorSecret
		cfg.OperatorIssuer = "rpc-tests"
	}
	srv, err := NewServer(node, cfg, nil)
	require.NoError(t, err)
	token, err := IssueOperatorToken(testOperatorSecret, "rpc-tests", "tester", time.Hour, time.Now())
	require.NoError(t, err)
	return &testEnv{t: t, server: srv, idx: idx, nonce: uint64(time.Now().UnixNano()), token: token}
}

func (e *testEnv) post(body []byte, bearer string) (*httptest.ResponseRecorder, RPCResponse) {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (e *testEnv) envelopeBody(key solana.PrivateKey, method string, payload interface{}, nonce uint64) []byte {
	e.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(e.t, err)
	sig, err := crypto.SignEnvelope(key, testProgram, method, nonce, raw)
	require.NoError(e.t, err)
	env := Envelope{Payload: raw, Signer: key.PublicKey().String(), Nonce: nonce, Signature: sig.String()}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": method, "params": []interface{}{env},
	})
	require.NoError(e.t, err)
	return body
}

// freshNonce returns a nonce taken from the wall clock, strictly increasing
// within the env.
func (e *testEnv) freshNonce() uint64 {
	e.nonce++
	if now := uint64(time.Now().UnixNano()); now > e.nonce {
		e.nonce = now
	}
	return e.nonce
}

// signed sends a fresh envelope and decodes the result into out.
func (e *testEnv) signed(key solana.PrivateKey, method string, payload interface{}, out interface{}) *RPCError {
	e.t.Helper()
	_, resp := e.post(e.envelopeBody(key, method, payload, e.freshNonce()), e.token)
	return decodeResult(e.t, resp, out)
}

func (e *testEnv) call(method string, param interface{}, out interface{}) *RPCError {
	e.t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": method, "params": []interface{}{param},
	})
	require.NoError(e.t, err)
	_, resp := e.post(body, "")
	return decodeResult(e.t, resp, out)
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) *RPCError {
	t.Helper()
	if resp.Error != nil {
		return resp.Error
	}
	if out != nil {
		raw, err := json.Marshal(resp.Result)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return nil
}

func mustKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestPodLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	owner, creator, buyer := mustKey(t), mustKey(t), mustKey(t)
	mint := solana.NewWallet().PublicKey()

	require.Nil(t, env.signed(owner, "mainstate_init", map[string]string{}, nil))
	require.Nil(t, env.signed(creator, "token_registerMint", map[string]interface{}{"mint": mint.String(), "decimals": 6}, nil))
	require.Nil(t, env.signed(creator, "token_mintTo", map[string]interface{}{
		"mint": mint.String(), "owner": creator.PublicKey().String(), "amount": "1000000000",
	}, nil))
	require.Nil(t, env.signed(creator, "token_airdrop", map[string]interface{}{
		"owner": creator.PublicKey().String(), "lamports": "200000000",
	}, nil))
	require.Nil(t, env.signed(creator, "token_airdrop", map[string]interface{}{
		"owner": buyer.PublicKey().String(), "lamports": "1000",
	}, nil))

	var created PodResult
	require.Nil(t, env.signed(creator, "pod_create", map[string]interface{}{
		"baseAsset":    mint.String(),
		"podName":      "launch",
		"tokenName":    "Meme",
		"tokenSymbol":  "MEME",
		"baseAmount":   "1000000000",
		"tokenPrice":   "2000000000",
		"tokenDecimal": 6,
	}, &created))
	require.True(t, created.IsActive)
	require.Equal(t, token.NativeMint.String(), created.QuoteAsset)

	var quote QuoteResult
	require.Nil(t, env.call("pod_quoteBuy", map[string]interface{}{"pod": created.Address, "quoteAmount": "1000"}, &quote))
	require.Equal(t, Uint64(1_998), quote.OutputAmount)
	require.Equal(t, Uint64(1_998), quote.Pod.BoughtAmount)

	var bought PurchaseResult
	require.Nil(t, env.signed(buyer, "pod_buy", map[string]interface{}{"pod": created.Address, "quoteAmount": "1000"}, &bought))
	require.Equal(t, quote.PurchaseResult, bought)

	var balance BalanceResult
	require.Nil(t, env.call("token_balance", map[string]string{"owner": buyer.PublicKey().String(), "mint": mint.String()}, &balance))
	require.Equal(t, Uint64(1_998), balance.Balance)

	var fetched PodResult
	require.Nil(t, env.call("pod_get", map[string]string{"owner": creator.PublicKey().String(), "baseAsset": mint.String()}, &fetched))
	require.Equal(t, Uint64(1_998), fetched.BoughtAmount)
	require.Equal(t, created.Address, fetched.Address)

	var vaults VaultsResult
	require.Nil(t, env.call("pod_vaults", map[string]string{"pod": created.Address}, &vaults))
	require.Equal(t, created.Address, vaults.Authority)
	require.Equal(t, Uint64(1_000_000_000-1_998), vaults.BaseBalance)
	require.Equal(t, Uint64(1_000), vaults.QuoteBalance)

	var events []EventResult
	require.Nil(t, env.call("pod_events", map[string]string{"pod": created.Address}, &events))
	require.Len(t, events, 2)
	require.Equal(t, "pod.create", events[0].Type)
	require.Equal(t, "pod.buy", events[1].Type)

	var closed PodResult
	require.Nil(t, env.signed(creator, "pod_close", map[string]string{"pod": created.Address}, &closed))
	require.False(t, closed.IsActive)

	rpcErr := env.signed(buyer, "pod_buy", map[string]interface{}{"pod": created.Address, "quoteAmount": "10"}, nil)
	require.NotNil(t, rpcErr)
	_, code, _ := podErrors.Kind(podErrors.ErrNotActive)
	require.Equal(t, code, rpcErr.Code)
	require.Equal(t, "NotActive", rpcErr.Message)
}

func TestDomainErrorCodes(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	creator := mustKey(t)

	rpcErr := env.signed(creator, "pod_create", map[string]interface{}{"baseAsset": solana.NewWallet().PublicKey().String()}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, podErrors.CodeOffset, rpcErr.Code)
	require.Equal(t, "Uninitialized", rpcErr.Message)

	owner, other := mustKey(t), mustKey(t)
	require.Nil(t, env.signed(owner, "mainstate_init", map[string]string{}, nil))
	rpcErr = env.signed(other, "mainstate_update", map[string]interface{}{
		"owner": other.PublicKey().String(), "feeRecipient": other.PublicKey().String(),
		"creationFee": "1", "tradingFee": 1, "creatorFee": 1, "ownerFee": 1,
	}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, "Unauthorised", rpcErr.Message)

	rpcErr = env.signed(owner, "mainstate_update", map[string]interface{}{"owner": owner.PublicKey().String()}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	rpcErr = env.signed(owner, "mainstate_update", map[string]interface{}{
		"owner": owner.PublicKey().String(), "feeRecipient": "11111111111111111111111111111111",
		"creationFee": "1", "tradingFee": 1, "creatorFee": 1, "ownerFee": 1,
	}, nil)
	require.NotNil(t, rpcErr)
	_, unauthorised, _ := podErrors.Kind(podErrors.ErrUnauthorised)
	require.Equal(t, unauthorised, rpcErr.Code)
	require.Equal(t, "Unauthorised", rpcErr.Message)
	require.Contains(t, rpcErr.Data, "zero key")

	var registry RegistryResult
	require.Nil(t, env.call("mainstate_get", map[string]string{}, &registry))
	require.Equal(t, owner.PublicKey().String(), registry.FeeRecipient)
}

func TestEnvelopeReplayAndSignature(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	owner := mustKey(t)

	body := env.envelopeBody(owner, "mainstate_init", map[string]string{}, env.freshNonce())
	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	rec, resp = env.post(body, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeReplay, resp.Error.Code)

	// The envelope is bound to its method name.
	tampered := bytes.Replace(env.envelopeBody(owner, "mainstate_init", map[string]string{}, env.freshNonce()), []byte(`"mainstate_init"`), []byte(`"pod_close"`), 1)
	rec, resp = env.post(tampered, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestEnvelopeBoundToProgram(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	owner := mustKey(t)
	nonce := env.freshNonce()
	raw := []byte(`{}`)
	sig, err := crypto.SignEnvelope(owner, solana.SolMint, "mainstate_init", nonce, raw)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": "mainstate_init",
		"params": []interface{}{Envelope{Payload: raw, Signer: owner.PublicKey().String(), Nonce: nonce, Signature: sig.String()}},
	})
	require.NoError(t, err)

	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

// pinClock fixes the server clock and returns a setter to move it.
func pinClock(env *testEnv, start time.Time) func(time.Time) {
	var mu sync.Mutex
	now := start
	env.server.nowFn = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return func(next time.Time) {
		mu.Lock()
		now = next
		mu.Unlock()
	}
}

func TestEnvelopeReplayAfterWindowRejected(t *testing.T) {
	const ttl = time.Minute
	env := newTestEnv(t, ServerConfig{NonceTTL: ttl})
	creator, buyer := mustKey(t), mustKey(t)
	start := time.Now()
	setClock := pinClock(env, start)
	env.nonce = uint64(start.UnixNano())

	mint := solana.NewWallet().PublicKey()
	require.Nil(t, env.signed(creator, "mainstate_init", map[string]string{}, nil))
	require.Nil(t, env.signed(creator, "token_registerMint", map[string]interface{}{"mint": mint.String(), "decimals": 6}, nil))
	require.Nil(t, env.signed(creator, "token_mintTo", map[string]interface{}{
		"mint": mint.String(), "owner": creator.PublicKey().String(), "amount": "1000000000",
	}, nil))
	require.Nil(t, env.signed(creator, "token_airdrop", map[string]interface{}{
		"owner": creator.PublicKey().String(), "lamports": "200000000",
	}, nil))
	require.Nil(t, env.signed(creator, "token_airdrop", map[string]interface{}{
		"owner": buyer.PublicKey().String(), "lamports": "10000",
	}, nil))
	var created PodResult
	require.Nil(t, env.signed(creator, "pod_create", map[string]interface{}{
		"baseAsset": mint.String(), "podName": "replay", "tokenName": "Meme", "tokenSymbol": "MEME",
		"baseAmount": "1000000000", "tokenPrice": "2000000000", "tokenDecimal": 6,
	}, &created))

	buy := env.envelopeBody(buyer, "pod_buy", map[string]interface{}{"pod": created.Address, "quoteAmount": "1000"}, env.freshNonce())
	rec, resp := env.post(buy, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	// Long after the in-memory entry could have aged out, the same envelope
	// is stale rather than fresh.
	setClock(start.Add(2 * ttl))
	rec, resp = env.post(buy, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeReplay, resp.Error.Code)

	var balance BalanceResult
	require.Nil(t, env.call("token_balance", map[string]string{"owner": buyer.PublicKey().String(), "mint": mint.String()}, &balance))
	require.Equal(t, Uint64(1_998), balance.Balance)
}

func TestEnvelopeNonceFromTheFutureRejected(t *testing.T) {
	env := newTestEnv(t, ServerConfig{NonceSkew: 10 * time.Second})
	start := time.Now()
	pinClock(env, start)
	owner := mustKey(t)

	body := env.envelopeBody(owner, "mainstate_init", map[string]string{}, uint64(start.Add(time.Hour).UnixNano()))
	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	body = env.envelopeBody(owner, "mainstate_init", map[string]string{}, uint64(start.Add(5*time.Second).UnixNano()))
	rec, resp = env.post(body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
}

func TestEnvelopeReplayAcrossRestart(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	owner := mustKey(t)
	body := env.envelopeBody(owner, "mainstate_init", map[string]string{}, env.freshNonce())
	rec, _ := env.post(body, "")
	require.Equal(t, http.StatusOK, rec.Code)

	restarted, err := NewServer(env.server.node, ServerConfig{
		RequestsPerSecond: 1000, Burst: 1000, NoncePersistence: env.idx,
	}, nil)
	require.NoError(t, err)
	env.server = restarted

	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeReplay, resp.Error.Code)
}

func TestNonceWindowCapacity(t *testing.T) {
	env := newTestEnv(t, ServerConfig{NonceCapacity: 2})
	start := time.Now()
	setClock := pinClock(env, start)
	key := mustKey(t)
	env.nonce = uint64(start.UnixNano())

	airdrop := map[string]interface{}{"owner": key.PublicKey().String(), "lamports": "1"}
	require.Nil(t, env.signed(key, "token_airdrop", airdrop, nil))
	require.Nil(t, env.signed(key, "token_airdrop", airdrop, nil))

	rec, resp := env.post(env.envelopeBody(key, "token_airdrop", airdrop, env.freshNonce()), env.token)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
	require.Equal(t, 2, env.server.nonces.size())

	// Once the window has passed, the held nonces are released.
	later := start.Add(defaultNonceWindow + defaultNonceSkew + time.Second)
	setClock(later)
	env.nonce = uint64(later.UnixNano())
	require.Nil(t, env.signed(key, "token_airdrop", airdrop, nil))
	require.Equal(t, 1, env.server.nonces.size())
}

func TestOperatorMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	key := mustKey(t)
	body := env.envelopeBody(key, "token_airdrop", map[string]interface{}{"owner": key.PublicKey().String(), "lamports": "5"}, env.freshNonce())
	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	forged, err := IssueOperatorToken([]byte("other-secret"), "rpc-tests", "tester", time.Hour, time.Now())
	require.NoError(t, err)
	rec, _ = env.post(body, forged)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := IssueOperatorToken(testOperatorSecret, "rpc-tests", "tester", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	rec, _ = env.post(body, expired)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = env.post(body, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
}

func TestRateLimitPerSource(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RequestsPerSecond: 0.001, Burst: 2})
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"mainstate_get","params":[]}`)
	for i := 0; i < 2; i++ {
		rec, _ := env.post(body, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := env.post(body, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestUnknownMethodAndParams(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec, resp := env.post([]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_call"}`), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	rpcErr := env.call("pod_get", map[string]string{"owner": "nope", "baseAsset": "nope"}, nil)
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	rpcErr = env.call("token_balance", map[string]string{"owner": solana.NewWallet().PublicKey().String(), "extra": "x"}, nil)
	require.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestClientSourceHonoursTrustedProxies(t *testing.T) {
	env := newTestEnv(t, ServerConfig{TrustProxyHeaders: true, TrustedProxies: []string{"10.0.0.1"}})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "203.0.113.9", env.server.clientSource(req))

	req.RemoteAddr = "198.51.100.4:1234"
	require.Equal(t, "198.51.100.4", env.server.clientSource(req))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
