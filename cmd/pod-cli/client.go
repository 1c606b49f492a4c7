package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"memepod/config"
	"memepod/crypto"
	"memepod/rpc"
)

const defaultRPCEndpoint = "http://127.0.0.1:8545"

// rpcEndpointFromEnv returns MEMEPOD_RPC_URL or the local default.
func rpcEndpointFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("MEMEPOD_RPC_URL")); v != "" {
		return v
	}
	return defaultRPCEndpoint
}

// programFromEnv returns MEMEPOD_PROGRAM_ID or the default program id.
func programFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("MEMEPOD_PROGRAM_ID")); v != "" {
		return v
	}
	return config.DefaultProgramID
}

// NodeError is a JSON-RPC error returned by the node.
type NodeError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *NodeError) Error() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("error from node (%d): %s %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("error from node (%d): %s", e.Code, e.Message)
}

type client struct {
	endpoint      string
	program       string
	operatorToken string
	http          *http.Client

	mu        sync.Mutex
	lastNonce uint64
	nowFn     func() time.Time
}

func newClient(endpoint, program, operatorToken string) *client {
	return &client{
		endpoint:      strings.TrimSpace(endpoint),
		program:       strings.TrimSpace(program),
		operatorToken: strings.TrimSpace(operatorToken),
		http:          &http.Client{Timeout: 30 * time.Second},
		nowFn:         time.Now,
	}
}

// nextNonce is derived from wall-clock nanoseconds and never repeats within
// one process. The node only admits nonces close to its own clock.
func (c *client) nextNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := uint64(c.nowFn().UnixNano())
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// call sends an unsigned request with a single parameter object.
func (c *client) call(ctx context.Context, method string, param interface{}, out interface{}) error {
	params := []interface{}{}
	if param != nil {
		params = append(params, param)
	}
	return c.do(ctx, method, params, false, out)
}

// signed wraps payload in an envelope signed by key and sends it.
func (c *client) signed(ctx context.Context, key solana.PrivateKey, method string, payload interface{}, operator bool, out interface{}) error {
	program, err := solana.PublicKeyFromBase58(c.program)
	if err != nil {
		return fmt.Errorf("invalid program id %q: %w", c.program, err)
	}
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	nonce := c.nextNonce()
	sig, err := crypto.SignEnvelope(key, program, method, nonce, raw)
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	env := rpc.Envelope{
		Payload:   raw,
		Signer:    key.PublicKey().String(),
		Nonce:     nonce,
		Signature: sig.String(),
	}
	return c.do(ctx, method, []interface{}{env}, operator, out)
}

func (c *client) do(ctx context.Context, method string, params []interface{}, operator bool, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if operator {
		if c.operatorToken == "" {
			return errors.New("operator call requires --operator-token or MEMEPOD_OPERATOR_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+c.operatorToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int             `json:"code"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response from node (status %d)", resp.StatusCode)
	}
	if rpcResp.Error != nil {
		return &NodeError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message, Data: rpcResp.Error.Data}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
