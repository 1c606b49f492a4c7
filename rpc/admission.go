package rpc

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"memepod/crypto"
)

// Envelope authorises a state-changing call. Signature is the signer's
// ed25519 signature over "program\nmethod\nnonce\npayload" with payload taken
// verbatim. Nonce is the signer's clock in unix nanoseconds.
type Envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Signer    string          `json:"signer"`
	Nonce     uint64          `json:"nonce"`
	Signature string          `json:"signature"`
}

// signedCall is a verified envelope.
type signedCall struct {
	signer  solana.PublicKey
	nonce   uint64
	payload json.RawMessage
}

func decodeEnvelope(program solana.PublicKey, method string, raw json.RawMessage) (*signedCall, error) {
	var env Envelope
	if err := strictDecode(raw, &env); err != nil {
		return nil, invalidParams("invalid envelope: %v", err)
	}
	if len(env.Payload) == 0 {
		return nil, invalidParams("envelope payload required")
	}
	if env.Nonce == 0 {
		return nil, invalidParams("envelope nonce must be greater than zero")
	}
	signer, err := parseKey("signer", env.Signer)
	if err != nil {
		return nil, err
	}
	if signer.IsZero() {
		return nil, invalidParams("signer must not be the zero key")
	}
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(env.Signature))
	if err != nil {
		return nil, invalidParams("invalid signature encoding")
	}
	if err := crypto.VerifyEnvelope(signer, program, method, env.Nonce, env.Payload, sig); err != nil {
		return nil, err
	}
	return &signedCall{signer: signer, nonce: env.Nonce, payload: env.Payload}, nil
}

// operatorAuth validates HS256 bearer tokens for operator methods.
type operatorAuth struct {
	secret []byte
	issuer string
	skew   time.Duration
}

func (a *operatorAuth) authorize(r *http.Request) error {
	if a == nil || len(a.secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "operator authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.skew),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid operator token"}
	}
	return nil
}

// IssueOperatorToken signs an operator token valid for ttl.
func IssueOperatorToken(secret []byte, issuer, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("operator secret required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// sourceLimiter applies a token bucket per client address.
type sourceLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	idleTTL  time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSourceLimiter(perSecond float64, burst int) *sourceLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &sourceLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		idleTTL:  5 * time.Minute,
	}
}

func (l *sourceLimiter) allow(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, id)
		}
	}
	v, ok := l.visitors[source]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// clientSource resolves the caller address. Forwarding headers are honoured
// only when the direct peer is a trusted proxy.
func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.cfg.TrustProxyHeaders || !s.isTrustedProxy(host) {
		return host
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	return host
}

func (s *Server) isTrustedProxy(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, proxy := range s.cfg.TrustedProxies {
		if trusted := net.ParseIP(strings.TrimSpace(proxy)); trusted != nil && trusted.Equal(ip) {
			return true
		}
	}
	return false
}

func strictDecode(raw json.RawMessage, out interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
