package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces sensitive values in log lines.
const RedactedValue = "[REDACTED]"

// safeKeys may be logged verbatim. Everything else passed through MaskField is
// replaced.
var safeKeys = map[string]struct{}{
	"method":  {},
	"event":   {},
	"pod":     {},
	"signer":  {},
	"source":  {},
	"backend": {},
	"addr":    {},
	"network": {},
	"program": {},
}

// IsSafeKey reports whether values logged under key are left unmasked.
func IsSafeKey(key string) bool {
	_, ok := safeKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute that hides value unless key is safe or the
// value is empty.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsSafeKey(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN logs a database DSN with any password removed. Values that do not
// parse as URLs with credentials are logged unchanged.
func MaskDSN(key, dsn string) slog.Attr {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return slog.String(key, dsn)
	}
	return slog.String(key, u.Redacted())
}
