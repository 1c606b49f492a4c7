package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, Options{Service: "podd", Env: "test", Level: "debug"})
	logger.Debug("pod created", slog.String("pod", "abc"), MaskField("jwtSecret", "hunter2"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["message"] != "pod created" || line["severity"] != "DEBUG" {
		t.Fatalf("unexpected renamed keys: %v", line)
	}
	if line["service"] != "podd" || line["env"] != "test" {
		t.Fatalf("missing service attrs: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", line)
	}
	if line["pod"] != "abc" {
		t.Fatalf("allowlisted field masked: %v", line["pod"])
	}
	if line["jwtSecret"] != RedactedValue {
		t.Fatalf("secret not masked: %v", line["jwtSecret"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://pod:s3cret@db:5432/events": "postgres://pod:xxxxx@db:5432/events",
		"file:./data/events.db":                "file:./data/events.db",
		"postgres://db:5432/events":            "postgres://db:5432/events",
	}
	for in, want := range cases {
		attr := MaskDSN("indexer", in)
		if attr.Value.String() != want {
			t.Fatalf("MaskDSN(%q) = %q, want %q", in, attr.Value.String(), want)
		}
	}
	if got := MaskField("signer", "abc").Value.String(); got != "abc" {
		t.Fatalf("safe key masked: %s", got)
	}
	if got := MaskField("authorization", "Bearer x").Value.String(); got != RedactedValue {
		t.Fatalf("authorization not masked: %s", got)
	}
}
