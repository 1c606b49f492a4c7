package passphrase

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSourcePrefersEnv(t *testing.T) {
	t.Setenv("MEMEPOD_TEST_PASS", "from-env")
	src := NewSource("MEMEPOD_TEST_PASS", "user")
	src.prompt = func(string) (string, error) {
		t.Fatalf("prompt should not run")
		return "", nil
	}
	got, err := src.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}
}

func TestSourceRejectsEmptyEnv(t *testing.T) {
	t.Setenv("MEMEPOD_TEST_PASS", "  ")
	if _, err := NewSource("MEMEPOD_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected empty env error")
	}
}

func TestSourcePromptsOnce(t *testing.T) {
	calls := 0
	src := NewSource("", "operator")
	src.prompt = func(label string) (string, error) {
		calls++
		if label != "operator" {
			t.Fatalf("unexpected label %q", label)
		}
		return "typed", nil
	}
	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil || got != "typed" {
			t.Fatalf("unexpected passphrase %q err=%v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("prompt ran %d times", calls)
	}
}

func TestSourcePromptFailureMentionsEnv(t *testing.T) {
	src := NewSource("MEMEPOD_UNSET_PASS", "")
	src.prompt = func(string) (string, error) { return "", errors.New("no terminal") }
	_, err := src.Get()
	if err == nil || !strings.Contains(err.Error(), "MEMEPOD_UNSET_PASS") {
		t.Fatalf("expected env hint, got %v", err)
	}
}

func TestReadPasswordWritesPrompt(t *testing.T) {
	var out bytes.Buffer
	got, err := readPassword(&out, "user", func() ([]byte, error) { return []byte("pw"), nil })
	if err != nil || got != "pw" {
		t.Fatalf("unexpected %q err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Enter user passphrase") {
		t.Fatalf("unexpected prompt %q", out.String())
	}
}
