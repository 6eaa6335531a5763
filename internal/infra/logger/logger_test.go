package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"243812345678":  "243***5678",
		"+243812345678": "+243***5678",
		"12345":         "***2345",
		"123":           "***",
		"":              "",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIdentifier(t *testing.T) {
	if got := MaskIdentifier("john.doe@example.com"); got != "joh***@example.com" {
		t.Fatalf("unexpected email mask %q", got)
	}
	if got := MaskIdentifier("243991234567"); got != "243***4567" {
		t.Fatalf("unexpected phone mask %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.*.*" {
		t.Fatalf("unexpected ipv4 mask %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected ipv6 mask %q", got)
	}
}

func TestWithContextWithoutInitialisedLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if WithContext(ctx) == nil {
		t.Fatal("expected a logger")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"jean.mukendi@example.cd": "jea***@example.cd",
		"jo@example.cd":           "jo***@example.cd",
		"élodie@example.cd":       "élo***@example.cd",
		"@example.cd":             "***@example.cd",
		"no-at-sign":              "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithContextTagsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-42")
	WithContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Fatalf("request_id = %v", got)
	}
}
