package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	handle, err := fs.Store(ctx, 12, "march.pdf", strings.NewReader("invoice-bytes"), 13, "application/pdf")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !strings.Contains(handle, "12") || !strings.HasSuffix(handle, "_march.pdf") {
		t.Fatalf("unexpected handle: %q", handle)
	}

	path, err := fs.PresignGet(ctx, handle, time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "invoice-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := fs.Delete(ctx, handle); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.PresignGet(ctx, handle, time.Minute); err == nil {
		t.Fatalf("expected presign to fail after delete")
	}
	// Deleting twice is fine.
	if err := fs.Delete(ctx, handle); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":         "report.pdf",
		"../../etc/passwd":   "passwd",
		"dir\\evil.exe":      "evil.exe",
		"  spaced.pdf  ":     "spaced.pdf",
		"":                   "invoice",
		"/":                  "invoice",
		"nested/path/a.pdf":  "a.pdf",
	}
	for in, want := range cases {
		if got := SafeFilename(in); got != want {
			t.Fatalf("SafeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
