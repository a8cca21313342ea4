package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLocale(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write locale: %v", err)
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	writeLocale(t, dir, "en.json", `{"errors":{"user_exists":"Username {name} is taken","forbidden":"Not enough permissions"}}`)
	writeLocale(t, dir, "pl.json", `{"errors":{"user_exists":"Nazwa {name} jest zajęta"}}`)
	catalog, err := Load(dir, "en")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return catalog
}

func TestTranslate(t *testing.T) {
	catalog := testCatalog(t)
	got := catalog.Translate("errors.user_exists", "pl", map[string]string{"name": "anna"})
	if got != "Nazwa anna jest zajęta" {
		t.Fatalf("unexpected translation: %q", got)
	}
	got = catalog.Translate("errors.user_exists", "en", map[string]string{"name": "anna"})
	if got != "Username anna is taken" {
		t.Fatalf("unexpected translation: %q", got)
	}
}

func TestTranslateFallsBack(t *testing.T) {
	catalog := testCatalog(t)
	// Key missing from pl falls back to en.
	if got := catalog.Translate("errors.forbidden", "pl", nil); got != "Not enough permissions" {
		t.Fatalf("expected fallback translation, got %q", got)
	}
	// Unknown locale falls back entirely.
	if got := catalog.Translate("errors.forbidden", "de", nil); got != "Not enough permissions" {
		t.Fatalf("expected fallback locale, got %q", got)
	}
	// Unknown key comes back unchanged.
	if got := catalog.Translate("errors.bogus", "en", nil); got != "errors.bogus" {
		t.Fatalf("expected key passthrough, got %q", got)
	}
}

func TestSupportedLocale(t *testing.T) {
	catalog := testCatalog(t)
	cases := map[string]string{
		"pl":                  "pl",
		"pl-PL,pl;q=0.9":      "pl",
		"en-US,en;q=0.5":      "en",
		"de-DE":               "en",
		"":                    "en",
	}
	for header, want := range cases {
		if got := catalog.SupportedLocale(header); got != want {
			t.Fatalf("SupportedLocale(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestLoadRequiresFallback(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "pl.json", `{}`)
	if _, err := Load(dir, "en"); err == nil {
		t.Fatalf("expected missing fallback locale to fail")
	}
}
