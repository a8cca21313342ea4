package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Translator resolves message keys for a locale. It is injected into the
// HTTP layer rather than held as process-wide state.
type Translator interface {
	Translate(key, locale string, substitutions map[string]string) string
	SupportedLocale(acceptLanguage string) string
}

// Catalog is a Translator backed by JSON locale files. Each file maps
// dotted keys through nested objects, e.g. {"errors": {"user_exists": "..."}}.
type Catalog struct {
	fallback string
	locales  map[string]map[string]any
}

// Load reads every <locale>.json file from dir.
func Load(dir, fallback string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	locales := make(map[string]map[string]any)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		var messages map[string]any
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		locales[strings.TrimSuffix(name, ".json")] = messages
	}
	if fallback == "" {
		fallback = "en"
	}
	if _, ok := locales[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q not found in %s", fallback, dir)
	}
	return &Catalog{fallback: fallback, locales: locales}, nil
}

// SupportedLocale picks the locale for an Accept-Language value, falling
// back when the language is unknown.
func (c *Catalog) SupportedLocale(acceptLanguage string) string {
	lang := strings.ToLower(strings.TrimSpace(acceptLanguage))
	if len(lang) > 2 {
		lang = lang[:2]
	}
	if _, ok := c.locales[lang]; ok {
		return lang
	}
	return c.fallback
}

// Translate resolves a dotted key, substituting {placeholders}. Unknown
// keys come back unchanged so the caller still has something to show.
func (c *Catalog) Translate(key, locale string, substitutions map[string]string) string {
	messages, ok := c.locales[locale]
	if !ok {
		messages = c.locales[c.fallback]
	}
	value := lookup(messages, key)
	if value == "" {
		if fallback := lookup(c.locales[c.fallback], key); fallback != "" {
			value = fallback
		} else {
			return key
		}
	}
	for name, replacement := range substitutions {
		value = strings.ReplaceAll(value, "{"+name+"}", replacement)
	}
	return value
}

func lookup(messages map[string]any, key string) string {
	parts := strings.Split(key, ".")
	var current any = messages
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = node[part]
	}
	text, _ := current.(string)
	return text
}
