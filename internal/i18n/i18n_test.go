package i18n

import (
	"strings"
	"testing"
)

func TestGet_Placeholders(t *testing.T) {
	got := Get("en", "start", "free_requests", "3")
	if !strings.Contains(got, "3 free request") {
		t.Fatalf("placeholder not substituted: %q", got)
	}
}

func TestGet_FallsBackToEnglish(t *testing.T) {
	// unknown locale
	if got := Get("xx", "processing"); got != Get("en", "processing") {
		t.Fatalf("expected english fallback, got %q", got)
	}
	// unknown key returns the key so a missing string is visible in logs
	if got := Get("en", "no_such_key"); got != "no_such_key" {
		t.Fatalf("expected key echo for missing entry, got %q", got)
	}
}

func TestCatalogsCoverEnglishKeys(t *testing.T) {
	for locale, catalog := range messages {
		if locale == "en" {
			continue
		}
		for key := range messages["en"] {
			if _, ok := catalog[key]; !ok {
				t.Errorf("locale %s is missing key %s", locale, key)
			}
		}
	}
}

func TestLanguageOrderMatchesLanguages(t *testing.T) {
	if len(LanguageOrder) != len(Languages) {
		t.Fatalf("order has %d entries, map has %d", len(LanguageOrder), len(Languages))
	}
	for _, code := range LanguageOrder {
		if _, ok := Languages[code]; !ok {
			t.Errorf("ordered code %s has no display name", code)
		}
	}
	if LanguageName("zz") != "zz" {
		t.Fatalf("unknown codes should fall back to themselves")
	}
}
