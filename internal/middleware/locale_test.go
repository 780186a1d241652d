package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveLocale(t *testing.T, configure func(r *http.Request)) string {
	t.Helper()
	var got string
	handler := Locale("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	configure(req)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestLocaleFromHeader(t *testing.T) {
	got := resolveLocale(t, func(r *http.Request) {
		r.Header.Set("X-Locale", "id")
	})
	if got != "id" {
		t.Fatalf("locale = %q, want id", got)
	}
}

func TestLocaleFromAcceptLanguage(t *testing.T) {
	got := resolveLocale(t, func(r *http.Request) {
		r.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.8")
	})
	if got != "id" {
		t.Fatalf("locale = %q, want id", got)
	}
}

func TestLocaleUnsupportedFallsBackToNearestMatch(t *testing.T) {
	// Portuguese is unsupported; the matcher picks the closest supported tag.
	got := resolveLocale(t, func(r *http.Request) {
		r.Header.Set("X-Locale", "pt-BR")
	})
	if got != "en" && got != "id" {
		t.Fatalf("locale = %q, want a supported locale", got)
	}
}

func TestLocaleDefault(t *testing.T) {
	got := resolveLocale(t, func(r *http.Request) {})
	if got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4411"
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("ip = %q, want 203.0.113.7", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	if got := ClientIP(req); got != "198.51.100.9" {
		t.Fatalf("ip = %q, want forwarded address", got)
	}
}
