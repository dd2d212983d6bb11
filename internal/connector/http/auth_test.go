package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
)

func TestSanitizeCookie(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "line breaks and attributes",
			in:   "a=1\r\nb=2; Path=/; Secure",
			want: "a=1; b=2",
		},
		{
			name: "already sanitized",
			in:   "a=1; b=2",
			want: "a=1; b=2",
		},
		{
			name: "single pair",
			in:   "JSESSIONID=abc123",
			want: "JSESSIONID=abc123",
		},
		{
			name: "attribute casing",
			in:   "sid=1; HTTPONLY; max-age=300; SameSite=Lax; domain=example.com",
			want: "sid=1",
		},
		{
			name: "control characters stripped",
			in:   "a=\x01one; b=two\x7f",
			want: "a=one; b=two",
		},
		{
			name: "value containing equals",
			in:   "token=a=b=c; Path=/",
			want: "token=a=b=c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeCookie(tt.in)
			if err != nil {
				t.Fatalf("SanitizeCookie(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeCookie(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeCookie_Idempotent(t *testing.T) {
	once, err := SanitizeCookie("a=1\r\nb=2; Path=/; Secure; cloud.session.token=xyz")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := SanitizeCookie(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}

func TestSanitizeCookie_NoUsablePair(t *testing.T) {
	for _, in := range []string{"", "Path=/; Secure; HttpOnly", "Secure", ";;;", "\r\n"} {
		if _, err := SanitizeCookie(in); !errors.Is(err, ErrInvalidCredentialFormat) {
			t.Errorf("SanitizeCookie(%q): err = %v, want ErrInvalidCredentialFormat", in, err)
		}
	}
}

func TestCredentialAuth_Apply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.invalid", nil)
	CredentialAuth{Username: "dev@example.com", Token: "tok"}.Apply(req)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("dev@example.com:tok"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestBearerToken_Apply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.invalid", nil)
	BearerToken{Token: "abc"}.Apply(req)
	if got := req.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestCookieAuth_Apply(t *testing.T) {
	auth, err := NewCookieAuth("a=1\nb=2; Secure")
	if err != nil {
		t.Fatal(err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.invalid", nil)
	auth.Apply(req)
	if got := req.Header.Get("Cookie"); got != "a=1; b=2" {
		t.Errorf("Cookie = %q", got)
	}
}

func TestNewCookieAuth_Invalid(t *testing.T) {
	if _, err := NewCookieAuth("Path=/; Secure"); !errors.Is(err, ErrInvalidCredentialFormat) {
		t.Errorf("err = %v, want ErrInvalidCredentialFormat", err)
	}
}
