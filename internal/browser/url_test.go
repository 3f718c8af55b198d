package browser

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare host", "example.com", "https://example.com"},
		{"host with path", "example.com/page", "https://example.com/page"},
		{"already https", "https://example.com", "https://example.com"},
		{"already http", "http://example.com", "http://example.com"},
		{"about blank", "about:blank", "about:blank"},
		{"file scheme", "file:///tmp/x.html", "file:///tmp/x.html"},
		{"surrounding space", "  example.com  ", "https://example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.input); got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare host", "example.com", "example.com"},
		{"https url", "https://example.com/page?q=1", "example.com"},
		{"www stripped", "https://www.example.com", "example.com"},
		{"subdomain kept", "https://docs.example.com/x", "docs.example.com"},
		{"port dropped", "http://localhost:8080/app", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDomain(tt.input); got != tt.expected {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
