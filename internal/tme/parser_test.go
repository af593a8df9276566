package tme

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const previewPageHTML = `<!DOCTYPE html>
<html>
<head><title>Telegram: Contact @cryptosignals</title></head>
<body>
<div class="tgme_page">
  <div class="tgme_page_title"><span>Crypto Signals Hub</span></div>
  <div class="tgme_page_extra">5 000 members, 312 online</div>
  <div class="tgme_page_description">Daily market signals and analysis.</div>
</div>
</body>
</html>`

func TestFetchPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cryptosignals" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(previewPageHTML))
	}))
	defer srv.Close()

	p := NewParser(2000, 0, zap.NewNop())
	p.baseURL = srv.URL

	preview, err := p.FetchPreview(context.Background(), "@cryptosignals")
	if err != nil {
		t.Fatalf("FetchPreview: %v", err)
	}
	if preview.Title != "Crypto Signals Hub" {
		t.Errorf("Title = %q", preview.Title)
	}
	if preview.Description != "Daily market signals and analysis." {
		t.Errorf("Description = %q", preview.Description)
	}
	if preview.MemberCount == nil || *preview.MemberCount != 5000 {
		t.Errorf("MemberCount = %v, want 5000", preview.MemberCount)
	}
	if preview.Username != "cryptosignals" {
		t.Errorf("Username = %q", preview.Username)
	}
}

func TestFetchPreviewNoPublicPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="tgme_page"></div></body></html>`))
	}))
	defer srv.Close()

	p := NewParser(2000, 0, zap.NewNop())
	p.baseURL = srv.URL

	if _, err := p.FetchPreview(context.Background(), "ghostgroup"); err == nil {
		t.Fatal("expected error for page without a title")
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1.2K members", 1200},
		{"1.5M members", 1500000},
		{"123 members", 123},
		{"12,345 members, 678 online", 12345},
		{"1 234 members", 1234},
		{"100K", 100000},
		{"0", 0},
		{"", 0},
		{"no number", 0},
		{"42k members", 42000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCount(tt.input)
			if result != tt.expected {
				t.Errorf("parseCount(%q) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}
