package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateSlug(t *testing.T) {
	cases := []struct {
		slug    string
		wantErr bool
	}{
		{"target", false},
		{"best-buy", false},
		{"gamestop2", false},
		{"-bad", true},
		{"bad-", true},
		{"bad slug", true},
		{"BAD", true},
		{"", true},
	}

	for _, tc := range cases {
		err := validateSlug(tc.slug)
		if tc.wantErr && err == nil {
			t.Fatalf("expected error for %q", tc.slug)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.slug, err)
		}
	}
}

func TestValidateCandidateURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.target.com/p/pokemon-tcg/-/A-93954446", false},
		{"http://example.com/product/123", false},
		{"ftp://example.com/product", true},
		{"https://", true},
		{"/p/relative-path", true},
		{"", true},
	}

	for _, tc := range cases {
		err := validateCandidateURL(tc.url)
		if tc.wantErr && err == nil {
			t.Fatalf("expected error for %q", tc.url)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.url, err)
		}
	}
}

func TestResolveURLsRejectsMixedSources(t *testing.T) {
	_, err := resolveURLs([]string{"https://example.com/p/1"}, "urls.txt")
	if err == nil {
		t.Fatal("expected error when combining positional urls with --urls-file")
	}
}

func TestResolveURLsRequiresInput(t *testing.T) {
	if _, err := resolveURLs(nil, ""); err == nil {
		t.Fatal("expected error with no urls")
	}
	if _, err := resolveURLs([]string{" ", ""}, ""); err == nil {
		t.Fatal("expected error with only blank urls")
	}
}

func TestReadURLsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# tonight's queue\nhttps://www.target.com/p/x/-/A-1\n\nhttps://www.gamestop.com/products/y/2.html\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write urls file: %v", err)
	}

	urls, err := readURLsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	if urls[0] != "https://www.target.com/p/x/-/A-1" {
		t.Fatalf("unexpected first url: %s", urls[0])
	}
}

func TestReadURLsFileRejectsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte("https://ok.example/p/1\nftp://bad.example/p/2\n"), 0o644); err != nil {
		t.Fatalf("write urls file: %v", err)
	}

	if _, err := readURLsFile(path); err == nil {
		t.Fatal("expected error for non-http url line")
	}
}

func TestPollWaitBounds(t *testing.T) {
	interval := 30 * time.Second
	if got := pollWait(interval, 0); got != interval {
		t.Fatalf("expected %v with zero jitter, got %v", interval, got)
	}

	jitter := 5 * time.Second
	for i := 0; i < 50; i++ {
		got := pollWait(interval, jitter)
		if got < interval || got > interval+jitter {
			t.Fatalf("wait %v outside [%v, %v]", got, interval, interval+jitter)
		}
	}
}
