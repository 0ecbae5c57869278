package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

func resolveURLs(positional []string, urlsFile string) ([]string, error) {
	trimmed := strings.TrimSpace(urlsFile)
	if trimmed != "" {
		if len(positional) > 0 {
			return nil, fmt.Errorf("cannot combine positional urls with --urls-file")
		}
		return readURLsFile(trimmed)
	}

	urls := make([]string, 0, len(positional))
	for _, raw := range positional {
		candidate := strings.TrimSpace(raw)
		if candidate == "" {
			continue
		}
		if err := validateCandidateURL(candidate); err != nil {
			return nil, err
		}
		urls = append(urls, candidate)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one url is required")
	}
	return urls, nil
}

func readURLsFile(path string) ([]string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck
		reader = file
	}

	urls := make([]string, 0)
	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if err := validateCandidateURL(raw); err != nil {
			return nil, fmt.Errorf("invalid url on line %d: %w", line, err)
		}
		urls = append(urls, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no urls found")
	}
	return urls, nil
}

// validateCandidateURL accepts absolute http(s) URLs only. Paths keep their
// case; product URLs are routinely case-sensitive.
func validateCandidateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return errors.New("url is required")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use http or https: %s", trimmed)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include a host: %s", trimmed)
	}

	return nil
}
