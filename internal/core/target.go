package core

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrMissingURL = errors.New("url is required")
	ErrInvalidURL = errors.New("url must be an absolute http or https URL")
)

// ParseTarget validates an absolute http(s) URL and returns it normalized.
func ParseTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return parsed.String(), nil
}
