package feed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dfryer1193/gistblog/blog/domain"
)

// ValidateFollowURL checks that raw is an absolute http(s) URL not already present in existing.
// It does no network I/O. The returned URL is trimmed of surrounding whitespace.
func ValidateFollowURL(raw string, existing []string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", fmt.Errorf("%w: empty URL", domain.ErrInvalidURL)
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: must use HTTP or HTTPS", domain.ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}

	key := domain.NormalizeBlogURL(candidate)
	for _, e := range existing {
		if domain.NormalizeBlogURL(e) == key {
			return "", fmt.Errorf("%s: %w", candidate, domain.ErrDuplicateFollow)
		}
	}

	return candidate, nil
}
