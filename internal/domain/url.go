package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// UnknownAuthor is reported when a URL carries no @handle
const UnknownAuthor = "Unknown"

var (
	supportedURLPattern = regexp.MustCompile(`^https?://((?:vm|vt|www|v)\.)?tiktok(?:v)?\.com/.*`)
	authorPattern       = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
)

// IsSupported checks if the string is a TikTok URL this tool can download
func IsSupported(rawURL string) bool {
	return supportedURLPattern.MatchString(rawURL)
}

// ExtractID returns the last path segment of the URL, ignoring the query string and a trailing slash
func ExtractID(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}

	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

// ExtractAuthor returns the first @handle found in the URL, or UnknownAuthor
func ExtractAuthor(rawURL string) string {
	match := authorPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return UnknownAuthor
	}
	return match[1]
}

// IsShortLink checks if the URL is a redirect-only short link (vm./vt. hosts or the /t/ path)
func IsShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasPrefix(host, "vm.") || strings.HasPrefix(host, "vt.") {
		return true
	}
	return strings.HasPrefix(u.Path, "/t/")
}
