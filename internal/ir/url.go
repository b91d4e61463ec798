package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionedURL identifies one version of a type: "<base-url>v/<version>".
// Example: https://example.com/@acme/types/entity-type/person/v/1
type VersionedURL string

// BaseURL identifies a type family or a property type. Property keys in a
// property bag are base URLs and end with "/".
type BaseURL string

// ParseVersionedURL splits a versioned URL into base URL and version.
func ParseVersionedURL(s string) (BaseURL, int, error) {
	idx := strings.LastIndex(s, "v/")
	if idx <= 0 || s[idx-1] != '/' {
		return "", 0, fmt.Errorf("versioned url %q: missing \"/v/<version>\" suffix", s)
	}
	version, err := strconv.Atoi(s[idx+2:])
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("versioned url %q: invalid version %q", s, s[idx+2:])
	}
	return BaseURL(s[:idx]), version, nil
}

// BaseURL returns the type family of the URL. If the URL is not in
// versioned form the whole string is returned.
func (u VersionedURL) BaseURL() BaseURL {
	base, _, err := ParseVersionedURL(string(u))
	if err != nil {
		return BaseURL(u)
	}
	return base
}

// Version returns the version number, or 0 if the URL is not versioned.
func (u VersionedURL) Version() int {
	_, v, err := ParseVersionedURL(string(u))
	if err != nil {
		return 0
	}
	return v
}

// Valid reports whether the URL has the "<base>/v/<n>" form.
func (u VersionedURL) Valid() bool {
	_, _, err := ParseVersionedURL(string(u))
	return err == nil
}

// LastSegment returns the final path segment with any trailing "/" removed.
// "https://example.com/property-type/name/" -> "name"
func (b BaseURL) LastSegment() string {
	s := strings.TrimSuffix(string(b), "/")
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
