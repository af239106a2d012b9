package query

import (
	"net/url"
	"strings"
)

// WithoutParam removes every occurrence of name from a raw query string.
// All other pairs keep their exact encoding and order.
func WithoutParam(rawQuery, name string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key == name {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// WithParam returns rawQuery with name set to value, replacing the first
// occurrence in place and dropping further ones, or appending it.
func WithParam(rawQuery, name, value string) string {
	pair := url.QueryEscape(name) + "=" + url.QueryEscape(value)
	if rawQuery == "" {
		return pair
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	replaced := false
	for _, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key == name {
			if !replaced {
				kept = append(kept, pair)
				replaced = true
			}
			continue
		}
		kept = append(kept, part)
	}
	if !replaced {
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
