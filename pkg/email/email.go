// Package email normalizes recipient addresses.
package email

import (
	"net/mail"
	"strings"
)

// Recipients trims, validates and de-duplicates addresses case-insensitively,
// keeping the first spelling seen. Blank and malformed entries are dropped.
func Recipients(addresses ...string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, raw := range addresses {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			continue
		}
		key := strings.ToLower(parsed.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, parsed.Address)
	}
	return out
}

// Valid reports whether addr parses as a single bare address.
func Valid(addr string) bool {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	return err == nil && parsed.Address == strings.TrimSpace(addr)
}
