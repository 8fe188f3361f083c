package search

import (
	"net/url"
	"strings"
)

// Blocklist drops candidates from unwanted hosts. Patterns are exact hosts or suffix
// wildcards ("*.example.com" or ".example.com"). A nil Blocklist blocks nothing.
type Blocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewBlocklist compiles patterns. It returns nil when no usable pattern is given.
func NewBlocklist(patterns []string) *Blocklist {
	b := &Blocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *Blocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// Blocked reports whether rawURL's host matches a pattern. Unparseable URLs are blocked.
func (b *Blocklist) Blocked(rawURL string) bool {
	if b == nil {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
