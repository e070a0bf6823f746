package room

import (
	"net/url"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	IDAlphabet = "1234567890abcdefghijklmnopqrstuvwxyz"
	IDLength   = 6
)

var linkPath = regexp.MustCompile(`(?i)/room/([a-z0-9_-]+)`)

// NewID draws a room code uniformly from IDAlphabet. Codes are not checked
// against existing rooms; with 36^6 codes a collision is an accepted risk.
func NewID() (string, error) {
	return gonanoid.Generate(IDAlphabet, IDLength)
}

// NormalizeID trims and lowercases a user-supplied room code.
func NormalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidID reports whether id is a well-formed, already normalized room code.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune(IDAlphabet, c) {
			return false
		}
	}
	return true
}

// InviteLink builds the shareable link for a room. An empty base yields a
// relative link.
func InviteLink(base, id string) string {
	return strings.TrimRight(base, "/") + "/room/" + id
}

// ParseID accepts either an invite link or a bare code and returns the
// lowercased room code, or "" when nothing usable was given.
func ParseID(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if strings.HasPrefix(trimmed, "/") {
			return matchLinkPath(trimmed)
		}
		return NormalizeID(trimmed)
	}
	return matchLinkPath(u.Path)
}

func matchLinkPath(path string) string {
	m := linkPath.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
