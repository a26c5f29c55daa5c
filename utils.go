package poapbot

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	namePattern    = regexp.MustCompile(`^([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)
)

// JsonPrint writes v as indented json prefixed by tag.
func JsonPrint(w io.Writer, tag string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", tag, b)
	return err
}

// IsAddress reports whether s is a 0x-prefixed 40 hex digit address in any case.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsCanonicalAddress reports whether s is already lowercased.
func IsCanonicalAddress(s string) bool {
	return IsAddress(s) && s == strings.ToLower(s)
}

// IsName reports whether s looks like a human readable ENS style name.
func IsName(s string) bool {
	return len(s) >= 3 && len(s) <= 255 && namePattern.MatchString(s)
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// ParseMention extracts the id from <@&id> (role), <#id> (channel) or <@id>/<@!id> (user).
// ok is false when s is not a mention of the given kind.
func ParseMention(s string, prefix string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, prefix), ">")
	if id == "" {
		return "", false
	}
	return id, true
}

const (
	RoleMentionPrefix    = "<@&"
	ChannelMentionPrefix = "<#"
)

func RoleMention(id string) string {
	return RoleMentionPrefix + id + ">"
}

func ChannelMention(id string) string {
	return ChannelMentionPrefix + id + ">"
}

func UserMention(id string) string {
	return "<@" + id + ">"
}
