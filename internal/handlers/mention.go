package handlers

import (
	"regexp"
	"strconv"
	"strings"
)

// VK mention markup: [id123|Display Name]. Plain "@123" is accepted too
// for clients that do not expand mentions.
var mentionPattern = regexp.MustCompile(`\[id(\d+)\|[^\]]*\]`)

// ParseMention extracts the target user ID from a mention token.
// Returns 0 when the token is not a recognizable mention.
func ParseMention(token string) int64 {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}

	if m := mentionPattern.FindStringSubmatch(token); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0
		}
		return id
	}

	if strings.HasPrefix(token, "@") {
		id, err := strconv.ParseInt(token[1:], 10, 64)
		if err != nil {
			return 0
		}
		return id
	}

	return 0
}

// ParseTarget extracts the target user ID from the start of a command
// remainder and returns the arguments following the mention. Display names
// inside VK markup may contain spaces, so the mention is matched against the
// whole remainder rather than a single whitespace token.
func ParseTarget(rest string) (int64, []string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 0, nil
	}

	if loc := mentionPattern.FindStringSubmatchIndex(rest); loc != nil && loc[0] == 0 {
		id, err := strconv.ParseInt(rest[loc[2]:loc[3]], 10, 64)
		if err != nil {
			return 0, nil
		}
		return id, strings.Fields(rest[loc[1]:])
	}

	fields := strings.Fields(rest)
	if id := ParseMention(fields[0]); id != 0 {
		return id, fields[1:]
	}
	return 0, nil
}
