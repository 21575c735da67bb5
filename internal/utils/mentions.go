package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	userMentionRegex    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelMentionRegex = regexp.MustCompile(`^<#(\d+)>$`)
	roleMentionRegex    = regexp.MustCompile(`^<@&(\d+)>$`)
	snowflakeRegex      = regexp.MustCompile(`^\d{15,21}$`)
)

// ParseUserID accepts a user mention or a bare snowflake.
func ParseUserID(arg string) (string, bool) {
	return parseRef(arg, userMentionRegex)
}

// ParseChannelID accepts a channel mention or a bare snowflake.
func ParseChannelID(arg string) (string, bool) {
	return parseRef(arg, channelMentionRegex)
}

// ParseRoleID accepts a role mention or a bare snowflake. Anything else is
// left to the caller to resolve by name.
func ParseRoleID(arg string) (string, bool) {
	return parseRef(arg, roleMentionRegex)
}

func parseRef(arg string, mention *regexp.Regexp) (string, bool) {
	arg = strings.TrimSpace(arg)
	if match := mention.FindStringSubmatch(arg); match != nil {
		return match[1], true
	}
	if snowflakeRegex.MatchString(arg) {
		return arg, true
	}
	return "", false
}

func UserMention(id string) string    { return "<@" + id + ">" }
func ChannelMention(id string) string { return "<#" + id + ">" }

// ParseColor reads "#rrggbb", "0xrrggbb" or "rrggbb".
func ParseColor(raw string) (int, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	raw = strings.TrimPrefix(raw, "#")
	raw = strings.TrimPrefix(raw, "0x")
	if len(raw) == 0 || len(raw) > 6 {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

func ParseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "on":
		return true, true
	case "false", "no", "n", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// ChunkText splits text into pieces of at most limit characters, breaking on
// newlines where possible. Runes are never split.
func ChunkText(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	size := 0
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if size+len(runes) > limit {
			flush()
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()
	return chunks
}
