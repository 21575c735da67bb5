package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source supplies the ordered blacklist of a guild.
type Source interface {
	Blacklist(guildID string) []string
}

// Module matches message text against a guild blacklist. Any blacklisted word
// appearing as a substring triggers, including inside longer words.
type Module struct {
	source Source
}

func New(source Source) *Module {
	return &Module{source: source}
}

// FindTrigger returns the first blacklist entry, in stored order, contained in
// text. The returned word keeps the case it was stored with.
func (m *Module) FindTrigger(guildID, text string) (string, bool) {
	words := m.source.Blacklist(guildID)
	if len(words) == 0 || text == "" {
		return "", false
	}

	content := normalizeText(text)
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(content, normalizeText(word)) {
			return word, true
		}
	}
	return "", false
}

// normalizeText lower-cases input. Casers keep state, so one is built per call.
func normalizeText(input string) string {
	return cases.Lower(language.Und).String(input)
}
