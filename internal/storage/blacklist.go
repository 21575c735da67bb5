package storage

import "strings"

type blacklistTable map[string][]string

// Blacklist returns the guild's blacklisted words in stored order.
func (s *Store) Blacklist(guildID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := s.blacklist[guildID]
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// AddBlacklistWord appends word unless it is already present, compared
// case-insensitively. The stored word keeps its original case.
func (s *Store) AddBlacklistWord(guildID, word string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(word)
	for _, existing := range s.blacklist[guildID] {
		if strings.ToLower(existing) == lower {
			return false, nil
		}
	}
	s.blacklist[guildID] = append(s.blacklist[guildID], word)
	return true, s.flushBlacklistLocked()
}

// RemoveBlacklistWord removes the entry exactly equal to word.
func (s *Store) RemoveBlacklistWord(guildID, word string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := s.blacklist[guildID]
	for i, existing := range words {
		if existing != word {
			continue
		}
		next := make([]string, 0, len(words)-1)
		next = append(next, words[:i]...)
		next = append(next, words[i+1:]...)
		s.blacklist[guildID] = next
		return true, s.flushBlacklistLocked()
	}
	return false, nil
}

func (s *Store) flushBlacklistLocked() error {
	return SaveJSON(s.blacklistPath, s.blacklist)
}
