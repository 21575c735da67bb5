package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TimeLayout is the timestamp format written into warning entries.
const TimeLayout = "2006-01-02T15:04:05.000000"

// AutoIssuer is the issuer name recorded for warnings raised by auto-moderation.
const AutoIssuer = "Auto"

type WarningEntry struct {
	IssuerID   *int64 `json:"by"`
	IssuerName string `json:"by_name"`
	Reason     string `json:"reason"`
	Time       string `json:"time"`
}

// IssuedAt parses Time. Entries written by older tooling may carry a zone
// suffix, so RFC 3339 is accepted too.
func (w WarningEntry) IssuedAt() (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, w.Time); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised warning time %q", w.Time)
}

type WarnedUser struct {
	UserID string
	Count  int
}

// guildWarnings keeps users in first-seen order so ties in ListWarnedUsers
// are stable across restarts.
type guildWarnings struct {
	order  []string
	byUser map[string][]WarningEntry
}

func newGuildWarnings() *guildWarnings {
	return &guildWarnings{byUser: make(map[string][]WarningEntry)}
}

func (g *guildWarnings) append(userID string, entry WarningEntry) {
	if _, ok := g.byUser[userID]; !ok {
		g.order = append(g.order, userID)
	}
	g.byUser[userID] = append(g.byUser[userID], entry)
}

func (g *guildWarnings) UnmarshalJSON(data []byte) error {
	g.order = nil
	g.byUser = make(map[string][]WarningEntry)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("warnings: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		userID, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("warnings: expected user key, got %v", keyTok)
		}
		var entries []WarningEntry
		if err := dec.Decode(&entries); err != nil {
			return err
		}
		if _, seen := g.byUser[userID]; !seen {
			g.order = append(g.order, userID)
		}
		if entries == nil {
			entries = []WarningEntry{}
		}
		g.byUser[userID] = entries
	}
	_, err = dec.Token()
	return err
}

func (g *guildWarnings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, userID := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(userID)
		if err != nil {
			return nil, err
		}
		entries := g.byUser[userID]
		if entries == nil {
			entries = []WarningEntry{}
		}
		value, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type warningLedger map[string]*guildWarnings

// AddWarning appends a warning for userID in guildID. The entry is recorded in
// memory even when the returned error reports a failed flush.
func (s *Store) AddWarning(guildID, userID string, issuerID *int64, issuerName, reason string) (WarningEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := WarningEntry{
		IssuerName: issuerName,
		Reason:     reason,
		Time:       s.clock.Now().UTC().Format(TimeLayout),
	}
	if issuerID != nil {
		id := *issuerID
		entry.IssuerID = &id
	}

	s.guildWarningsLocked(guildID).append(userID, entry)
	return entry, s.flushWarningsLocked()
}

func (s *Store) ListWarnings(guildID, userID string) []WarningEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.warnings[guildID]
	if guild == nil {
		return []WarningEntry{}
	}
	entries := guild.byUser[userID]
	out := make([]WarningEntry, len(entries))
	copy(out, entries)
	return out
}

// ListWarnedUsers returns every user of guildID holding at least one warning,
// most-warned first. Equal counts keep first-seen order.
func (s *Store) ListWarnedUsers(guildID string) []WarnedUser {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.warnings[guildID]
	if guild == nil {
		return nil
	}
	var users []WarnedUser
	for _, userID := range guild.order {
		if count := len(guild.byUser[userID]); count > 0 {
			users = append(users, WarnedUser{UserID: userID, Count: count})
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Count > users[j].Count
	})
	return users
}

// ClearWarnings truncates the user's warnings and reports whether any were
// removed. The user key stays in place.
func (s *Store) ClearWarnings(guildID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.warnings[guildID]
	if guild == nil {
		return false, nil
	}
	entries, ok := guild.byUser[userID]
	if !ok || len(entries) == 0 {
		return false, nil
	}
	guild.byUser[userID] = []WarningEntry{}
	return true, s.flushWarningsLocked()
}

func (s *Store) guildWarningsLocked(guildID string) *guildWarnings {
	guild := s.warnings[guildID]
	if guild == nil {
		guild = newGuildWarnings()
		s.warnings[guildID] = guild
	}
	return guild
}

func (s *Store) flushWarningsLocked() error {
	return SaveJSON(s.warningsPath, s.warnings)
}
