package storage

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store owns the warning ledger and the blacklist table. Every mutation is
// flushed to its JSON file while the store lock is held, so a
// read-modify-write on either table is atomic with respect to other callers.
type Store struct {
	mu            sync.Mutex
	clock         Clock
	logger        *zap.Logger
	warningsPath  string
	blacklistPath string
	warnings      warningLedger
	blacklist     blacklistTable
}

// New loads both tables from disk. Missing files are created empty and
// corrupt files are backed up and reset; only other I/O failures are returned.
func New(warningsPath, blacklistPath string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		clock:         realClock{},
		logger:        logger,
		warningsPath:  warningsPath,
		blacklistPath: blacklistPath,
	}

	warnings, err := LoadJSON(warningsPath, warningLedger{})
	if err := s.recover(err); err != nil {
		return nil, err
	}
	if warnings == nil {
		warnings = warningLedger{}
	}
	s.warnings = warnings

	blacklist, err := LoadJSON(blacklistPath, blacklistTable{})
	if err := s.recover(err); err != nil {
		return nil, err
	}
	if blacklist == nil {
		blacklist = blacklistTable{}
	}
	s.blacklist = blacklist

	return s, nil
}

func (s *Store) WithClock(clock Clock) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// InitGuild makes sure both tables carry an entry for guildID and writes them out.
func (s *Store) InitGuild(guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guildWarningsLocked(guildID)
	if _, ok := s.blacklist[guildID]; !ok {
		s.blacklist[guildID] = []string{}
	}
	return errors.Join(s.flushWarningsLocked(), s.flushBlacklistLocked())
}

func (s *Store) recover(err error) error {
	if err == nil {
		return nil
	}
	var corrupt *CorruptFileError
	if errors.As(err, &corrupt) {
		s.logger.Warn("data file reset to default",
			zap.String("path", corrupt.Path),
			zap.String("backup", corrupt.Backup),
			zap.Error(corrupt.Err),
		)
		return nil
	}
	return err
}
