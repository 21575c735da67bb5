package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const backupSuffix = ".bak"

// CorruptFileError reports a data file that could not be parsed and was
// replaced with its default value. The unreadable content is kept at Backup.
type CorruptFileError struct {
	Path   string
	Backup string
	Err    error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt data file %s (moved to %s): %v", e.Path, e.Backup, e.Err)
}

func (e *CorruptFileError) Unwrap() error { return e.Err }

// LoadJSON reads path into a value of type T. A missing file is created
// holding def. A file with invalid content is renamed to path+".bak", a fresh
// file holding def is written, and def is returned together with a
// *CorruptFileError. Any other error leaves the file untouched.
func LoadJSON[T any](path string, def T) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := SaveJSON(path, def); err != nil {
				return def, err
			}
			return def, nil
		}
		return def, fmt.Errorf("read %s: %w", path, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		backup := path + backupSuffix
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return def, fmt.Errorf("backup corrupt %s: %w", path, renameErr)
		}
		if saveErr := SaveJSON(path, def); saveErr != nil {
			return def, saveErr
		}
		return def, &CorruptFileError{Path: path, Backup: backup, Err: err}
	}
	return value, nil
}

// SaveJSON overwrites path with the indented encoding of value, creating
// parent directories as needed. The write is not atomic.
func SaveJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
