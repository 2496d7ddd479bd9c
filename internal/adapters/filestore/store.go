// Package filestore provides a file-based credential store for device-local
// deployments. The record is a small JSON document owned exclusively by this
// process, written with owner-only permissions.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

// Store persists the credential record as a JSON file at a fixed path.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a truncated record behind.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore creates a file-based credential store rooted at path.
// The parent directory is created with owner-only permissions if missing.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("credential file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Save(_ context.Context, rec domainauth.Record) error {
	if rec.Empty() {
		return apperrors.Validation("credential record token cannot be empty")
	}
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = domainauth.RecordSchemaVersion
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "marshal credential record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, 0o600); writeErr != nil {
		return apperrors.Wrap(writeErr, apperrors.ErrCodeStorage, "write credential record")
	}
	if renameErr := os.Rename(tmp, s.path); renameErr != nil {
		// Best effort cleanup of the orphaned temp file.
		_ = os.Remove(tmp)
		return apperrors.Wrap(renameErr, apperrors.ErrCodeStorage, "commit credential record")
	}
	return nil
}

func (s *Store) Load(_ context.Context) (domainauth.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domainauth.Record{}, ports.ErrNoRecord
		}
		return domainauth.Record{}, apperrors.Wrap(err, apperrors.ErrCodeStorage, "read credential record")
	}

	var rec domainauth.Record
	if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
		return domainauth.Record{}, apperrors.Wrap(unmarshalErr, apperrors.ErrCodeStorage, "decode credential record")
	}

	// Records written before versioning was introduced carry no schema field;
	// accept them, they are upgraded on the next save. Records from a newer
	// schema are refused rather than misread.
	if rec.SchemaVersion > domainauth.RecordSchemaVersion {
		return domainauth.Record{}, apperrors.Storagef(
			"credential record schema %d is newer than supported %d",
			rec.SchemaVersion, domainauth.RecordSchemaVersion)
	}

	if rec.Empty() {
		return domainauth.Record{}, ports.ErrNoRecord
	}
	return rec, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "remove credential record")
	}
	return nil
}
