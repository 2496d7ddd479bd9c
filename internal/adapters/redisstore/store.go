// Package redisstore provides a Redis-backed credential store for headless
// deployments where multiple workers share one device profile. The record
// lives under a single well-known key; tokens own their expiry, so no Redis
// TTL is applied.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

const defaultKey = "authkit:credential"

// Store is a Redis-based credential store.
type Store struct {
	client redis.UniversalClient
	key    string
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore creates a Redis-backed credential store using the default slot key.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client, key: defaultKey}
}

// NewStoreWithKey creates a Redis credential store with a custom slot key,
// e.g. to namespace per device profile.
func NewStoreWithKey(client redis.UniversalClient, key string) *Store {
	return &Store{client: client, key: key}
}

func (s *Store) Save(ctx context.Context, rec domainauth.Record) error {
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

	if setErr := s.client.Set(ctx, s.key, data, 0).Err(); setErr != nil {
		return apperrors.Wrap(setErr, apperrors.ErrCodeStorage, "redis set credential record")
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (domainauth.Record, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Record{}, ports.ErrNoRecord
		}
		return domainauth.Record{}, apperrors.Wrap(err, apperrors.ErrCodeStorage, "redis get credential record")
	}

	var rec domainauth.Record
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		return domainauth.Record{}, apperrors.Wrap(unmarshalErr, apperrors.ErrCodeStorage, "decode credential record")
	}

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

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "redis delete credential record")
	}
	return nil
}
