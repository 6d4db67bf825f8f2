package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/accountflow"
)

const defaultPrefix = "af"

// ProfileStore keeps one JSON profile document per identity under
// <prefix>:user:<identity id>.
type ProfileStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewProfileStore(client redis.UniversalClient, prefix string) *ProfileStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ProfileStore{redis: client, prefix: prefix}
}

func (s *ProfileStore) key(id accountflow.IdentityID) string {
	return s.prefix + ":user:" + id.String()
}

// Save writes u in one SET. Schema violations are rejected before any
// command is sent.
func (s *ProfileStore) Save(ctx context.Context, id accountflow.IdentityID, u accountflow.User) error {
	if !id.Valid() {
		return accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, accountflow.ErrInvalidIdentityID)
	}
	data, err := accountflow.EncodeUser(u)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(id), data, 0).Err(); err != nil {
		return accountflow.NewPersistenceError(accountflow.PersistenceDefault, err)
	}
	return nil
}

// Fetch reads the profile for id. A missing key is ErrDocumentNotFound.
func (s *ProfileStore) Fetch(ctx context.Context, id accountflow.IdentityID) (accountflow.User, error) {
	if !id.Valid() {
		return accountflow.User{}, accountflow.ErrDocumentNotFound
	}
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return accountflow.User{}, accountflow.ErrDocumentNotFound
		}
		return accountflow.User{}, accountflow.NewPersistenceError(accountflow.PersistenceDefault, err)
	}
	return accountflow.DecodeUser(data)
}
