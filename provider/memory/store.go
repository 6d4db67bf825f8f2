package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/accountflow"
)

// Store is an in-process accountflow.ProfileStore holding encoded profile
// documents, so schema violations surface exactly as with a real backend.
type Store struct {
	mu   sync.RWMutex
	docs map[accountflow.IdentityID][]byte

	faults     faults
	saveCalls  atomic.Int64
	fetchCalls atomic.Int64
}

func NewStore() *Store {
	return &Store{docs: make(map[accountflow.IdentityID][]byte)}
}

func (s *Store) Save(ctx context.Context, id accountflow.IdentityID, u accountflow.User) error {
	s.saveCalls.Add(1)
	if err := s.faults.wait(ctx, opSave); err != nil {
		return err
	}
	data, err := accountflow.EncodeUser(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[id] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Fetch(ctx context.Context, id accountflow.IdentityID) (accountflow.User, error) {
	s.fetchCalls.Add(1)
	if err := s.faults.wait(ctx, opFetch); err != nil {
		return accountflow.User{}, err
	}
	s.mu.RLock()
	data, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return accountflow.User{}, accountflow.ErrDocumentNotFound
	}
	return accountflow.DecodeUser(data)
}

// Put stores raw document bytes for id, bypassing schema checks.
func (s *Store) Put(id accountflow.IdentityID, raw []byte) {
	s.mu.Lock()
	s.docs[id] = append([]byte(nil), raw...)
	s.mu.Unlock()
}

// Has reports whether a document exists for id.
func (s *Store) Has(id accountflow.IdentityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) SaveCalls() int64  { return s.saveCalls.Load() }
func (s *Store) FetchCalls() int64 { return s.fetchCalls.Load() }

// FailSave makes the next n Save calls return err. n < 0 fails every call.
func (s *Store) FailSave(err error, n int) { s.faults.set(opSave, err, n) }

func (s *Store) FailFetch(err error, n int) { s.faults.set(opFetch, err, n) }

// Hold makes calls block until the returned release func is called.
func (s *Store) Hold() (release func()) { return s.faults.hold() }

func (s *Store) Reset() { s.faults.reset() }
