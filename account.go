package main

import "bytes"

// Account is one registered player. Accounts live only in process memory;
// the password is the opaque byte run from the wire, compared for equality
// (the protocol predates any real key exchange and the format is fixed by
// existing clients). EntityID 0 means the account has no character yet.
type Account struct {
	ID       uint64
	Name     string
	Password []byte
	EntityID uint64
}

// AccountStore wraps the chunked store with name/id lookups. IDs are
// assigned sequentially starting at 1 and never reused; all lookups are
// linear scans across the chunks, which is fine at the scale the store is
// built for (append-heavy, lookup on login only).
type AccountStore struct {
	store  *ChunkedStore[Account]
	nextID uint64
}

// NewAccountStore creates an empty account store drawing chunks from pool.
func NewAccountStore(chunkSize int, pool *ChunkPool[Account]) *AccountStore {
	return &AccountStore{
		store:  NewChunkedStore[Account](chunkSize, pool),
		nextID: 1,
	}
}

// Len returns the number of accounts.
func (s *AccountStore) Len() int {
	return s.store.Len()
}

// Create registers a new account and returns a pointer to its record.
func (s *AccountStore) Create(name string, password []byte) *Account {
	acct := Account{
		ID:       s.nextID,
		Name:     name,
		Password: append([]byte(nil), password...),
	}
	s.nextID++
	index := s.store.Append(acct)
	return s.store.At(index)
}

// FindByName returns the account with the given name, or nil.
func (s *AccountStore) FindByName(name string) *Account {
	var found *Account
	s.store.Scan(func(_ int, a *Account) bool {
		if a.Name == name {
			found = a
			return false
		}
		return true
	})
	return found
}

// FindByID returns the account with the given id, or nil.
func (s *AccountStore) FindByID(id uint64) *Account {
	if id == 0 {
		return nil
	}
	var found *Account
	s.store.Scan(func(_ int, a *Account) bool {
		if a.ID == id {
			found = a
			return false
		}
		return true
	})
	return found
}

// FindByEntityID returns the account owning the given character entity,
// or nil.
func (s *AccountStore) FindByEntityID(entityID uint64) *Account {
	if entityID == 0 {
		return nil
	}
	var found *Account
	s.store.Scan(func(_ int, a *Account) bool {
		if a.EntityID == entityID {
			found = a
			return false
		}
		return true
	})
	return found
}

// PasswordMatches reports whether the supplied password equals the stored
// one byte for byte.
func (a *Account) PasswordMatches(password []byte) bool {
	return bytes.Equal(a.Password, password)
}
