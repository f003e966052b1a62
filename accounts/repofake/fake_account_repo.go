package fakeaccountrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/internal/errors"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*accounts.Account
	emailIds map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*accounts.Account),
		emailIds: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Upsert(account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.DateJoined.IsZero() {
		account.DateJoined = time.Now()
	}
	ar.accounts[account.ID] = account
	ar.emailIds[account.Email] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIds[email]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return ar.copyOf(ar.accounts[id]), nil
}

func (ar *FakeAccountRepo) GetByID(id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return ar.copyOf(account), nil
}

func (ar *FakeAccountRepo) List(offset, limit int) ([]*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	list := make([]*accounts.Account, 0, len(ar.accounts))
	for _, a := range ar.accounts {
		list = append(list, ar.copyOf(a))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (ar *FakeAccountRepo) SetSessionMarker(id, marker string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	account.SessionMarker = marker
	account.LastLogin = time.Now()
	return nil
}

func (ar *FakeAccountRepo) SetPassword(id, passwordHash string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

// copyOf returns a shallow copy so callers cannot mutate the stored record
// outside the repo lock.
func (ar *FakeAccountRepo) copyOf(a *accounts.Account) *accounts.Account {
	cp := *a
	return &cp
}
