package service

import (
	"context"
	"time"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/limiter"
	"github.com/and161185/secrets/internal/model"
	"github.com/and161185/secrets/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeAccounts struct {
	byName map[string]*model.Account
	byFed  map[string]*model.Account

	insertErr error
	findErr   error
	upsertErr error
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byName: map[string]*model.Account{}, byFed: map[string]*model.Account{}}
}

func (f *fakeAccounts) FindByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	for _, a := range f.byName {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}
func (f *fakeAccounts) FindByFederatedID(_ context.Context, id string) (*model.Account, error) {
	a, ok := f.byFed[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}
func (f *fakeAccounts) Insert(_ context.Context, a *model.Account) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, exists := f.byName[a.Username]; exists {
		return errs.ErrDuplicateUsername
	}
	c := *a
	f.byName[a.Username] = &c
	return nil
}
func (f *fakeAccounts) Update(_ context.Context, a *model.Account) error {
	c := *a
	f.byName[a.Username] = &c
	return nil
}
func (f *fakeAccounts) SetSecret(_ context.Context, id uuid.UUID, secret string) error {
	for _, a := range f.byName {
		if a.ID == id {
			a.Secret = secret
			return nil
		}
	}
	for _, a := range f.byFed {
		if a.ID == id {
			a.Secret = secret
			return nil
		}
	}
	return errs.ErrNotFound
}
func (f *fakeAccounts) FindOrCreateFederated(_ context.Context, id, name string) (*model.Account, bool, error) {
	if f.upsertErr != nil {
		return nil, false, f.upsertErr
	}
	if a, ok := f.byFed[id]; ok {
		c := *a
		return &c, false, nil
	}
	a := &model.Account{ID: uuid.Must(uuid.NewV4()), FederatedID: id, DisplayName: name}
	f.byFed[id] = a
	c := *a
	return &c, true, nil
}
func (f *fakeAccounts) ListWithSecrets(context.Context) ([]model.Account, error) { return nil, nil }

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}
