package testinfra

import (
	"context"
	"roster/bizerror"
	"roster/client/idp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeProvider is an in-memory idp.Provider. Failures maps a method name to the error it returns.
type FakeProvider struct {
	mu sync.Mutex

	Accounts map[string]idp.Account
	Tokens   map[string]string
	Failures map[string]error
	Calls    []string
	Now      func() time.Time
}

var _ idp.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Accounts: map[string]idp.Account{},
		Tokens:   map[string]string{},
		Failures: map[string]error{},
		Now:      time.Now,
	}
}

func (p *FakeProvider) Fail(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Failures[method] = err
}

func (p *FakeProvider) CallsOf(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// AddAccount stores a and returns it.
func (p *FakeProvider) AddAccount(a idp.Account) idp.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = p.Now()
	}
	p.Accounts[a.ID] = a
	return a
}

func (p *FakeProvider) enter(method string) error {
	p.mu.Lock()
	p.Calls = append(p.Calls, method)
	if err := p.Failures[method]; err != nil {
		p.mu.Unlock()
		return bizerror.Upstream("identity provider", err)
	}
	return nil
}

func (p *FakeProvider) ListAccounts(ctx context.Context, page, perPage int) ([]idp.Account, error) {
	if err := p.enter("ListAccounts"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	all := make([]idp.Account, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	from := (page - 1) * perPage
	if from >= len(all) {
		return []idp.Account{}, nil
	}
	to := from + perPage
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], nil
}

func (p *FakeProvider) GetUserByToken(ctx context.Context, token string) (*idp.Account, error) {
	if err := p.enter("GetUserByToken"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	id, found := p.Tokens[token]
	if !found {
		return nil, bizerror.ErrUnauthenticated
	}
	a, found := p.Accounts[id]
	if !found {
		return nil, bizerror.ErrUnauthenticated
	}
	return &a, nil
}

func (p *FakeProvider) GetAccount(ctx context.Context, id string) (*idp.Account, error) {
	if err := p.enter("GetAccount"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	a, found := p.Accounts[id]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	return &a, nil
}

func (p *FakeProvider) FindAccountByEmail(ctx context.Context, email string) (*idp.Account, error) {
	if err := p.enter("FindAccountByEmail"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	a := p.accountByEmail(email)
	if a == nil {
		return nil, bizerror.ErrNotFound
	}
	return a, nil
}

func (p *FakeProvider) GenerateInviteLink(ctx context.Context, email string) (*idp.InviteLink, error) {
	if err := p.enter("GenerateInviteLink"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	a := p.accountByEmail(email)
	if a == nil {
		now := p.Now()
		a = &idp.Account{ID: uuid.New().String(), Email: email, CreatedAt: now, InvitedAt: &now}
		p.Accounts[a.ID] = *a
	}
	return &idp.InviteLink{ActionLink: "https://idp.example.com/verify?type=invite&user=" + a.ID, Account: *a}, nil
}

func (p *FakeProvider) InviteByEmail(ctx context.Context, email string) (*idp.Account, error) {
	if err := p.enter("InviteByEmail"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	if a := p.accountByEmail(email); a != nil {
		return a, nil
	}
	now := p.Now()
	a := idp.Account{ID: uuid.New().String(), Email: email, CreatedAt: now, InvitedAt: &now}
	p.Accounts[a.ID] = a
	return &a, nil
}

func (p *FakeProvider) CreateAccount(ctx context.Context, c *idp.AccountCreation) (*idp.Account, error) {
	if err := p.enter("CreateAccount"); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	if a := p.accountByEmail(c.Email); a != nil {
		return nil, bizerror.Upstream("identity provider", bizerror.ErrConflict)
	}
	now := p.Now()
	a := idp.Account{ID: uuid.New().String(), Email: c.Email, CreatedAt: now, EmailConfirmedAt: &now}
	p.Accounts[a.ID] = a
	return &a, nil
}

func (p *FakeProvider) DeleteAccount(ctx context.Context, id string) error {
	if err := p.enter("DeleteAccount"); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if _, found := p.Accounts[id]; !found {
		return bizerror.ErrNotFound
	}
	delete(p.Accounts, id)
	return nil
}

func (p *FakeProvider) accountByEmail(email string) *idp.Account {
	for _, a := range p.Accounts {
		if a.Email == email {
			found := a
			return &found
		}
	}
	return nil
}
