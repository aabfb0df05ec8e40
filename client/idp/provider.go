// Package idp talks to the identity provider holding the accounts behind organization members.
package idp

import (
	"context"
	"encoding/json"
	"time"
)

// Provider is the administrative surface of the identity provider.
type Provider interface {
	// ListAccounts returns one page of accounts, pages start at 1.
	ListAccounts(ctx context.Context, page, perPage int) ([]Account, error)
	// GetUserByToken resolves the account behind a user access token.
	GetUserByToken(ctx context.Context, token string) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	// FindAccountByEmail returns bizerror.ErrNotFound when no account holds email.
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	GenerateInviteLink(ctx context.Context, email string) (*InviteLink, error)
	InviteByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, c *AccountCreation) (*Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

type Account struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	CreatedAt        time.Time  `json:"created_at"`
	InvitedAt        *time.Time `json:"invited_at"`
	LastSignInAt     *time.Time `json:"last_sign_in_at"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

// UnmarshalJSON accepts confirmed_at when email_confirmed_at is absent.
func (a *Account) UnmarshalJSON(data []byte) error {
	type plain Account
	var raw struct {
		plain
		ConfirmedAt *time.Time `json:"confirmed_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Account(raw.plain)
	if a.EmailConfirmedAt == nil {
		a.EmailConfirmedAt = raw.ConfirmedAt
	}
	return nil
}

type InviteLink struct {
	ActionLink string  `json:"actionLink"`
	Account    Account `json:"account"`
}

type AccountCreation struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"-"`
}
