package prometheus

import (
	"context"

	"github.com/MrEthical07/accountflow"
)

type nopGateway struct{}

func (nopGateway) CreateAccount(context.Context, string, string) (accountflow.IdentityID, error) {
	return "", accountflow.ErrAuthDefault
}

func (nopGateway) SignIn(context.Context, string, string) (accountflow.IdentityID, error) {
	return "", accountflow.ErrAuthDefault
}

type nopStore struct{}

func (nopStore) Save(context.Context, accountflow.IdentityID, accountflow.User) error { return nil }

func (nopStore) Fetch(context.Context, accountflow.IdentityID) (accountflow.User, error) {
	return accountflow.User{}, accountflow.ErrDocumentNotFound
}
