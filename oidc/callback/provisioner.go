package callback

import (
	"context"

	"github.com/newsfactory/ssofact/oidc"
)

// Provisioner maps an authenticated ssoFACT user onto a local account, creating
// or updating it as needed, and returns the account's id.
type Provisioner interface {
	Provision(ctx context.Context, info *oidc.UserInfo) (accountID string, err error)
}

// ProvisionerFunc is an adapter to allow the use of ordinary functions as a
// Provisioner.
type ProvisionerFunc func(ctx context.Context, info *oidc.UserInfo) (string, error)

// Provision calls fn(ctx, info).
func (fn ProvisionerFunc) Provision(ctx context.Context, info *oidc.UserInfo) (string, error) {
	return fn(ctx, info)
}

// SubjectProvisioner uses the ssoFACT subject as the account id. It's
// appropriate when no local account store exists.
var SubjectProvisioner = ProvisionerFunc(func(_ context.Context, info *oidc.UserInfo) (string, error) {
	return info.Subject, nil
})

// SyncHook is called after a user was provisioned and before the login
// completes. An error fails the login.
type SyncHook func(ctx context.Context, accountID string, info *oidc.UserInfo) error
