package userauth

import (
	"context"
	"errors"

	"github.com/alex65536/keyreg/internal/util/timeutil"
)

var (
	ErrNameTaken              = errors.New("name already taken")
	ErrNameReserved           = errors.New("name is reserved")
	ErrUserNotFound           = errors.New("user not found")
	ErrCredentialAlreadyExist = errors.New("credential already registered")
)

type GetUserOptions struct {
	WithCredentials bool
}

type DB interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string, o ...GetUserOptions) (User, error)
	GetUserByUsername(ctx context.Context, username string, o ...GetUserOptions) (User, error)
	GetUserByHandle(ctx context.Context, handle []byte, o ...GetUserOptions) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	AddCredential(ctx context.Context, cred Credential) error
	ListCredentials(ctx context.Context, userID string) ([]Credential, error)
	// TouchPendingUser renames an incomplete user to username (same NameKey) and bumps its
	// TouchedAt. Fails with ErrNameTaken if the user already has a credential.
	TouchPendingUser(ctx context.Context, userID string, username string, at timeutil.UTCTime) error
	// PruneIncompleteUsers deletes users without credentials that were last touched before the
	// cutoff.
	PruneIncompleteUsers(ctx context.Context, touchedBefore timeutil.UTCTime) (int64, error)
}
