package webui

import (
	"context"
	"time"

	"github.com/gorilla/sessions"
)

const sessionName = "keyreg_session"

type SessionOptions struct {
	AuthKey         []byte        `toml:"-"`
	EncryptionKey   []byte        `toml:"-"`
	MaxAge          time.Duration `toml:"max-age"`
	CleanupInterval time.Duration `toml:"cleanup-interval"`
	Secure          bool          `toml:"secure"`
}

func (o *SessionOptions) FillDefaults() {
	if o.MaxAge == 0 {
		o.MaxAge = 15 * time.Minute
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = 10 * time.Minute
	}
}

func (o SessionOptions) Keys() [][]byte {
	keys := [][]byte{o.AuthKey}
	if o.EncryptionKey != nil {
		keys = append(keys, o.EncryptionKey)
	}
	return keys
}

type SessionStoreFactory interface {
	NewSessionStore(ctx context.Context, opts SessionOptions) sessions.Store
}
