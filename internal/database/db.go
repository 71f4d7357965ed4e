package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alex65536/keyreg/internal/userauth"
	_ "github.com/alex65536/keyreg/internal/util/gormutil"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/alex65536/keyreg/internal/util/timeutil"
	"github.com/alex65536/keyreg/internal/webui"
	"github.com/gorilla/sessions"
	"github.com/wader/gormstore/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Options struct {
	Path          string        `toml:"path"`
	Debug         bool          `toml:"debug"`
	SlowThreshold time.Duration `toml:"slow-threshold"`
	BusyTimeout   time.Duration `toml:"busy-timeout"`
	UseWAL        bool          `toml:"use-wal"`
}

func (o *Options) FillDefaults() {
	if o.Path == "" {
		o.Path = "keyreg.db"
	}
	if o.SlowThreshold == 0 {
		o.SlowThreshold = 200 * time.Millisecond
	}
	if o.BusyTimeout == 0 {
		o.BusyTimeout = 1 * time.Minute
	}
}

type DB struct {
	db  *gorm.DB
	log *slog.Logger
}

var (
	_ userauth.DB               = (*DB)(nil)
	_ webui.SessionStoreFactory = (*DB)(nil)
)

func (d *DB) Close() {
	db, err := d.db.DB()
	if err != nil {
		d.log.Error("could not get underlying db", slogx.Err(err))
		return
	}
	if err := db.Close(); err != nil {
		d.log.Error("could not close db", slogx.Err(err))
	}
}

func buildPath(o Options) string {
	var params []string
	if o.UseWAL {
		params = append(params, "_journal_mode=WAL")
		params = append(params, "_synchronous=NORMAL")
	}
	params = append(params, fmt.Sprintf("_busy_timeout=%v", o.BusyTimeout.Milliseconds()))
	params = append(params, "_foreign_keys=1")
	return o.Path + "?" + strings.Join(params, "&")
}

func New(log *slog.Logger, o Options) (*DB, error) {
	o.FillDefaults()

	log.Info("opening db", slog.String("path", o.Path))
	db, err := gorm.Open(sqlite.Open(buildPath(o)), &gorm.Config{
		Logger: Logger(log, o),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	d := &DB{db: db, log: log}

	log.Info("migrating db")
	if err := db.AutoMigrate(models...); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	log.Info("db opened")
	return d, nil
}

func (d *DB) CreateUser(ctx context.Context, user userauth.User) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		err := tx.Model(&userauth.User{}).Where("name_key = ?", user.NameKey).Count(&cnt).Error
		if err != nil {
			return fmt.Errorf("search for user: %w", err)
		}
		if cnt != 0 {
			return userauth.ErrNameTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

func (d *DB) applyUserOptions(tx *gorm.DB, os ...userauth.GetUserOptions) *gorm.DB {
	if len(os) > 1 {
		panic("too many options")
	}
	if len(os) == 1 && os[0].WithCredentials {
		tx = tx.Preload("Credentials")
	}
	return tx
}

func (d *DB) getUser(ctx context.Context, query string, arg any, o ...userauth.GetUserOptions) (userauth.User, error) {
	var users []userauth.User
	tx := d.applyUserOptions(d.db.WithContext(ctx), o...)
	err := tx.Where(query, arg).Limit(1).Find(&users).Error
	if err != nil {
		return userauth.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return userauth.User{}, userauth.ErrUserNotFound
	}
	return users[0], nil
}

func (d *DB) GetUser(ctx context.Context, userID string, o ...userauth.GetUserOptions) (userauth.User, error) {
	return d.getUser(ctx, "id = ?", userID, o...)
}

func (d *DB) GetUserByUsername(ctx context.Context, username string, o ...userauth.GetUserOptions) (userauth.User, error) {
	return d.getUser(ctx, "name_key = ?", userauth.NameKey(username), o...)
}

func (d *DB) GetUserByHandle(ctx context.Context, handle []byte, o ...userauth.GetUserOptions) (userauth.User, error) {
	return d.getUser(ctx, "handle = ?", handle, o...)
}

func (d *DB) ListUsers(ctx context.Context) ([]userauth.User, error) {
	var users []userauth.User
	err := d.db.WithContext(ctx).Order("created_at").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AddCredential attaches the credential to its user. Only the first ceremony to finish claims the
// name, so adding a credential to a user that already has one fails with ErrNameTaken.
func (d *DB) AddCredential(ctx context.Context, cred userauth.Credential) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		err := tx.Model(&userauth.User{}).Where("id = ?", cred.UserID).Count(&users).Error
		if err != nil {
			return fmt.Errorf("search for user: %w", err)
		}
		if users == 0 {
			return userauth.ErrUserNotFound
		}
		var creds int64
		err = tx.Model(&userauth.Credential{}).Where("user_id = ?", cred.UserID).Count(&creds).Error
		if err != nil {
			return fmt.Errorf("count user credentials: %w", err)
		}
		if creds != 0 {
			return userauth.ErrNameTaken
		}
		var same int64
		err = tx.Model(&userauth.Credential{}).Where("id = ?", cred.ID).Count(&same).Error
		if err != nil {
			return fmt.Errorf("search for credential: %w", err)
		}
		if same != 0 {
			return userauth.ErrCredentialAlreadyExist
		}
		if err := tx.Create(&cred).Error; err != nil {
			return fmt.Errorf("create credential: %w", err)
		}
		return nil
	})
}

func (d *DB) ListCredentials(ctx context.Context, userID string) ([]userauth.Credential, error) {
	var creds []userauth.Credential
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&creds).Error
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

func (d *DB) TouchPendingUser(ctx context.Context, userID string, username string, at timeutil.UTCTime) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var creds int64
		err := tx.Model(&userauth.Credential{}).Where("user_id = ?", userID).Count(&creds).Error
		if err != nil {
			return fmt.Errorf("count user credentials: %w", err)
		}
		if creds != 0 {
			return userauth.ErrNameTaken
		}
		res := tx.Model(&userauth.User{}).
			Where("id = ? AND name_key = ?", userID, userauth.NameKey(username)).
			Updates(map[string]any{
				"username":   username,
				"touched_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return userauth.ErrUserNotFound
		}
		return nil
	})
}

func (d *DB) PruneIncompleteUsers(ctx context.Context, touchedBefore timeutil.UTCTime) (int64, error) {
	res := d.db.WithContext(ctx).
		Where("touched_at < ?", touchedBefore).
		Where("NOT EXISTS (SELECT 1 FROM credentials WHERE credentials.user_id = users.id)").
		Delete(&userauth.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune incomplete users: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (d *DB) NewSessionStore(ctx context.Context, opts webui.SessionOptions) sessions.Store {
	s := gormstore.New(d.db, opts.Keys()...)
	s.SessionOpts.MaxAge = int(opts.MaxAge.Seconds())
	s.SessionOpts.Secure = opts.Secure
	s.SessionOpts.HttpOnly = true
	s.SessionOpts.SameSite = http.SameSiteLaxMode
	go s.PeriodicCleanup(opts.CleanupInterval, ctx.Done())
	return s
}
