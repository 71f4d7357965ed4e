package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/alex65536/keyreg/internal/util/timeutil"
	"github.com/alex65536/keyreg/internal/webui"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(slogx.DiscardLogger(), Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func mustUser(t *testing.T, db *DB, name string) userauth.User {
	t.Helper()
	user, err := userauth.NewUser(name)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	alice := mustUser(t, db, "Alice")
	twin, err := userauth.NewUser("alice")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := db.CreateUser(ctx, twin); !errors.Is(err, userauth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	got, err := db.GetUserByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != alice.ID || got.Username != "Alice" {
		t.Fatalf("bad user: %+v", got)
	}
	got, err = db.GetUserByHandle(ctx, alice.Handle)
	if err != nil {
		t.Fatalf("get by handle: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("bad user by handle: %v", got.ID)
	}
	if _, err := db.GetUser(ctx, "nope"); !errors.Is(err, userauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	mustUser(t, db, "Bob")
	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", len(users))
	}
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := mustUser(t, db, "carol")

	cred := userauth.Credential{
		ID:         userauth.EncodeCredentialID([]byte{1, 2, 3}),
		UserID:     user.ID,
		PublicKey:  []byte("pk"),
		SignCount:  7,
		Transports: []string{"internal", "hybrid"},
		CreatedAt:  timeutil.NowUTC(),
	}
	if err := db.AddCredential(ctx, cred); err != nil {
		t.Fatalf("add credential: %v", err)
	}

	second := cred
	second.ID = userauth.EncodeCredentialID([]byte{4, 5, 6})
	if err := db.AddCredential(ctx, second); !errors.Is(err, userauth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	dave := mustUser(t, db, "dave")
	dup := cred
	dup.UserID = dave.ID
	if err := db.AddCredential(ctx, dup); !errors.Is(err, userauth.ErrCredentialAlreadyExist) {
		t.Fatalf("expected ErrCredentialAlreadyExist, got %v", err)
	}

	orphan := second
	orphan.UserID = "missing"
	if err := db.AddCredential(ctx, orphan); !errors.Is(err, userauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	creds, err := db.ListCredentials(ctx, user.ID)
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(creds) != 1 || creds[0].ID != cred.ID || creds[0].SignCount != 7 {
		t.Fatalf("bad credentials: %+v", creds)
	}
	if !slices.Equal(creds[0].Transports, []string{"internal", "hybrid"}) {
		t.Fatalf("bad transports: %v", creds[0].Transports)
	}

	full, err := db.GetUser(ctx, user.ID, userauth.GetUserOptions{WithCredentials: true})
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !full.IsComplete() {
		t.Fatalf("user must be complete")
	}
}

func TestPruneIncompleteUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	done := mustUser(t, db, "done")
	if err := db.AddCredential(ctx, userauth.Credential{
		ID:        userauth.EncodeCredentialID([]byte("done")),
		UserID:    done.ID,
		CreatedAt: timeutil.NowUTC(),
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}
	mustUser(t, db, "pending")

	n, err := db.PruneIncompleteUsers(ctx, timeutil.NowUTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Fatalf("nothing must be pruned yet, pruned %v", n)
	}

	n, err = db.PruneIncompleteUsers(ctx, timeutil.NowUTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one pruned user, got %v", n)
	}
	if _, err := db.GetUserByUsername(ctx, "pending"); !errors.Is(err, userauth.ErrUserNotFound) {
		t.Fatalf("pending user must be gone, got %v", err)
	}
	if _, err := db.GetUserByUsername(ctx, "done"); err != nil {
		t.Fatalf("complete user must survive: %v", err)
	}
}

func TestTouchPendingUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	user := mustUser(t, db, "bob")
	at := timeutil.NowUTC().Add(time.Hour)
	if err := db.TouchPendingUser(ctx, user.ID, "Bob", at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := db.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Username != "Bob" {
		t.Fatalf("bad username: %q", got.Username)
	}
	if d := got.TouchedAt.UTC().Sub(at.UTC()).Abs(); d > time.Second {
		t.Fatalf("bad touch time: %v != %v", got.TouchedAt.UTC(), at.UTC())
	}

	n, err := db.PruneIncompleteUsers(ctx, timeutil.NowUTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Fatalf("touched user must survive, pruned %v", n)
	}

	if err := db.TouchPendingUser(ctx, user.ID, "someone else", at); !errors.Is(err, userauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := db.AddCredential(ctx, userauth.Credential{
		ID:        userauth.EncodeCredentialID([]byte("bob")),
		UserID:    user.ID,
		CreatedAt: timeutil.NowUTC(),
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}
	if err := db.TouchPendingUser(ctx, user.ID, "BOB", at); !errors.Is(err, userauth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if err := db.TouchPendingUser(ctx, "missing", "bob", at); !errors.Is(err, userauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSessionStore(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store := db.NewSessionStore(ctx, webui.SessionOptions{
		AuthKey:         []byte("0123456789abcdef0123456789abcdef"),
		MaxAge:          time.Minute,
		CleanupInterval: time.Minute,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, "test_session")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	sess.Values["registration"] = []byte("payload")
	rec := httptest.NewRecorder()
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("save session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("bad cookies: %v", cookies)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, err = store.Get(req, "test_session")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.IsNew {
		t.Fatalf("session must be loaded from the db")
	}
	if got, _ := sess.Values["registration"].([]byte); string(got) != "payload" {
		t.Fatalf("bad session value: %q", got)
	}
}
