package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/util/style"
)

func TestCheckNames(t *testing.T) {
	var b bytes.Buffer
	w := &style.Writer{Writer: &b}
	failed := checkNames(w, []string{"Jane Doe", "x", "no_way", "admin"}, true)
	if failed != 3 {
		t.Fatalf("expected 3 failures, got %v", failed)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	want := []string{
		`OK "Jane Doe"`,
		`FAIL "x": Must be between 2-20 characters.`,
		`FAIL "no_way": Special characters are not allowed.`,
		`FAIL "admin": name is reserved`,
	}
	if len(lines) != len(want) {
		t.Fatalf("bad output: %q", b.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %v: got %q, want %q", i, lines[i], want[i])
		}
	}
	if strings.Contains(b.String(), "\033[") {
		t.Fatalf("escape sequences must not be written without color")
	}

	b.Reset()
	if failed := checkNames(w, []string{"admin"}, false); failed != 0 {
		t.Fatalf("reserved names must pass with reserved check disabled")
	}

	b.Reset()
	w.Color = true
	checkNames(w, []string{"ok name"}, true)
	if !strings.Contains(b.String(), "\033[1;32mOK\033[0m") {
		t.Fatalf("expected colored output, got %q", b.String())
	}
}

type fakeAPI struct {
	names map[string]*regapi.NameStatus
	creds map[string]*regapi.UserCredentials
}

func (f *fakeAPI) NameStatus(_ context.Context, name string) (*regapi.NameStatus, error) {
	if st, ok := f.names[name]; ok {
		return st, nil
	}
	return &regapi.NameStatus{Name: name, Available: true}, nil
}

func (f *fakeAPI) UserCredentials(_ context.Context, username string) (*regapi.UserCredentials, error) {
	if c, ok := f.creds[username]; ok {
		return c, nil
	}
	return nil, &regapi.Error{Status: http.StatusNotFound, Message: "user not found"}
}

func TestCheckNamesRemote(t *testing.T) {
	api := &fakeAPI{names: map[string]*regapi.NameStatus{
		"bob": {Name: "bob", Kind: "taken", Message: "name already taken", Suggestions: []string{"bob otter"}},
	}}
	var b bytes.Buffer
	w := &style.Writer{Writer: &b}
	failed, err := checkNamesRemote(context.Background(), w, api, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %v", failed)
	}
	want := "OK \"alice\"\nFAIL \"bob\": name already taken (try: bob otter)\n"
	if b.String() != want {
		t.Fatalf("got %q, want %q", b.String(), want)
	}
}

func TestListCredentials(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{creds: map[string]*regapi.UserCredentials{
		"carol": {Username: "Carol", Credentials: []regapi.CredentialInfo{
			{ID: "AAEC", Transports: []string{"usb", "nfc"}, CreatedAt: created},
			{ID: "AwQF", CreatedAt: created},
		}},
	}}
	var b bytes.Buffer
	w := &style.Writer{Writer: &b}
	if err := listCredentials(context.Background(), w, api, "carol"); err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "Carol\n  AAEC  2024-05-01T12:00:00Z  usb,nfc\n  AwQF  2024-05-01T12:00:00Z  -\n"
	if b.String() != want {
		t.Fatalf("got %q, want %q", b.String(), want)
	}
	if err := listCredentials(context.Background(), w, api, "dave"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
