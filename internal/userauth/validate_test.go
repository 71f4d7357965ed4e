package userauth

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

type countingMaker struct {
	calls int
}

func (m *countingMaker) MakeCredential() { m.calls++ }

func TestSubmitUsername(t *testing.T) {
	for _, tc := range []struct {
		name    string
		input   string
		kind    ViolationKind
		message string
	}{
		{name: "min", input: "ab"},
		{name: "spaces", input: "User 123"},
		{name: "max", input: strings.Repeat("z", 20)},
		{name: "all spaces", input: "    "},
		{name: "leading space", input: " ab"},
		{name: "single", input: "a", kind: LengthViolation, message: "Must be between 2-20 characters."},
		{name: "empty", input: "", kind: LengthViolation, message: "Must be between 2-20 characters."},
		{name: "long", input: "this value is definitely too long", kind: LengthViolation, message: "Must be between 2-20 characters."},
		{name: "long special", input: strings.Repeat("!", 21), kind: LengthViolation, message: "Must be between 2-20 characters."},
		{name: "bang", input: "hello!", kind: CharsetViolation, message: "Special characters are not allowed."},
		{name: "underscore", input: "user_name", kind: CharsetViolation, message: "Special characters are not allowed."},
		{name: "dot", input: "alice.snr", kind: CharsetViolation, message: "Special characters are not allowed."},
		{name: "tab", input: "a\tb", kind: CharsetViolation, message: "Special characters are not allowed."},
		{name: "unicode", input: "привет", kind: CharsetViolation, message: "Special characters are not allowed."},
		{name: "invalid utf8", input: "ab\xff", kind: CharsetViolation, message: "Special characters are not allowed."},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var m countingMaker
			c := SubmitUsername(tc.input, &m)
			if tc.kind == 0 {
				if !c.OK() {
					t.Fatalf("expected success, got %q", c.Violation.Message)
				}
				if m.calls != 1 {
					t.Fatalf("expected one collaborator call, got %v", m.calls)
				}
				return
			}
			if c.OK() {
				t.Fatalf("expected violation %v, got success", tc.kind)
			}
			if c.Violation.Kind != tc.kind || c.Violation.Message != tc.message {
				t.Fatalf("bad violation: expected = (%v, %q), got = (%v, %q)",
					tc.kind, tc.message, c.Violation.Kind, c.Violation.Message)
			}
			if m.calls != 0 {
				t.Fatalf("collaborator called %v times on failure", m.calls)
			}
		})
	}
}

func TestValidateUsernameError(t *testing.T) {
	if err := ValidateUsername("ok name"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateUsername("nope!")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %T", err)
	}
	if v.Kind != CharsetViolation || err.Error() != CharsetMessage {
		t.Fatalf("bad violation: %v %q", v.Kind, err.Error())
	}
}

func TestCheckUsernameViolationIsolated(t *testing.T) {
	c := CheckUsername("x")
	c.Violation.Message = "tampered"
	if CheckUsername("x").Violation.Message != LengthMessage {
		t.Fatalf("violation storage shared between calls")
	}
}

func randomName(r *rand.Rand, alphabet string, n int) string {
	var b strings.Builder
	for range n {
		_ = b.WriteByte(alphabet[r.IntN(len(alphabet))])
	}
	return b.String()
}

func TestSubmitUsernameStress(t *testing.T) {
	const (
		allowed = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 "
		special = "!@#$%^&*()_-+=./\\,;:'\"<>?[]{}|`~\t\n"
		iters   = 20_000
	)
	r := rand.New(rand.NewPCG(42, 20))
	for range iters {
		n := r.IntN(30)
		name := randomName(r, allowed, n)
		hasSpecial := false
		if n > 0 && r.IntN(2) == 0 {
			pos := r.IntN(n)
			name = name[:pos] + randomName(r, special, 1) + name[pos+1:]
			hasSpecial = true
		}

		var expected ViolationKind
		switch {
		case n < 2 || n > 20:
			expected = LengthViolation
		case hasSpecial:
			expected = CharsetViolation
		}

		for range 2 {
			var m countingMaker
			c := SubmitUsername(name, &m)
			var got ViolationKind
			if !c.OK() {
				got = c.Violation.Kind
			}
			if got != expected {
				t.Fatalf("name %q: expected kind = %v, got = %v", name, expected, got)
			}
			wantCalls := 0
			if expected == 0 {
				wantCalls = 1
			}
			if m.calls != wantCalls {
				t.Fatalf("name %q: expected %v calls, got %v", name, wantCalls, m.calls)
			}
		}
	}
}
