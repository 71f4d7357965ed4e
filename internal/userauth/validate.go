package userauth

import (
	"regexp"
	"unicode/utf8"
)

const (
	MinUsernameLen = 2
	MaxUsernameLen = 20

	LengthMessage  = "Must be between 2-20 characters."
	CharsetMessage = "Special characters are not allowed."
)

var specialCharRe = regexp.MustCompile(`[^A-Za-z 0-9]`)

type ViolationKind int

const (
	LengthViolation ViolationKind = iota + 1
	CharsetViolation
)

func (k ViolationKind) String() string {
	switch k {
	case 0:
		return "none"
	case LengthViolation:
		return "length"
	case CharsetViolation:
		return "charset"
	default:
		panic("bad violation kind")
	}
}

type Violation struct {
	Kind    ViolationKind
	Message string
}

func (v *Violation) Error() string { return v.Message }

var (
	lengthViolation  = Violation{Kind: LengthViolation, Message: LengthMessage}
	charsetViolation = Violation{Kind: CharsetViolation, Message: CharsetMessage}
)

// NameCheck is the outcome of a username check. Only the first violated rule is reported.
type NameCheck struct {
	Violation *Violation
}

func (c NameCheck) OK() bool { return c.Violation == nil }

func (c NameCheck) Err() error {
	if c.Violation == nil {
		return nil
	}
	return c.Violation
}

// CredentialMaker starts credential creation once a username has been accepted.
type CredentialMaker interface {
	MakeCredential()
}

type CredentialMakerFunc func()

func (f CredentialMakerFunc) MakeCredential() { f() }

func CheckUsername(username string) NameCheck {
	uLen := utf8.RuneCountInString(username)
	if uLen < MinUsernameLen || uLen > MaxUsernameLen {
		v := lengthViolation
		return NameCheck{Violation: &v}
	}
	if specialCharRe.MatchString(username) {
		v := charsetViolation
		return NameCheck{Violation: &v}
	}
	return NameCheck{}
}

func ValidateUsername(username string) error {
	return CheckUsername(username).Err()
}

// SubmitUsername checks the username and calls maker exactly once if it is accepted.
func SubmitUsername(username string, maker CredentialMaker) NameCheck {
	c := CheckUsername(username)
	if !c.OK() {
		return c
	}
	maker.MakeCredential()
	return c
}
