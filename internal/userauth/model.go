package userauth

import (
	crand "crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/alex65536/keyreg/internal/util/idgen"
	"github.com/alex65536/keyreg/internal/util/timeutil"
)

const userHandleLen = 64

type User struct {
	ID          string `gorm:"primaryKey"`
	Username    string
	NameKey     string `gorm:"uniqueIndex"`
	Handle      []byte `gorm:"uniqueIndex"`
	CreatedAt   timeutil.UTCTime
	TouchedAt   timeutil.UTCTime `gorm:"index"`
	Credentials []Credential `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// NewUser makes a user with a fresh ID and a random user handle. The handle is what
// authenticators store, so it must not leak the username.
func NewUser(username string) (User, error) {
	handle := make([]byte, userHandleLen)
	if _, err := io.ReadFull(crand.Reader, handle); err != nil {
		return User{}, fmt.Errorf("generate user handle: %w", err)
	}
	now := timeutil.NowUTC()
	return User{
		ID:        idgen.ID(),
		Username:  username,
		NameKey:   NameKey(username),
		Handle:    handle,
		CreatedAt: now,
		TouchedAt: now,
	}, nil
}

// NameKey is the form under which usernames are compared for uniqueness.
func NameKey(username string) string {
	return strings.ToLower(username)
}

func (u *User) IsComplete() bool {
	return len(u.Credentials) != 0
}

type Credential struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"index"`
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string `gorm:"serializer:list;type:text"`
	CreatedAt       timeutil.UTCTime
}

func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCredentialID(id string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("decode credential id: %w", err)
	}
	return raw, nil
}

func (c *Credential) RawID() ([]byte, error) {
	return DecodeCredentialID(c.ID)
}
