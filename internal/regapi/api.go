package regapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type API interface {
	NameStatus(ctx context.Context, name string) (*NameStatus, error)
	UserCredentials(ctx context.Context, username string) (*UserCredentials, error)
}

// Error is the JSON body of every non-2xx API response.
type Error struct {
	Status  int    `json:"-"`
	OK      bool   `json:"ok"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("keyreg error %v: %v", e.Status, e.Message)
}

var _ error = (*Error)(nil)

func MatchesStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type NameStatus struct {
	Name        string   `json:"name"`
	Available   bool     `json:"available"`
	Kind        string   `json:"kind,omitempty"`
	Message     string   `json:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type CredentialInfo struct {
	ID         string    `json:"id"`
	Transports []string  `json:"transports"`
	CreatedAt  time.Time `json:"createdAt"`
}

type UserCredentials struct {
	Username    string           `json:"username"`
	Credentials []CredentialInfo `json:"credentials"`
}
