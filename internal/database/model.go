package database

import (
	"github.com/alex65536/keyreg/internal/userauth"
)

var models = []any{
	&userauth.User{},
	&userauth.Credential{},
}
