package userauth

import "slices"

var reservedNames = []string{
	"admin",
	"administrator",
	"api",
	"app",
	"dev",
	"help",
	"index",
	"keyreg",
	"login",
	"logout",
	"mail",
	"main",
	"moderator",
	"nil",
	"null",
	"owner",
	"register",
	"root",
	"static",
	"support",
	"system",
	"undefined",
	"www",
}

func IsReservedName(username string, extra []string) bool {
	key := NameKey(username)
	if slices.Contains(reservedNames, key) {
		return true
	}
	return slices.ContainsFunc(extra, func(s string) bool {
		return NameKey(s) == key
	})
}
