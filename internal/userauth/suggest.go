package userauth

import (
	"context"
	"strings"

	petname "github.com/dustinkirkland/golang-petname"
)

func init() {
	petname.NonDeterministicMode()
}

func suggestionBase(username string) string {
	base := strings.TrimSpace(specialCharRe.ReplaceAllString(username, ""))
	// Leave room for a space and a pet name.
	const maxBase = MaxUsernameLen - 9
	if len(base) > maxBase {
		base = strings.TrimSpace(base[:maxBase])
	}
	return base
}

// Suggest returns usernames similar to the given one which are currently available.
func (m *Manager) Suggest(ctx context.Context, username string) []string {
	base := suggestionBase(username)
	var res []string
	seen := make(map[string]struct{})
	for range 4 * m.o.Suggestions {
		if len(res) == m.o.Suggestions || ctx.Err() != nil {
			break
		}
		var cand string
		if base == "" {
			cand = petname.Generate(2, " ")
		} else {
			cand = base + " " + petname.Name()
		}
		if _, ok := seen[NameKey(cand)]; ok {
			continue
		}
		seen[NameKey(cand)] = struct{}{}
		if err := m.CheckAvailable(ctx, cand); err != nil {
			continue
		}
		res = append(res, cand)
	}
	return res
}
