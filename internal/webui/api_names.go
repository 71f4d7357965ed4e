package webui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/httputil"
)

func nameStatus(ctx context.Context, ac apiCtx) (int, any, error) {
	cfg := ac.Config
	name := ac.Req.PathValue("name")

	err := cfg.Availability.Check(ctx, name)
	if err == nil {
		return http.StatusOK, regapi.NameStatus{Name: name, Available: true}, nil
	}
	var v *userauth.Violation
	if errors.As(err, &v) {
		return http.StatusOK, regapi.NameStatus{
			Name:    name,
			Kind:    v.Kind.String(),
			Message: v.Message,
		}, nil
	}
	if kind, msg, ok := unavailableKind(err); ok {
		return http.StatusOK, regapi.NameStatus{
			Name:        name,
			Kind:        kind,
			Message:     msg,
			Suggestions: cfg.UserManager.Suggest(ctx, name),
		}, nil
	}
	return 0, nil, err
}

func userCredentials(ctx context.Context, ac apiCtx) (int, any, error) {
	cfg := ac.Config
	name := ac.Req.PathValue("name")

	user, err := cfg.UserManager.GetUserByUsername(ctx, name, userauth.GetUserOptions{WithCredentials: true})
	if err != nil {
		if errors.Is(err, userauth.ErrUserNotFound) {
			return 0, nil, httputil.MakeError(http.StatusNotFound, "user not found")
		}
		return 0, nil, err
	}
	if !user.IsComplete() {
		return 0, nil, httputil.MakeError(http.StatusNotFound, "user not found")
	}
	items := make([]regapi.CredentialInfo, 0, len(user.Credentials))
	for _, c := range user.Credentials {
		transports := c.Transports
		if transports == nil {
			transports = []string{}
		}
		items = append(items, regapi.CredentialInfo{
			ID:         c.ID,
			Transports: transports,
			CreatedAt:  c.CreatedAt.UTC(),
		})
	}
	return http.StatusOK, regapi.UserCredentials{Username: user.Username, Credentials: items}, nil
}

func namesAPI(log *slog.Logger, cfg *Config) http.Handler {
	return newAPI(log, cfg, "names", nameStatus, http.MethodGet)
}

func credentialsAPI(log *slog.Logger, cfg *Config) http.Handler {
	return newAPI(log, cfg, "credentials", userCredentials, http.MethodGet)
}
