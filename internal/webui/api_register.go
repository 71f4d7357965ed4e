package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alex65536/go-chess/util/maybe"
	"github.com/alex65536/keyreg/internal/passkey"
	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/httputil"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/go-webauthn/webauthn/protocol"
)

const (
	registerFormField  = "registerInput"
	registrationKey    = "registration"
	registerRetryAfter = 1
)

type unavailableBody struct {
	OK          bool     `json:"ok"`
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

type beginBody struct {
	OK        bool                                        `json:"ok"`
	PublicKey protocol.PublicKeyCredentialCreationOptions `json:"publicKey"`
}

type finishBody struct {
	OK           bool   `json:"ok"`
	Username     string `json:"username"`
	CredentialID string `json:"credentialId"`
}

type beginResult struct {
	creation *protocol.CredentialCreation
	session  *passkey.Session
	err      error
}

func unavailableKind(err error) (kind string, message string, ok bool) {
	switch {
	case errors.Is(err, userauth.ErrNameTaken):
		return "taken", userauth.ErrNameTaken.Error(), true
	case errors.Is(err, userauth.ErrNameReserved):
		return "reserved", userauth.ErrNameReserved.Error(), true
	default:
		return "", "", false
	}
}

func registerBegin(ctx context.Context, ac apiCtx) (int, any, error) {
	cfg := ac.Config
	req := ac.Req
	log := ac.Log

	if !cfg.registerLimiter.Allow() {
		return 0, nil, httputil.MakeRetryError("too many registration attempts", registerRetryAfter)
	}
	if err := req.ParseForm(); err != nil {
		return 0, nil, httputil.MakeError(http.StatusBadRequest, "bad form data")
	}
	username := req.PostFormValue(registerFormField)

	var res maybe.Maybe[beginResult]
	check := userauth.SubmitUsername(username, userauth.CredentialMakerFunc(func() {
		creation, session, err := cfg.Registrar.Begin(ctx, username)
		res = maybe.Some(beginResult{creation: creation, session: session, err: err})
	}))
	if !check.OK() {
		log.Info("username rejected",
			slog.String("kind", check.Violation.Kind.String()),
		)
		return http.StatusUnprocessableEntity, regapi.Error{
			Kind:    check.Violation.Kind.String(),
			Message: check.Violation.Message,
		}, nil
	}

	r, ok := res.TryGet()
	if !ok {
		return 0, nil, fmt.Errorf("credential creation not started")
	}
	if r.err != nil {
		if kind, msg, ok := unavailableKind(r.err); ok {
			return http.StatusConflict, unavailableBody{
				Kind:        kind,
				Message:     msg,
				Suggestions: cfg.UserManager.Suggest(ctx, username),
			}, nil
		}
		return 0, nil, fmt.Errorf("begin registration: %w", r.err)
	}

	raw, err := json.Marshal(r.session)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal session data: %w", err)
	}
	session, _ := cfg.sessionStore.Get(req, sessionName)
	session.Values[registrationKey] = raw
	if err := session.Save(req, ac.Writer); err != nil {
		return 0, nil, fmt.Errorf("save session: %w", err)
	}
	return http.StatusOK, beginBody{OK: true, PublicKey: r.creation.Response}, nil
}

func registerFinish(ctx context.Context, ac apiCtx) (int, any, error) {
	cfg := ac.Config
	req := ac.Req
	log := ac.Log

	session, _ := cfg.sessionStore.Get(req, sessionName)
	raw, ok := session.Values[registrationKey].([]byte)
	if !ok {
		return 0, nil, httputil.MakeError(http.StatusBadRequest, "no registration in progress")
	}
	var data passkey.Session
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Warn("bad session data", slogx.Err(err))
		return 0, nil, httputil.MakeError(http.StatusBadRequest, "no registration in progress")
	}
	delete(session.Values, registrationKey)
	if err := session.Save(req, ac.Writer); err != nil {
		return 0, nil, fmt.Errorf("save session: %w", err)
	}

	user, cred, err := cfg.Registrar.Finish(ctx, data, req)
	if err != nil {
		var verifyErr *passkey.ErrorVerify
		switch {
		case errors.As(err, &verifyErr):
			log.Info("credential verification failed", slogx.Err(err))
			return 0, nil, httputil.MakeError(http.StatusBadRequest, "credential verification failed")
		case errors.Is(err, userauth.ErrNameTaken), errors.Is(err, userauth.ErrCredentialAlreadyExist):
			return 0, nil, httputil.MakeError(http.StatusConflict, "name already taken")
		case errors.Is(err, userauth.ErrUserNotFound):
			return 0, nil, httputil.MakeError(http.StatusGone, "registration expired")
		default:
			return 0, nil, fmt.Errorf("finish registration: %w", err)
		}
	}
	cfg.Availability.Forget(user.Username)
	return http.StatusCreated, finishBody{
		OK:           true,
		Username:     user.Username,
		CredentialID: cred.ID,
	}, nil
}

func registerBeginAPI(log *slog.Logger, cfg *Config) http.Handler {
	return newAPI(log, cfg, "register_begin", registerBegin, http.MethodPost)
}

func registerFinishAPI(log *slog.Logger, cfg *Config) http.Handler {
	return newAPI(log, cfg, "register_finish", registerFinish, http.MethodPost)
}
